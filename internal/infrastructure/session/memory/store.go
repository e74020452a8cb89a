package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minknguyen/versegrep/internal/core/domain"
)

// DefaultTimeout is how long an idle session survives.
const DefaultTimeout = 30 * time.Minute

// Store is the in-process session registry. Expired sessions are swept
// opportunistically on create and count; lookups refresh the idle clock.
type Store struct {
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*domain.RetrievalSession

	now func() time.Time
}

func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		timeout:  timeout,
		sessions: make(map[string]*domain.RetrievalSession),
		now:      time.Now,
	}
}

func (s *Store) Create(query string, keywords []string, enabledLevels []int) *domain.RetrievalSession {
	s.SweepExpired()

	now := s.now().UTC()
	session := &domain.RetrievalSession{
		ID:            uuid.NewString(),
		Query:         query,
		Keywords:      keywords,
		EnabledLevels: enabledLevels,
		Cursor:        domain.NewRetrievalCursor(),
		CreatedAt:     now,
		LastAccessed:  now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

func (s *Store) Get(id string) (*domain.RetrievalSession, bool) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if now.Sub(session.LastAccessed) > s.timeout {
		delete(s.sessions, id)
		return nil, false
	}
	session.LastAccessed = now
	return session, true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Store) SweepExpired() {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if now.Sub(session.LastAccessed) > s.timeout {
			delete(s.sessions, id)
		}
	}
}

func (s *Store) ActiveCount() int {
	s.SweepExpired()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ClearAll wipes every session. Called on corpus replace and delete:
// level offsets hold no meaning against changed data.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.sessions = make(map[string]*domain.RetrievalSession)
	s.mu.Unlock()
}
