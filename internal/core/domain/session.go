package domain

import (
	"sync"
	"time"
)

// MaxRetrievalLevel is the deepest cascade stage. A cursor level beyond
// it means the session has explored everything.
const MaxRetrievalLevel = 4

// RetrievalCursor tracks a session's progress through the level cascade.
// Offsets index into the deterministically ordered candidate list of each
// level; they only ever advance.
type RetrievalCursor struct {
	Level   int             `json:"level"`
	Offsets map[int]int     `json:"offsets"`
	Used    map[string]bool `json:"-"`
}

func NewRetrievalCursor() RetrievalCursor {
	return RetrievalCursor{
		Offsets: make(map[int]int),
		Used:    make(map[string]bool),
	}
}

// Exhausted reports whether every cascade level has been consumed.
func (c *RetrievalCursor) Exhausted() bool {
	return c.Level > MaxRetrievalLevel
}

// RetrievalSession is the per-conversation retrieval state. A session is
// accessed by at most one request at a time; callers hold Mu around any
// read-modify-write of the cursor.
type RetrievalSession struct {
	Mu sync.Mutex `json:"-"`

	ID            string          `json:"session_id"`
	Query         string          `json:"query"`
	Keywords      []string        `json:"keywords"`
	EnabledLevels []int           `json:"enabled_levels"`
	Cursor        RetrievalCursor `json:"cursor"`

	UsedVariants    []string `json:"-"`
	KeywordMeanings []string `json:"-"`

	ContinueCount int       `json:"continue_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccessed  time.Time `json:"last_accessed"`
}
