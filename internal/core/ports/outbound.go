package ports

import (
	"context"
	"io"

	"github.com/minknguyen/versegrep/internal/core/domain"
)

// SearchBackend is the external full-text + vector search service holding
// the sentence corpus. Exclusion lists are matched as phrases, mirroring
// how the backend filters already-returned sentences.
type SearchBackend interface {
	// PhraseSearch matches phrase with the given slop (0 = exact
	// consecutive words).
	PhraseSearch(ctx context.Context, phrase string, slop, limit int, exclude []string) ([]domain.SentenceHit, error)
	// TermSearch runs a boolean text query. allRequired selects
	// all-terms-required versus any-term matching.
	TermSearch(ctx context.Context, terms []string, allRequired bool, limit int, exclude []string) ([]domain.SentenceHit, error)
	// HybridSearch combines an all-terms-required text query with cosine
	// similarity scoring against the stored embeddings.
	HybridSearch(ctx context.Context, terms []string, vector []float32, limit int, exclude []string) ([]domain.SentenceHit, error)
	// SemanticSearch ranks purely by cosine similarity.
	SemanticSearch(ctx context.Context, vector []float32, limit int, exclude []string) ([]domain.SentenceHit, error)

	BulkInsert(ctx context.Context, records []domain.SentenceRecord) error
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Embedder builds vectors for sentences and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextGenerator is the external text-generation service.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// SessionStore owns the per-conversation retrieval state.
type SessionStore interface {
	Create(query string, keywords []string, enabledLevels []int) *domain.RetrievalSession
	Get(id string) (*domain.RetrievalSession, bool)
	Delete(id string)
	SweepExpired()
	ActiveCount() int
	ClearAll()
}

// UploadRepository persists source-file metadata.
type UploadRepository interface {
	Create(ctx context.Context, up *domain.Upload) error
	GetByID(ctx context.Context, id string) (*domain.Upload, error)
	UpdateStatus(ctx context.Context, id string, status domain.UploadStatus, errMessage string) error
	SaveIndexStats(ctx context.Context, id string, sentenceCount, maxDocLevel int) error
	MaxDocLevel(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

// ObjectStorage stores raw uploaded files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries upload events from the API to the indexing worker.
type MessageQueue interface {
	PublishFileUploaded(ctx context.Context, evt domain.FileUploadedEvent) error
	SubscribeFileUploaded(ctx context.Context, handler func(context.Context, domain.FileUploadedEvent) error) error
}

// TextExtractor extracts plain text from a stored upload.
type TextExtractor interface {
	Extract(ctx context.Context, up *domain.Upload) (string, error)
}

// SentenceSplitter segments extracted text into indexable sentences.
type SentenceSplitter interface {
	Split(text string) []string
}
