package ports

import (
	"context"
	"io"

	"github.com/minknguyen/versegrep/internal/core/domain"
)

// AskParams carries the caller-facing knobs of a first question.
type AskParams struct {
	Query         string
	Limit         int
	CustomPrompt  string
	EnabledLevels []int
}

// ContinueParams carries the knobs of a "tell me more" call.
type ContinueParams struct {
	SessionID    string
	Limit        int
	CustomPrompt string
}

// QAResult is the shared response shape of Ask and Continue.
type QAResult struct {
	SessionID          string
	Answer             string
	Sources            []domain.RetrievedSentence
	CurrentLevel       int
	MaxLevel           int
	CanContinue        bool
	SentencesRetrieved int
	ContinueCount      int
}

// QuestionService is the inbound contract for progressive Q&A.
type QuestionService interface {
	Ask(ctx context.Context, params AskParams) (*QAResult, error)
	Continue(ctx context.Context, params ContinueParams) (*QAResult, error)
}

// CorpusIngestor is the inbound contract for file upload orchestration.
type CorpusIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Upload, error)
}

// CorpusAdmin covers replace/delete/stats operations on the corpus.
type CorpusAdmin interface {
	ReplaceCorpus(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Upload, error)
	DeleteCorpus(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*domain.CorpusStats, error)
}

// UploadProcessor is the inbound contract for asynchronous indexing.
type UploadProcessor interface {
	ProcessByID(ctx context.Context, uploadID string) error
}
