package usecase

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/core/ports"
)

const (
	embedBatchSize           = 50
	embedConcurrency         = 4
	DefaultSentencesPerLevel = 100
)

// ProcessUploadUseCase indexes one stored upload: extract text, split
// into sentences, embed, and bulk-insert sentence records. Sentences are
// leveled by position so earlier material ranks as more foundational.
type ProcessUploadUseCase struct {
	repo              ports.UploadRepository
	extractor         ports.TextExtractor
	splitter          ports.SentenceSplitter
	embedder          ports.Embedder
	backend           ports.SearchBackend
	sentencesPerLevel int
}

func NewProcessUploadUseCase(
	repo ports.UploadRepository,
	extractor ports.TextExtractor,
	splitter ports.SentenceSplitter,
	embedder ports.Embedder,
	backend ports.SearchBackend,
	sentencesPerLevel int,
) *ProcessUploadUseCase {
	if sentencesPerLevel <= 0 {
		sentencesPerLevel = DefaultSentencesPerLevel
	}
	return &ProcessUploadUseCase{
		repo:              repo,
		extractor:         extractor,
		splitter:          splitter,
		embedder:          embedder,
		backend:           backend,
		sentencesPerLevel: sentencesPerLevel,
	}
}

func (uc *ProcessUploadUseCase) ProcessByID(ctx context.Context, uploadID string) error {
	if err := uc.repo.UpdateStatus(ctx, uploadID, domain.UploadStatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	sentenceCount, maxLevel, err := uc.indexPipeline(ctx, uploadID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, uploadID, domain.UploadStatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveIndexStats(ctx, uploadID, sentenceCount, maxLevel); err != nil {
		return fmt.Errorf("save index stats: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, uploadID, domain.UploadStatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessUploadUseCase) indexPipeline(ctx context.Context, uploadID string) (int, int, error) {
	up, err := uc.repo.GetByID(ctx, uploadID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch upload by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, up)
	if err != nil {
		return 0, 0, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	sentences := uc.splitter.Split(text)
	if len(sentences) == 0 {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "split text", errors.New("splitting produced zero sentences"))
	}

	vectors, err := uc.embedAll(ctx, sentences)
	if err != nil {
		return 0, 0, err
	}

	records := make([]domain.SentenceRecord, len(sentences))
	maxLevel := 0
	for i, sentence := range sentences {
		level := i / uc.sentencesPerLevel
		if level > maxLevel {
			maxLevel = level
		}
		records[i] = domain.SentenceRecord{
			Text:          sentence,
			Embedding:     vectors[i],
			DocLevel:      level,
			SentenceIndex: i,
			SourceFileID:  up.ID,
		}
	}

	if err := uc.backend.BulkInsert(ctx, records); err != nil {
		return 0, 0, fmt.Errorf("bulk insert sentences: %w", err)
	}
	return len(records), maxLevel, nil
}

// embedAll fans batches out over a bounded group; slice assembly is by
// batch index so ordering is preserved regardless of completion order.
func (uc *ProcessUploadUseCase) embedAll(ctx context.Context, sentences []string) ([][]float32, error) {
	vectors := make([][]float32, len(sentences))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(sentences); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(sentences) {
			end = len(sentences)
		}
		start, end := start, end
		g.Go(func() error {
			batch, err := uc.embedder.Embed(gctx, sentences[start:end])
			if err != nil {
				return fmt.Errorf("embed sentences [%d:%d]: %w", start, end, err)
			}
			if len(batch) != end-start {
				return domain.WrapError(
					domain.ErrInvalidInput,
					"embed sentences",
					fmt.Errorf("vectors/sentences mismatch: %d/%d", len(batch), end-start),
				)
			}
			copy(vectors[start:], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
