package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/core/ports"
)

// CorpusAdminUseCase covers whole-corpus operations. Replace and delete
// wipe retrieval sessions too: level offsets are meaningless against a
// changed corpus.
type CorpusAdminUseCase struct {
	backend  ports.SearchBackend
	repo     ports.UploadRepository
	sessions ports.SessionStore
	ingestor ports.CorpusIngestor
}

func NewCorpusAdminUseCase(
	backend ports.SearchBackend,
	repo ports.UploadRepository,
	sessions ports.SessionStore,
	ingestor ports.CorpusIngestor,
) *CorpusAdminUseCase {
	return &CorpusAdminUseCase{
		backend:  backend,
		repo:     repo,
		sessions: sessions,
		ingestor: ingestor,
	}
}

func (uc *CorpusAdminUseCase) ReplaceCorpus(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Upload, error) {
	if _, err := uc.wipe(ctx); err != nil {
		return nil, err
	}
	up, err := uc.ingestor.Upload(ctx, filename, mimeType, body)
	if err != nil {
		return nil, fmt.Errorf("upload replacement corpus: %w", err)
	}
	return up, nil
}

func (uc *CorpusAdminUseCase) DeleteCorpus(ctx context.Context) (int, error) {
	return uc.wipe(ctx)
}

func (uc *CorpusAdminUseCase) Stats(ctx context.Context) (*domain.CorpusStats, error) {
	count, err := uc.backend.Count(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "count documents", err)
	}
	maxLevel, err := uc.repo.MaxDocLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch max level: %w", err)
	}
	return &domain.CorpusStats{
		TotalDocuments:  count,
		MaxDocLevel:     maxLevel,
		LevelsAvailable: maxLevel + 1,
		Ready:           count > 0,
	}, nil
}

func (uc *CorpusAdminUseCase) wipe(ctx context.Context) (int, error) {
	count, err := uc.backend.Count(ctx)
	if err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "count documents", err)
	}
	if err := uc.backend.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("delete indexed sentences: %w", err)
	}
	if err := uc.repo.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("delete upload metadata: %w", err)
	}
	uc.sessions.ClearAll()
	return count, nil
}
