package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/core/ports"
)

var supportedExtensions = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".xlsx": true,
}

type IngestUploadUseCase struct {
	repo    ports.UploadRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestUploadUseCase(
	repo ports.UploadRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestUploadUseCase {
	return &IngestUploadUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestUploadUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Upload, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, ext)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	up := &domain.Upload{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.UploadStatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, up); err != nil {
		return nil, fmt.Errorf("create upload metadata: %w", err)
	}

	evt := domain.FileUploadedEvent{
		UploadID:   up.ID,
		Filename:   up.Filename,
		UploadedAt: up.CreatedAt,
	}
	if err := uc.queue.PublishFileUploaded(ctx, evt); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return up, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
