// Package extractor pulls plain text out of stored uploads, dispatching
// on file extension.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/core/ports"
)

type MultiFormat struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *MultiFormat {
	return &MultiFormat{storage: storage}
}

func (e *MultiFormat) Extract(ctx context.Context, up *domain.Upload) (string, error) {
	reader, err := e.storage.Open(ctx, up.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer reader.Close()

	switch strings.ToLower(filepath.Ext(up.Filename)) {
	case ".pdf":
		return extractPDF(reader)
	case ".xlsx":
		return extractXLSX(reader)
	default:
		return extractPlainText(reader, up.Filename)
	}
}

func extractPlainText(reader io.Reader, filename string) (string, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source file: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file is not valid UTF-8 text: %s", filename)
	}
	return strings.TrimSpace(string(raw)), nil
}
