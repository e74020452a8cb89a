package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/minknguyen/versegrep/internal/core/domain"
)

type UploadRepository struct {
	db *sql.DB
}

func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *UploadRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS uploads (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	sentence_count INTEGER NOT NULL DEFAULT 0,
	max_level INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads(status);
CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *UploadRepository) Create(ctx context.Context, up *domain.Upload) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO uploads (
	id, filename, mime_type, storage_path, status, sentence_count, max_level, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		up.ID, up.Filename, up.MimeType, up.StoragePath, string(up.Status),
		up.SentenceCount, up.MaxDocLevel, up.Error, up.CreatedAt, up.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

func (r *UploadRepository) GetByID(ctx context.Context, id string) (*domain.Upload, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, status, sentence_count, max_level, error_message, created_at, updated_at
FROM uploads
WHERE id = $1
`, id)

	var up domain.Upload
	var status string

	err := row.Scan(
		&up.ID, &up.Filename, &up.MimeType, &up.StoragePath, &status,
		&up.SentenceCount, &up.MaxDocLevel, &up.Error, &up.CreatedAt, &up.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUploadNotFound, id)
		}
		return nil, fmt.Errorf("scan upload: %w", err)
	}
	up.Status = domain.UploadStatus(status)
	return &up, nil
}

func (r *UploadRepository) UpdateStatus(ctx context.Context, id string, status domain.UploadStatus, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE uploads
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update upload status: %w", err)
	}
	return nil
}

func (r *UploadRepository) SaveIndexStats(ctx context.Context, id string, sentenceCount, maxDocLevel int) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE uploads
SET sentence_count = $2, max_level = $3, updated_at = $4
WHERE id = $1
`, id, sentenceCount, maxDocLevel, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save index stats: %w", err)
	}
	return nil
}

// MaxDocLevel is the deepest position level across ready uploads, -1
// when nothing is indexed.
func (r *UploadRepository) MaxDocLevel(ctx context.Context) (int, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COALESCE(MAX(max_level), -1)
FROM uploads
WHERE status = $1
`, string(domain.UploadStatusReady))

	var maxLevel int
	if err := row.Scan(&maxLevel); err != nil {
		return 0, fmt.Errorf("scan max level: %w", err)
	}
	return maxLevel, nil
}

func (r *UploadRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM uploads`); err != nil {
		return fmt.Errorf("delete uploads: %w", err)
	}
	return nil
}
