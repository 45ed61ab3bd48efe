package imagestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts *pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	sqlCreateImages = `
        CREATE TABLE IF NOT EXISTS run_images (
            key TEXT PRIMARY KEY,
            run_id TEXT NOT NULL,
            prefix TEXT NOT NULL,
            data BYTEA NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlInsertImage = `
        INSERT INTO run_images (key, run_id, prefix, data, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (key) DO NOTHING;
    `
	sqlSelectImage = `SELECT data FROM run_images WHERE key = $1`
)

// PostgresStore keeps images as bytea rows in the run_images table.
type PostgresStore struct {
	pool    DBPool
	baseURL string
	now     func() time.Time
	log     *zap.Logger
}

// NewPostgresStore wraps pool. Call EnsureSchema once before use.
func NewPostgresStore(pool DBPool, baseURL string, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		baseURL: baseURL,
		now:     time.Now,
		log:     logger.Named("imagestore.postgres"),
	}
}

// EnsureSchema creates the run_images table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateImages); err != nil {
		return fmt.Errorf("failed to create run_images table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, runID, prefix string, data []byte) (string, error) {
	now := s.now().UTC()
	key := NewKey(runID, prefix, now)
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if _, err := s.pool.Exec(ctx, sqlInsertImage, key, runID, prefix, data, now); err != nil {
		return "", fmt.Errorf("failed to insert image '%s': %w", key, err)
	}
	s.log.Debug("Image stored.", zap.String("key", key), zap.Int("bytes", len(data)))
	return refFor(s.baseURL, key), nil
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var data []byte
	err := s.pool.QueryRow(ctx, sqlSelectImage, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image '%s': %w", key, err)
	}
	return data, nil
}
