package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// FSStore keeps images as files under a root directory.
type FSStore struct {
	root    string
	baseURL string
	now     func() time.Time
	logger  *zap.Logger
}

// NewFSStore expands a leading ~ in dir and creates it if needed.
func NewFSStore(dir, baseURL string, logger *zap.Logger) (*FSStore, error) {
	root, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand image directory '%s': %w", dir, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory '%s': %w", root, err)
	}
	return &FSStore{
		root:    root,
		baseURL: baseURL,
		now:     time.Now,
		logger:  logger.Named("imagestore.fs"),
	}, nil
}

// Root is the resolved directory images are written to.
func (s *FSStore) Root() string { return s.root }

func (s *FSStore) Save(ctx context.Context, runID, prefix string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := NewKey(runID, prefix, s.now())
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image '%s': %w", key, err)
	}

	s.logger.Debug("Image stored.", zap.String("key", key), zap.Int("bytes", len(data)))
	return refFor(s.baseURL, key), nil
}

func (s *FSStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image '%s': %w", key, err)
	}
	return data, nil
}
