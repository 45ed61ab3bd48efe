// Package imagestore persists the screenshots captured during a run and
// resolves them again for the image route.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned by Load for unknown keys.
var ErrNotFound = errors.New("image not found")

// ErrInvalidKey is returned for keys that do not have the {run}/{name}.png shape.
var ErrInvalidKey = errors.New("invalid image key")

// Store saves PNG screenshots under generated keys.
type Store interface {
	// Save stores data and returns the public reference for it.
	Save(ctx context.Context, runID, prefix string, data []byte) (string, error)
	// Load returns the bytes stored under key.
	Load(ctx context.Context, key string) ([]byte, error)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+/[A-Za-z0-9_-]+\.png$`)

// NewKey builds the storage key `{run}/{prefix}_{unixnano}.png`.
func NewKey(runID, prefix string, at time.Time) string {
	return fmt.Sprintf("%s/%s_%d.png", runID, prefix, at.UnixNano())
}

// ValidateKey rejects keys that could escape the store's namespace.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// refFor joins a base URL and a key. An empty base returns the bare key.
func refFor(baseURL, key string) string {
	if baseURL == "" {
		return key
	}
	return strings.TrimRight(baseURL, "/") + "/" + key
}
