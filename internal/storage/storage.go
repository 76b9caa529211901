package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nxtgm/feedserver/config"
)

// ErrNotExist is returned by Open when no object is stored under the key.
var ErrNotExist = errors.New("object does not exist")

// ImageStore persists uploaded post images across backends.
// Open returns the object's stored content type alongside the reader and
// maps a missing key to ErrNotExist on every backend.
type ImageStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, key string) error
}

// New constructs the image store selected by config and ensures its bucket.
// An empty backend returns nil: media hosting is disabled and the media
// routes are not registered.
func New(ctx context.Context, cfg config.StorageConfig) (ImageStore, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		store, err := NewMinioStore(cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "gcs":
		store, err := NewGCSStore(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
