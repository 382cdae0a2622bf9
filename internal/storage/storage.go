// Package storage persists uploaded images and their thumbnails.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"inkwell/internal/config"
)

// ErrNotFound is returned by Open for keys that were never stored.
var ErrNotFound = errors.New("blob not found")

// ErrExists is returned by Create when the key is already taken.
var ErrExists = errors.New("blob already exists")

// ErrInvalidKey is returned for keys that would escape the store.
var ErrInvalidKey = errors.New("invalid blob key")

// Object is an opened blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// BlobStore is the filesystem or object store holding uploads.
// Keys are slash separated relative paths such as "1700000000_cat.png" or "thumbs/1700000000_cat.webp".
type BlobStore interface {
	// Put writes data under key, replacing any existing blob.
	Put(ctx context.Context, key, contentType string, data []byte) error
	// Create writes data under key and fails with ErrExists if the key is taken.
	Create(ctx context.Context, key, contentType string, data []byte) error
	Open(ctx context.Context, key string) (*Object, error)
	Remove(ctx context.Context, key string) error
}

// New builds the blob store selected by BLOB_BACKEND.
func New(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.BlobBackend {
	case "", "local":
		return NewLocalStore(cfg.UploadDir)
	case "s3":
		s, err := NewS3Store(S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.S3Bucket,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %q: %w", cfg.S3Bucket, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported blob backend %q", cfg.BlobBackend)
	}
}

// CleanKey validates a key and returns its canonical form.
func CleanKey(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, '\\') || strings.ContainsRune(key, 0) {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
