package storage

import (
	"context"
	"errors"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
)

// LocalStore keeps blobs under a directory on disk.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = "static/uploads"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

// Root is the directory blobs are written to.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) pathFor(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Put writes through a temporary file so readers never observe a partial blob.
func (s *LocalStore) Put(ctx context.Context, key, _ string, data []byte) error {
	p, tmp, err := s.stage(ctx, key, data)
	if err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Create links the staged file into place, which fails atomically when the key exists.
func (s *LocalStore) Create(ctx context.Context, key, _ string, data []byte) error {
	p, tmp, err := s.stage(ctx, key, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.Link(tmp, p); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return err
	}
	return nil
}

// stage writes data to a temporary file next to the key's final path.
func (s *LocalStore) stage(ctx context.Context, key string, data []byte) (dst, tmpName string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	p, err := s.pathFor(key)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", err
	}
	if err := os.Chmod(tmp.Name(), 0o640); err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", err
	}
	return p, tmp.Name(), nil
}

func (s *LocalStore) Open(_ context.Context, key string) (*Object, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}
	return &Object{
		Body:        f,
		Size:        info.Size(),
		ContentType: contentTypeFor(key),
		ModTime:     info.ModTime(),
	}, nil
}

func (s *LocalStore) Remove(_ context.Context, key string) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
