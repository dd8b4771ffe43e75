package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when the requested object does not exist
var ErrNotFound = errors.New("storage: object not found")

// Provider represents a storage provider type
type Provider string

const (
	ProviderS3    Provider = "s3"
	ProviderLocal Provider = "local"
)

// Source is a read-only object store for curated datasets such as the
// domain denylist.
type Source interface {
	// Open streams the object at key. Callers must close the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// Provider names the backing store, for logs
	Provider() Provider
}

// LocalSource reads objects from a directory on disk
type LocalSource struct {
	root string
}

// NewLocalSource creates a source rooted at dir ("" means the working directory)
func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{root: dir}
}

// path resolves key inside root; keys cannot escape root.
func (l *LocalSource) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	if l.root == "" {
		return filepath.Clean(key), nil
	}
	return filepath.Join(l.root, filepath.Clean("/"+key)), nil
}

// Open opens the file at key
func (l *LocalSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	return f, nil
}

// Exists checks if the file at key exists
func (l *LocalSource) Exists(_ context.Context, key string) (bool, error) {
	p, err := l.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Provider returns ProviderLocal
func (l *LocalSource) Provider() Provider { return ProviderLocal }
