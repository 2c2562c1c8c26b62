package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStore implements ObjectStore over the local filesystem. Keys are
// paths, optionally relative to Root. It serves local runs and tests.
type FileStore struct {
	Root string
}

// NewFileStore creates a store resolving keys under root ("" means keys
// are used as given).
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

func (f *FileStore) resolve(key string) string {
	if f.Root == "" || filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(f.Root, key)
}

// Fetch opens the file at key, honoring the same offset/length semantics
// as the S3 store.
func (f *FileStore) Fetch(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	fd, err := os.Open(f.resolve(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	if offset > 0 {
		if _, err := fd.Seek(offset, io.SeekStart); err != nil {
			_ = fd.Close()
			return nil, fmt.Errorf("failed to seek %s: %w", key, err)
		}
	}
	if length > -1 {
		return &limitedFile{Reader: io.LimitReader(fd, length), f: fd}, nil
	}
	return fd, nil
}

// limitedFile bounds reads to the requested range while keeping Close on
// the underlying file.
type limitedFile struct {
	io.Reader
	f *os.File
}

func (l *limitedFile) Close() error { return l.f.Close() }

// Put copies the local file to the descriptor path.
func (f *FileStore) Put(ctx context.Context, localPath string, desc Descriptor) (int64, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(f.resolve(desc.Path))
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", desc.Path, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to copy to %s: %w", desc.Path, err)
	}
	return n, nil
}
