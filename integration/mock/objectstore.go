// Package mock provides in-memory stand-ins for the remote object store,
// used by the integration tests.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gurre/crawlingest/storage"
)

// ObjectStore implements storage.ObjectStore over an in-memory object map.
type ObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Uploads map[string][]byte // descriptor path -> uploaded artifact
}

// Compile-time interface check.
var _ storage.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore creates an empty store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		Objects: make(map[string][]byte),
		Uploads: make(map[string][]byte),
	}
}

// Fetch honors the same offset/length semantics as the real stores.
func (m *ObjectStore) Fetch(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	m.mu.Lock()
	data, ok := m.Objects[key]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mock store: key not found: %s", key)
	}

	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	data = data[offset:]
	if length > -1 && length < int64(len(data)) {
		data = data[:length]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put records the uploaded artifact under the descriptor path.
func (m *ObjectStore) Put(ctx context.Context, localPath string, desc storage.Descriptor) (int64, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.Uploads[desc.Path] = data
	m.mu.Unlock()
	return int64(len(data)), nil
}
