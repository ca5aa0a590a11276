package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tendant/simple-vfs/pkg/simplevfs"
)

// Backend is an in-memory implementation of the simplevfs.BlobStore interface
type Backend struct {
	mu     sync.RWMutex
	chunks map[string][]byte
}

// New creates a new in-memory content backend
func New() simplevfs.BlobStore {
	return &Backend{
		chunks: make(map[string][]byte),
	}
}

// Upload stores content directly
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks[objectKey] = data
	return nil
}

// Download retrieves content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.chunks[objectKey]
	if !exists {
		return nil, errors.New("blob not found")
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists reports whether content is stored under the key
func (b *Backend) Exists(ctx context.Context, objectKey string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.chunks[objectKey]
	return exists, nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.chunks[objectKey]; !exists {
		return errors.New("blob not found")
	}

	delete(b.chunks, objectKey)
	return nil
}
