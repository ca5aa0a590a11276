package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/tendant/simple-vfs/pkg/simplevfs"
)

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for stored content
}

// Backend is a filesystem implementation of the simplevfs.BlobStore interface
type Backend struct {
	baseDir string
}

// New creates a new filesystem content backend rooted at the configured
// base directory.
func New(config Config) (simplevfs.BlobStore, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Backend{baseDir: config.BaseDir}, nil
}

// path maps an object key onto a file below the base directory. Keys carry
// URN content (colons, slashes of either style), so they are escaped into a
// single flat file name.
func (b *Backend) path(objectKey string) string {
	return filepath.Join(b.baseDir, url.PathEscape(objectKey))
}

// Upload stores content in a file, replacing any previous content
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	tmp, err := os.CreateTemp(b.baseDir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path(objectKey)); err != nil {
		return fmt.Errorf("failed to store content: %w", err)
	}
	return nil
}

// Download retrieves content from a file
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	f, err := os.Open(b.path(objectKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("blob not found")
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return f, nil
}

// Exists reports whether content is stored under the key
func (b *Backend) Exists(ctx context.Context, objectKey string) (bool, error) {
	if _, err := os.Stat(b.path(objectKey)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	if err := os.Remove(b.path(objectKey)); err != nil {
		if os.IsNotExist(err) {
			return errors.New("blob not found")
		}
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}
