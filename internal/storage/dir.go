package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/utils"
)

// DirStore implements ObjectStore on a local directory. It backs the one-shot
// CLI mode and tests; object names map to file paths under the root.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	const op = "storage.NewDirStore"

	if dir == "" {
		return nil, apperr.New(apperr.Internal, op, "directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to create directory", err)
	}
	return &DirStore{root: dir}, nil
}

// Fetch reads an object from the directory.
func (s *DirStore) Fetch(_ context.Context, name string) ([]byte, error) {
	const op = "storage.DirStore.Fetch"

	data, err := os.ReadFile(filepath.Join(s.root, filepath.Clean(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Wrap(apperr.NotFound, op, "object "+name+" not found", err)
		}
		return nil, apperr.Wrap(apperr.Internal, op, "failed to read object "+name, err)
	}
	return data, nil
}

// Upload writes an object into the directory.
func (s *DirStore) Upload(_ context.Context, name string, data []byte, _ string) error {
	const op = "storage.DirStore.Upload"

	path := filepath.Join(s.root, filepath.Clean(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return apperr.Wrap(apperr.Internal, op, "failed to create directory for "+name, err)
	}
	if err := utils.WriteFileAtomic(path, data); err != nil {
		return apperr.Wrap(apperr.Internal, op, "failed to write object "+name, err)
	}
	return nil
}

// URL returns the local file path of an object.
func (s *DirStore) URL(name string) string {
	return filepath.Join(s.root, filepath.Clean(name))
}

// Close is a no-op for the directory store.
func (s *DirStore) Close() error { return nil }
