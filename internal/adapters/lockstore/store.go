// Package lockstore persists lockfile text on disk.
package lockstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/larder/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.LockfileStore on the local filesystem.
type Store struct {
	mu sync.RWMutex
}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

var _ ports.LockfileStore = (*Store)(nil)

// Read returns the lockfile text at path.
func (s *Store) Read(path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	//nolint:gosec // Path comes from the loaded specfile
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", zerr.With(zerr.Wrap(domain.ErrLockfileNotFound, "no lockfile"), "path", path)
		}
		return "", zerr.With(zerr.Wrap(err, "failed to read lockfile"), "path", path)
	}
	return string(data), nil
}

// Write replaces the lockfile at path through a temporary file in the same directory, so readers
// see either the old or the new text.
func (s *Store) Write(path, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create directory for lockfile"), "path", path)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create temporary lockfile"), "path", path)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, "failed to write lockfile"), "path", path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, "failed to sync lockfile"), "path", path)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to close lockfile"), "path", path)
	}
	//nolint:gosec // Lockfiles are meant to be committed and shared
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to set lockfile permissions"), "path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to replace lockfile"), "path", path)
	}
	return nil
}
