package ports

// LockfileStore defines the interface for persisting lockfile text.
//
//go:generate go run go.uber.org/mock/mockgen -source=lockfile_store.go -destination=mocks/mock_lockfile_store.go -package=mocks
type LockfileStore interface {
	// Read returns the lockfile text at path. It returns domain.ErrLockfileNotFound when the
	// file does not exist.
	Read(path string) (string, error)

	// Write replaces the lockfile at path. Readers never observe a partially written file.
	Write(path, text string) error
}
