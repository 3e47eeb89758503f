package ports

import "go.trai.ch/larder/internal/core/domain"

// SourceFactory builds sources from specfile declarations and knows every lockable source type.
//
//go:generate go run go.uber.org/mock/mockgen -source=source_factory.go -destination=mocks/mock_source_factory.go -package=mocks
type SourceFactory interface {
	// Path returns a source reading package manifests from a local directory. A relative remote
	// is resolved against base.
	Path(remote, base string) (domain.Source, error)

	// Site returns a source reading package catalogs over HTTP from remote.
	Site(remote string) (domain.Source, error)

	// Types returns the lockable source types in lockfile block order.
	Types() []domain.SourceType
}
