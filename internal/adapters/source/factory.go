// Package source builds the sources a specfile can declare and lists the source types a
// lockfile can hold.
package source

import (
	"net/http"
	"os"
	"path/filepath"

	pathsource "go.trai.ch/larder/internal/adapters/source/path"
	"go.trai.ch/larder/internal/adapters/source/site"
	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/larder/internal/core/ports"
)

// Factory implements ports.SourceFactory.
type Factory struct {
	cacheDir   string
	httpClient *http.Client
}

// NewFactory creates a Factory. Site sources cache catalogs under cacheDir; a nil client gets
// the site default.
func NewFactory(cacheDir string, client *http.Client) *Factory {
	return &Factory{cacheDir: cacheDir, httpClient: client}
}

var _ ports.SourceFactory = (*Factory)(nil)

// DefaultCacheDir returns the per-user directory for cached site catalogs.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "larder", "site")
}

// Path implements ports.SourceFactory.
func (f *Factory) Path(remote, base string) (domain.Source, error) {
	src, err := pathsource.New(remote, base)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Site implements ports.SourceFactory.
func (f *Factory) Site(remote string) (domain.Source, error) {
	src, err := site.New(remote, f.cacheDir, f.httpClient)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Types returns PATH then SITE, the order of source blocks in a lockfile.
func (f *Factory) Types() []domain.SourceType {
	return []domain.SourceType{
		pathsource.Type(),
		site.Type(f.cacheDir, f.httpClient),
	}
}
