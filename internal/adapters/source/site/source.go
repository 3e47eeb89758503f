// Package site implements a source that reads package catalogs from an HTTP server.
//
// A catalog for name is served at <remote>/<name>.json:
//
//	{"name": "jam", "versions": [{"version": "1.2", "dependencies": {"butter": ">= 1.0"}}]}
//
// Responses are kept on disk under a cache directory, keyed by an xxhash of remote and name.
package site

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"maps"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

const (
	// LockName is the lockfile header of site sources.
	LockName = "SITE"

	// DefaultTTL is how long a cached catalog is trusted before it is fetched again.
	DefaultTTL = time.Hour

	httpClientTimeout = 30 * time.Second
	remoteOption      = "remote"
	dirPerm           = 0o750
	filePerm          = 0o600
)

// ErrFetchFailed is returned when a catalog cannot be retrieved from the server.
var ErrFetchFailed = zerr.New("failed to fetch package catalog")

// CatalogDTO is the JSON document served for one package name.
type CatalogDTO struct {
	Name     string       `json:"name"`
	Versions []VersionDTO `json:"versions"`
}

// VersionDTO is one published version of a package.
type VersionDTO struct {
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Source implements domain.Source over an HTTP package catalog.
type Source struct {
	remote     string
	base       *url.URL
	cacheDir   string
	ttl        time.Duration
	httpClient *http.Client

	mu       sync.Mutex
	catalogs map[string][]*domain.Manifest
}

// New creates a source for the catalog server at remote. Fetched catalogs are cached in cacheDir;
// an empty cacheDir disables the disk cache. A nil client gets a default with a timeout.
func New(remote, cacheDir string, client *http.Client) (*Source, error) {
	base, err := url.Parse(strings.TrimSuffix(remote, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, zerr.With(zerr.New("site source needs an http or https url"), "remote", remote)
	}
	if client == nil {
		client = &http.Client{Timeout: httpClientTimeout}
	}
	return &Source{
		remote:     remote,
		base:       base,
		cacheDir:   cacheDir,
		ttl:        DefaultTTL,
		httpClient: client,
		catalogs:   make(map[string][]*domain.Manifest),
	}, nil
}

// Type returns the source type that rebuilds site sources from lockfile options.
func Type(cacheDir string, client *http.Client) domain.SourceType {
	return domain.SourceType{
		LockName: LockName,
		FromLockOptions: func(options map[string]string) (domain.Source, error) {
			for key := range options {
				if key != remoteOption {
					return nil, zerr.With(zerr.New("unexpected site source option"), "key", key)
				}
			}
			src, err := New(options[remoteOption], cacheDir, client)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
	}
}

// SetTTL changes how long cached catalogs are trusted. Zero means cached catalogs are never used.
func (s *Source) SetTTL(ttl time.Duration) {
	s.ttl = ttl
}

// LockName implements domain.Source.
func (s *Source) LockName() string {
	return LockName
}

// Manifests returns the published versions of name, newest first. An unknown package has no
// candidates.
func (s *Source) Manifests(ctx context.Context, name string) ([]*domain.Manifest, error) {
	s.mu.Lock()
	ms, ok := s.catalogs[name]
	s.mu.Unlock()
	if ok {
		return ms, nil
	}

	ms, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.catalogs[name]; ok {
		return cached, nil
	}
	s.catalogs[name] = ms
	return ms, nil
}

// Cache fetches the catalogs of every name in deps concurrently.
func (s *Source) Cache(ctx context.Context, deps []*domain.Dependency) error {
	names := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		names[d.Name()] = struct{}{}
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, name := range slices.Sorted(maps.Keys(names)) {
		g.Go(func() error {
			_, err := s.Manifests(groupCtx, name)
			return err
		})
	}
	return g.Wait()
}

// LockOptions implements domain.Source.
func (s *Source) LockOptions() map[string]string {
	return map[string]string{remoteOption: s.remote}
}

// Equal implements domain.Source.
func (s *Source) Equal(other domain.Source) bool {
	o, ok := other.(*Source)
	return ok && o.remote == s.remote
}

// String implements domain.Source.
func (s *Source) String() string {
	return s.remote
}

func (s *Source) load(ctx context.Context, name string) ([]*domain.Manifest, error) {
	catalog, err := s.loadFromCache(name)
	if err != nil {
		catalog, err = s.fetch(ctx, name)
		if err != nil {
			return nil, err
		}
		if catalog != nil {
			// A failed cache write only costs a refetch next time.
			_ = s.saveToCache(name, catalog)
		}
	}
	if catalog == nil {
		return nil, nil
	}
	return s.manifests(name, catalog)
}

func (s *Source) manifests(name string, catalog *CatalogDTO) ([]*domain.Manifest, error) {
	if catalog.Name != "" && catalog.Name != name {
		return nil, zerr.With(zerr.With(zerr.New("catalog name does not match request"), "name", name),
			"catalog", catalog.Name)
	}

	type candidate struct {
		version domain.Version
		deps    []*domain.Dependency
	}
	candidates := make([]candidate, 0, len(catalog.Versions))
	for _, dto := range catalog.Versions {
		v, err := domain.ParseVersion(dto.Version)
		if err != nil {
			return nil, zerr.With(err, "name", name)
		}
		deps, err := dependencies(dto.Dependencies)
		if err != nil {
			return nil, zerr.With(zerr.With(err, "name", name), "version", dto.Version)
		}
		candidates = append(candidates, candidate{version: v, deps: deps})
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(0, a.version.Compare(b.version))
	})

	out := make([]*domain.Manifest, 0, len(candidates))
	for _, c := range candidates {
		m, err := domain.NewFixedManifest(s, name, c.version, c.deps)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// dependencies converts a name → requirement map into unbound dependencies sorted by name.
func dependencies(reqs map[string]string) ([]*domain.Dependency, error) {
	deps := make([]*domain.Dependency, 0, len(reqs))
	for _, name := range slices.Sorted(maps.Keys(reqs)) {
		req, err := domain.ParseRequirement(reqs[name])
		if err != nil {
			return nil, zerr.With(err, "dependency", name)
		}
		d, err := domain.NewDependency(name, req, nil)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, nil
}

// fetch queries the server. It returns a nil catalog when the package does not exist.
func (s *Source) fetch(ctx context.Context, name string) (*CatalogDTO, error) {
	target := s.base.JoinPath(url.PathEscape(name) + ".json").String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(ErrFetchFailed, err.Error()), "url", target)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(ErrFetchFailed, err.Error()), "url", target)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, zerr.With(zerr.With(zerr.Wrap(ErrFetchFailed, "unexpected status"), "url", target),
			"status_code", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(ErrFetchFailed, err.Error()), "url", target)
	}

	var catalog CatalogDTO
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse package catalog"), "url", target)
	}
	return &catalog, nil
}

// cachePath returns the cache file for name. The key covers the remote so that two sites never
// share entries.
func (s *Source) cachePath(name string) string {
	h := xxhash.New()
	_, _ = h.WriteString(s.remote)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(name)
	return filepath.Join(s.cacheDir, strconv.FormatUint(h.Sum64(), 16)+".json")
}

var errCacheMiss = errors.New("cache miss")

func (s *Source) loadFromCache(name string) (*CatalogDTO, error) {
	if s.cacheDir == "" || s.ttl <= 0 {
		return nil, errCacheMiss
	}
	path := s.cachePath(name)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errCacheMiss
		}
		return nil, zerr.Wrap(err, "failed to stat catalog cache")
	}
	if time.Since(info.ModTime()) > s.ttl {
		return nil, errCacheMiss
	}

	//nolint:gosec // Path is built from the cache directory and a hashed file name
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read catalog cache")
	}
	var catalog CatalogDTO
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, zerr.Wrap(err, "failed to parse catalog cache")
	}
	return &catalog, nil
}

func (s *Source) saveToCache(name string, catalog *CatalogDTO) error {
	if s.cacheDir == "" {
		return nil
	}
	data, err := json.Marshal(catalog)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal catalog")
	}
	return atomicWriteFile(s.cachePath(name), data)
}

// atomicWriteFile writes data to a temporary file and renames it over path.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "catalog-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
