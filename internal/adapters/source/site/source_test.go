package site_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/larder/internal/adapters/source/site"
	"go.trai.ch/larder/internal/core/domain/domaintest"
)

type catalogServer struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func newCatalogServer(t *testing.T, catalogs map[string]site.CatalogDTO) *catalogServer {
	t.Helper()
	s := &catalogServer{hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")
		s.mu.Lock()
		s.hits[name]++
		s.mu.Unlock()

		if name == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		catalog, ok := catalogs[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(catalog)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *catalogServer) Hits(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

var breakfast = map[string]site.CatalogDTO{
	"jam": {Name: "jam", Versions: []site.VersionDTO{
		{Version: "1.2", Dependencies: map[string]string{"butter": ">= 1.0"}},
		{Version: "1.10"},
		{Version: "1.1", Dependencies: map[string]string{"sugar": "", "butter": "~> 1.0"}},
	}},
	"toast": {Name: "toast", Versions: []site.VersionDTO{{Version: "2.0"}}},
}

func TestSource_ManifestsNewestFirst(t *testing.T) {
	srv := newCatalogServer(t, breakfast)
	src, err := site.New(srv.URL, t.TempDir(), srv.Client())
	require.NoError(t, err)

	ms, err := src.Manifests(t.Context(), "jam")
	require.NoError(t, err)

	var order []string
	for _, m := range ms {
		order = append(order, m.String())
		assert.Same(t, src, m.Source())
	}
	assert.Equal(t, []string{"jam (1.10)", "jam (1.2)", "jam (1.1)"}, order)

	deps, err := ms[2].Dependencies()
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "butter (~> 1.0)", deps[0].String())
	assert.True(t, deps[1].Requirement().Unconstrained())
}

func TestSource_UnknownPackage(t *testing.T) {
	srv := newCatalogServer(t, breakfast)
	src, err := site.New(srv.URL, t.TempDir(), srv.Client())
	require.NoError(t, err)

	ms, err := src.Manifests(t.Context(), "caviar")
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestSource_ServerError(t *testing.T) {
	srv := newCatalogServer(t, breakfast)
	src, err := site.New(srv.URL, t.TempDir(), srv.Client())
	require.NoError(t, err)

	_, err = src.Manifests(t.Context(), "broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, site.ErrFetchFailed))
}

func TestSource_MemoizesPerName(t *testing.T) {
	srv := newCatalogServer(t, breakfast)
	src, err := site.New(srv.URL, "", srv.Client())
	require.NoError(t, err)

	first, err := src.Manifests(t.Context(), "toast")
	require.NoError(t, err)
	second, err := src.Manifests(t.Context(), "toast")
	require.NoError(t, err)

	assert.Same(t, first[0], second[0])
	assert.Equal(t, 1, srv.Hits("toast"))
}

func TestSource_DiskCache(t *testing.T) {
	srv := newCatalogServer(t, breakfast)
	cacheDir := t.TempDir()

	warm, err := site.New(srv.URL, cacheDir, srv.Client())
	require.NoError(t, err)
	_, err = warm.Manifests(t.Context(), "jam")
	require.NoError(t, err)
	require.Equal(t, 1, srv.Hits("jam"))

	cold, err := site.New(srv.URL, cacheDir, srv.Client())
	require.NoError(t, err)
	ms, err := cold.Manifests(t.Context(), "jam")
	require.NoError(t, err)
	assert.Len(t, ms, 3)
	assert.Equal(t, 1, srv.Hits("jam"), "a fresh process reads the disk cache")

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	old := time.Now().Add(-2 * site.DefaultTTL)
	require.NoError(t, os.Chtimes(filepath.Join(cacheDir, entries[0].Name()), old, old))

	stale, err := site.New(srv.URL, cacheDir, srv.Client())
	require.NoError(t, err)
	_, err = stale.Manifests(t.Context(), "jam")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits("jam"), "expired entries are fetched again")
}

func TestSource_CacheKeyCoversRemote(t *testing.T) {
	a := newCatalogServer(t, breakfast)
	b := newCatalogServer(t, map[string]site.CatalogDTO{"jam": {Name: "jam", Versions: []site.VersionDTO{{Version: "9.0"}}}})
	cacheDir := t.TempDir()

	srcA, err := site.New(a.URL, cacheDir, a.Client())
	require.NoError(t, err)
	srcB, err := site.New(b.URL, cacheDir, b.Client())
	require.NoError(t, err)

	msA, err := srcA.Manifests(t.Context(), "jam")
	require.NoError(t, err)
	msB, err := srcB.Manifests(t.Context(), "jam")
	require.NoError(t, err)

	assert.Len(t, msA, 3)
	require.Len(t, msB, 1)
	assert.Equal(t, "jam (9.0)", msB[0].String())
}

func TestSource_CachePrefetches(t *testing.T) {
	srv := newCatalogServer(t, breakfast)
	src, err := site.New(srv.URL, "", srv.Client())
	require.NoError(t, err)

	err = src.Cache(t.Context(), domaintest.ParseDeps("jam ~> 1.0", "toast", "jam >= 1.1", "caviar"))
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits("jam"))
	assert.Equal(t, 1, srv.Hits("toast"))
	assert.Equal(t, 1, srv.Hits("caviar"))

	_, err = src.Manifests(t.Context(), "jam")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits("jam"))

	err = src.Cache(t.Context(), domaintest.ParseDeps("broken"))
	assert.True(t, errors.Is(err, site.ErrFetchFailed))
}

func TestSource_MismatchedCatalog(t *testing.T) {
	srv := newCatalogServer(t, map[string]site.CatalogDTO{"jam": {Name: "marmalade"}})
	src, err := site.New(srv.URL, "", srv.Client())
	require.NoError(t, err)

	_, err = src.Manifests(t.Context(), "jam")
	assert.ErrorContains(t, err, "does not match")
}

func TestNew_RejectsInvalidRemote(t *testing.T) {
	for _, remote := range []string{"", "packages.example.com", "ftp://packages.example.com", "::bad"} {
		_, err := site.New(remote, "", nil)
		assert.Error(t, err, remote)
	}
}

func TestSource_Identity(t *testing.T) {
	a, err := site.New("https://packages.example.com", "", nil)
	require.NoError(t, err)
	b, err := site.New("https://packages.example.com", "/elsewhere", nil)
	require.NoError(t, err)
	c, err := site.New("https://mirror.example.com", "", nil)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(domaintest.NewSource("https://packages.example.com")))
	assert.Equal(t, map[string]string{"remote": "https://packages.example.com"}, a.LockOptions())
	assert.Equal(t, site.LockName, a.LockName())
}

func TestType_FromLockOptions(t *testing.T) {
	typ := site.Type("", nil)
	assert.Equal(t, "SITE", typ.LockName)

	src, err := typ.FromLockOptions(map[string]string{"remote": "https://packages.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://packages.example.com", src.String())

	_, err = typ.FromLockOptions(map[string]string{"remote": "https://x", "branch": "main"})
	assert.ErrorContains(t, err, "unexpected site source option")
}
