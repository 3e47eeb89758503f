// Package domaintest provides an in-memory domain.Source for tests.
package domaintest

import (
	"context"
	"strings"
	"sync"

	"go.trai.ch/larder/internal/core/domain"
)

// LockName is the lockfile header of in-memory sources.
const LockName = "MEMORY"

type entry struct {
	name    string
	version string
	deps    []string
}

// Source is an in-memory catalog. Candidates are returned in the order they were added.
type Source struct {
	name string

	mu        sync.Mutex
	entries   []entry
	built     map[string][]*domain.Manifest
	lookups   []string
	cacheHits int

	// ManifestsErr, when set, is returned by every Manifests call.
	ManifestsErr error
	// CacheErr, when set, is returned by every Cache call.
	CacheErr error
}

// NewSource creates an empty source identified by name.
func NewSource(name string) *Source {
	return &Source{name: name, built: make(map[string][]*domain.Manifest)}
}

// Add registers a candidate. Each dependency is written "name" or "name <requirement>", for
// example "butter >= 1.0". It panics on malformed input.
func (s *Source) Add(name, version string, deps ...string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{name: name, version: version, deps: deps})
	delete(s.built, name)
	return s
}

// Name returns the source identity.
func (s *Source) Name() string {
	return s.name
}

// Lookups returns the names passed to Manifests, in call order.
func (s *Source) Lookups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lookups...)
}

// CacheCalls returns how many times Cache was called.
func (s *Source) CacheCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cacheHits
}

// LockName implements domain.Source.
func (s *Source) LockName() string {
	return LockName
}

// Manifests implements domain.Source.
func (s *Source) Manifests(_ context.Context, name string) ([]*domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, name)
	if s.ManifestsErr != nil {
		return nil, s.ManifestsErr
	}
	if ms, ok := s.built[name]; ok {
		return ms, nil
	}
	var ms []*domain.Manifest
	for _, e := range s.entries {
		if e.name != name {
			continue
		}
		ms = append(ms, domain.MustNewManifest(s, e.name, domain.MustParseVersion(e.version), ParseDeps(e.deps...)))
	}
	s.built[name] = ms
	return ms, nil
}

// Cache implements domain.Source.
func (s *Source) Cache(context.Context, []*domain.Dependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheHits++
	return s.CacheErr
}

// LockOptions implements domain.Source.
func (s *Source) LockOptions() map[string]string {
	return map[string]string{"remote": s.name}
}

// Equal implements domain.Source.
func (s *Source) Equal(other domain.Source) bool {
	o, ok := other.(*Source)
	return ok && o.name == s.name
}

// String implements domain.Source.
func (s *Source) String() string {
	return s.name
}

// Type returns the source type of in-memory sources. Lock options naming one of known map back to
// that instance; any other remote yields a fresh empty source.
func Type(known ...*Source) domain.SourceType {
	return domain.SourceType{
		LockName: LockName,
		FromLockOptions: func(options map[string]string) (domain.Source, error) {
			remote := options["remote"]
			for _, s := range known {
				if s.name == remote {
					return s, nil
				}
			}
			return NewSource(remote), nil
		},
	}
}

// Dep builds an unbound dependency from "name" or "name <requirement>". It panics on malformed
// input.
func Dep(expr string) *domain.Dependency {
	name, req, _ := strings.Cut(strings.TrimSpace(expr), " ")
	return domain.MustNewDependency(name, domain.MustParseRequirement(req), nil)
}

// ParseDeps applies Dep to each expression.
func ParseDeps(exprs ...string) []*domain.Dependency {
	deps := make([]*domain.Dependency, len(exprs))
	for i, e := range exprs {
		deps[i] = Dep(e)
	}
	return deps
}
