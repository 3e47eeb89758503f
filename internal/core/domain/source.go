package domain

import (
	"context"
	"strings"
)

// Source provides candidate manifests for package names.
type Source interface {
	// LockName is the type tag used as the block header in the lockfile.
	LockName() string

	// Manifests returns the candidates for name in the order the resolver should try them.
	// The order must be stable for identical inputs.
	Manifests(ctx context.Context, name string) ([]*Manifest, error)

	// Cache prefetches whatever the source needs to answer Manifests for deps. It is idempotent.
	Cache(ctx context.Context, deps []*Dependency) error

	// LockOptions serializes the source identity. It always contains a "remote" key.
	LockOptions() map[string]string

	// Equal reports semantic identity: same type and same locator fields.
	Equal(other Source) bool

	// String returns a stable textual identity used to order sources in the lockfile.
	String() string
}

// SourceType reconstructs sources of one kind from their lock options.
type SourceType struct {
	LockName        string
	FromLockOptions func(options map[string]string) (Source, error)
}

// MultiSource searches several sources in order and concatenates their candidates.
// It is what unbound dependencies fall back to; manifests keep their real source.
type MultiSource struct {
	sources []Source
}

// NewMultiSource creates a MultiSource searching sources in the given order.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: append([]Source(nil), sources...)}
}

// Sources returns the member sources in search order.
func (s *MultiSource) Sources() []Source {
	return append([]Source(nil), s.sources...)
}

// LockName implements Source. A MultiSource never appears in a lockfile.
func (s *MultiSource) LockName() string {
	return ""
}

// Manifests implements Source.
func (s *MultiSource) Manifests(ctx context.Context, name string) ([]*Manifest, error) {
	var out []*Manifest
	for _, src := range s.sources {
		ms, err := src.Manifests(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	return out, nil
}

// Cache implements Source.
func (s *MultiSource) Cache(ctx context.Context, deps []*Dependency) error {
	for _, src := range s.sources {
		if err := src.Cache(ctx, deps); err != nil {
			return err
		}
	}
	return nil
}

// LockOptions implements Source.
func (s *MultiSource) LockOptions() map[string]string {
	return nil
}

// Equal implements Source.
func (s *MultiSource) Equal(other Source) bool {
	o, ok := other.(*MultiSource)
	if !ok || len(o.sources) != len(s.sources) {
		return false
	}
	for i := range s.sources {
		if !s.sources[i].Equal(o.sources[i]) {
			return false
		}
	}
	return true
}

// String implements Source.
func (s *MultiSource) String() string {
	parts := make([]string, len(s.sources))
	for i, src := range s.sources {
		parts[i] = src.String()
	}
	return "default(" + strings.Join(parts, ", ") + ")"
}

// SameSource reports whether a and b denote the same source, treating nil as "unbound".
func SameSource(a, b Source) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
