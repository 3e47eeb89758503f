package domain

import "sync"

// ManifestLoader supplies the lazily computed parts of a manifest. Each function is called at most
// once; its result, error included, is memoized.
type ManifestLoader struct {
	Version      func() (Version, error)
	Dependencies func() ([]*Dependency, error)
}

// Manifest is a concrete, versioned package produced by a Source. Manifests from different sources
// are never merged, even when name and version coincide.
type Manifest struct {
	source       Source
	name         InternedString
	version      func() (Version, error)
	dependencies func() ([]*Dependency, error)
}

// NewManifest creates a manifest whose version and dependencies are computed on first use.
func NewManifest(src Source, name string, loader ManifestLoader) (*Manifest, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	versionFn := loader.Version
	if versionFn == nil {
		versionFn = func() (Version, error) { return Version{}, nil }
	}
	depsFn := loader.Dependencies
	if depsFn == nil {
		depsFn = func() ([]*Dependency, error) { return nil, nil }
	}
	return &Manifest{
		source:       src,
		name:         NewInternedString(name),
		version:      sync.OnceValues(versionFn),
		dependencies: sync.OnceValues(depsFn),
	}, nil
}

// NewFixedManifest creates a manifest whose version and dependencies are already known.
func NewFixedManifest(src Source, name string, version Version, deps []*Dependency) (*Manifest, error) {
	return NewManifest(src, name, ManifestLoader{
		Version:      func() (Version, error) { return version, nil },
		Dependencies: func() ([]*Dependency, error) { return deps, nil },
	})
}

// MustNewManifest is like NewFixedManifest but panics on error.
func MustNewManifest(src Source, name string, version Version, deps []*Dependency) *Manifest {
	m, err := NewFixedManifest(src, name, version, deps)
	if err != nil {
		panic(err)
	}
	return m
}

// Source returns the source that produced the manifest.
func (m *Manifest) Source() Source {
	return m.source
}

// Name returns the package name.
func (m *Manifest) Name() string {
	return m.name.String()
}

// Version returns the package version, loading it on first call.
func (m *Manifest) Version() (Version, error) {
	return m.version()
}

// Dependencies returns the declared dependencies, loading them on first call. The slice must not
// be modified.
func (m *Manifest) Dependencies() ([]*Dependency, error) {
	return m.dependencies()
}

// DependencyNames returns the names of the declared dependencies in declaration order.
func (m *Manifest) DependencyNames() ([]string, error) {
	deps, err := m.Dependencies()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name()
	}
	return names, nil
}

// Satisfies reports whether m satisfies d.
func (m *Manifest) Satisfies(d *Dependency) (bool, error) {
	return d.SatisfiedBy(m)
}

// String renders "name (version)" when the version is available, else the bare name.
func (m *Manifest) String() string {
	v, err := m.Version()
	if err != nil || v.IsZero() {
		return m.Name()
	}
	return m.Name() + " (" + v.String() + ")"
}

func indexByName(manifests []*Manifest) map[string]*Manifest {
	index := make(map[string]*Manifest, len(manifests))
	for _, m := range manifests {
		index[m.Name()] = m
	}
	return index
}
