package domain

import "slices"

// Spec is the root input of a resolution: what the specfile declares.
type Spec struct {
	// Dependencies are the root dependencies. A root bound to a source also overrides the source
	// of every transitive dependency with the same name.
	Dependencies []*Dependency

	// Sources are the declared sources in declaration order.
	Sources []Source

	// Cyclic allows mutually dependent manifests in a resolution.
	Cyclic bool

	// Lockfile is the path of the lockfile.
	Lockfile string
}

// DefaultSource returns the source unbound dependencies fall back to: every declared source,
// most recently declared first. It returns nil when no source is declared.
func (s *Spec) DefaultSource() Source {
	switch len(s.Sources) {
	case 0:
		return nil
	case 1:
		return s.Sources[0]
	}
	reversed := slices.Clone(s.Sources)
	slices.Reverse(reversed)
	return NewMultiSource(reversed...)
}

// SourceFor returns the source a dependency on name should use when it declares none itself.
func (s *Spec) SourceFor(name string) Source {
	for _, d := range s.Dependencies {
		if d.Name() == name && d.Source() != nil {
			return d.Source()
		}
	}
	return s.DefaultSource()
}

// Bind returns d when it already has a source, else a copy bound by SourceFor.
func (s *Spec) Bind(d *Dependency) *Dependency {
	if d.Source() != nil {
		return d
	}
	return d.WithSource(s.SourceFor(d.Name()))
}

// Dependency returns the root dependency named name, or nil.
func (s *Spec) Dependency(name string) *Dependency {
	for _, d := range s.Dependencies {
		if d.Name() == name {
			return d
		}
	}
	return nil
}
