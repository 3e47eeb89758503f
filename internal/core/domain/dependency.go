package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// ValidateName rejects empty names and names with leading or trailing whitespace.
func ValidateName(name string) error {
	if name == "" || strings.TrimSpace(name) != name {
		return zerr.With(zerr.Wrap(ErrInvalidName, "name must be non-empty without surrounding whitespace"),
			"name", name)
	}
	return nil
}

// Dependency is a named version constraint, optionally bound to the source it must come from.
// The source reference is weak: a dependency never owns its source.
type Dependency struct {
	name        InternedString
	requirement Requirement
	source      Source
}

// NewDependency creates a Dependency. src may be nil, in which case the source is chosen by the
// fallback rule at the scheduling site.
func NewDependency(name string, req Requirement, src Source) (*Dependency, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Dependency{
		name:        NewInternedString(name),
		requirement: req,
		source:      src,
	}, nil
}

// MustNewDependency is like NewDependency but panics on error.
func MustNewDependency(name string, req Requirement, src Source) *Dependency {
	d, err := NewDependency(name, req, src)
	if err != nil {
		panic(err)
	}
	return d
}

// Name returns the dependency name.
func (d *Dependency) Name() string {
	return d.name.String()
}

// Requirement returns the version requirement.
func (d *Dependency) Requirement() Requirement {
	return d.requirement
}

// Source returns the bound source, or nil.
func (d *Dependency) Source() Source {
	return d.source
}

// WithSource returns a copy of d bound to src.
func (d *Dependency) WithSource(src Source) *Dependency {
	return &Dependency{name: d.name, requirement: d.requirement, source: src}
}

// SatisfiedBy reports whether m carries the same name and a version admitted by the requirement.
func (d *Dependency) SatisfiedBy(m *Manifest) (bool, error) {
	if m == nil || m.name != d.name {
		return false, nil
	}
	v, err := m.Version()
	if err != nil {
		return false, err
	}
	return d.requirement.SatisfiedBy(v), nil
}

// ConsistentWith reports whether d and other can be satisfied together. Dependencies on
// different names never conflict.
func (d *Dependency) ConsistentWith(other *Dependency) bool {
	return d.name != other.name || d.requirement.ConsistentWith(other.requirement)
}

// String renders "name (requirement)".
func (d *Dependency) String() string {
	return d.Name() + " (" + d.requirement.String() + ")"
}
