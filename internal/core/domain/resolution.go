package domain

import "slices"

// Resolution is the result of a resolve or a lockfile load: the root dependencies and the
// manifests assigned to them. A failed resolution has no manifests.
type Resolution struct {
	dependencies []*Dependency
	manifests    []*Manifest
	resolved     bool
}

// NewResolution creates a successful resolution. The manifests keep the given order.
func NewResolution(deps []*Dependency, manifests []*Manifest) *Resolution {
	return &Resolution{
		dependencies: slices.Clone(deps),
		manifests:    slices.Clone(manifests),
		resolved:     true,
	}
}

// NewFailedResolution creates a resolution for roots that could not be satisfied.
func NewFailedResolution(deps []*Dependency) *Resolution {
	return &Resolution{dependencies: slices.Clone(deps)}
}

// Resolved reports whether the resolution carries manifests.
func (r *Resolution) Resolved() bool {
	return r.resolved
}

// Dependencies returns the root dependencies.
func (r *Resolution) Dependencies() []*Dependency {
	return slices.Clone(r.dependencies)
}

// Manifests returns the assigned manifests, or ErrUnresolved for a failed resolution.
func (r *Resolution) Manifests() ([]*Manifest, error) {
	if !r.resolved {
		return nil, ErrUnresolved
	}
	return slices.Clone(r.manifests), nil
}

// ManifestSet returns the assigned manifests as a set, or ErrUnresolved for a failed resolution.
func (r *Resolution) ManifestSet() (*ManifestSet, error) {
	if !r.resolved {
		return nil, ErrUnresolved
	}
	return NewManifestSet(r.manifests...), nil
}

// Correct reports whether the manifests exist, satisfy every root dependency, and satisfy each
// other's dependencies. It trusts nothing about how the resolution was produced. Manifests that
// fail to load make the resolution incorrect.
func (r *Resolution) Correct() bool {
	if !r.resolved {
		return false
	}
	set := NewManifestSet(r.manifests...)
	if ok, err := set.InComplianceWith(r.dependencies); err != nil || !ok {
		return false
	}
	for _, m := range r.manifests {
		deps, err := m.Dependencies()
		if err != nil {
			return false
		}
		if ok, err := set.InComplianceWith(deps); err != nil || !ok {
			return false
		}
	}
	return true
}
