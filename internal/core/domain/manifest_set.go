package domain

import (
	"maps"
	"slices"
)

// ManifestSet is a name-keyed collection of manifests with closure operations.
// It is a value: every operation returns a new set and leaves the receiver untouched.
type ManifestSet struct {
	index map[string]*Manifest
}

// NewManifestSet creates a set from manifests. A later manifest replaces an earlier one with the
// same name.
func NewManifestSet(manifests ...*Manifest) *ManifestSet {
	return &ManifestSet{index: indexByName(manifests)}
}

// Len returns the number of manifests in the set.
func (s *ManifestSet) Len() int {
	return len(s.index)
}

// Get returns the manifest named name, or nil.
func (s *ManifestSet) Get(name string) *Manifest {
	return s.index[name]
}

// Names returns the names in the set, sorted.
func (s *ManifestSet) Names() []string {
	return slices.Sorted(maps.Keys(s.index))
}

// Manifests returns the manifests in name order.
func (s *ManifestSet) Manifests() []*Manifest {
	names := s.Names()
	out := make([]*Manifest, len(names))
	for i, n := range names {
		out[i] = s.index[n]
	}
	return out
}

// ShallowStrip returns a copy without the named entries. Dependency edges are not followed.
func (s *ManifestSet) ShallowStrip(names ...string) *ManifestSet {
	out := maps.Clone(s.index)
	for _, n := range names {
		delete(out, n)
	}
	return &ManifestSet{index: out}
}

// ShallowKeep returns a copy holding only the named entries. Dependency edges are not followed.
func (s *ManifestSet) ShallowKeep(names ...string) *ManifestSet {
	out := make(map[string]*Manifest, len(names))
	for _, n := range names {
		if m, ok := s.index[n]; ok {
			out[n] = m
		}
	}
	return &ManifestSet{index: out}
}

// DeepStrip returns a copy without the named entries and everything reachable from them through
// dependency edges. There is no reference counting: an entry another kept entry still depends on
// is removed all the same.
func (s *ManifestSet) DeepStrip(names ...string) (*ManifestSet, error) {
	closure, err := s.closure(names)
	if err != nil {
		return nil, err
	}
	return s.ShallowStrip(closure...), nil
}

// DeepKeep returns a copy holding only the named entries and everything reachable from them
// through dependency edges.
func (s *ManifestSet) DeepKeep(names ...string) (*ManifestSet, error) {
	closure, err := s.closure(names)
	if err != nil {
		return nil, err
	}
	return s.ShallowKeep(closure...), nil
}

// closure expands names over dependency edges of entries present in the set. Names absent from
// the set are returned but never expanded.
func (s *ManifestSet) closure(names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	frontier := slices.Clone(names)
	for len(frontier) > 0 {
		name := frontier[0]
		frontier = frontier[1:]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		m, ok := s.index[name]
		if !ok {
			continue
		}
		deps, err := m.Dependencies()
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			if _, ok := seen[d.Name()]; !ok {
				frontier = append(frontier, d.Name())
			}
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Consistent reports whether every dependency of every entry is either absent from the set or
// satisfied by the entry of that name.
func (s *ManifestSet) Consistent() (bool, error) {
	for _, m := range s.Manifests() {
		deps, err := m.Dependencies()
		if err != nil {
			return false, err
		}
		for _, d := range deps {
			target, ok := s.index[d.Name()]
			if !ok {
				continue
			}
			sat, err := d.SatisfiedBy(target)
			if err != nil || !sat {
				return false, err
			}
		}
	}
	return true, nil
}

// InComplianceWith reports whether every one of deps is present in the set and satisfied by the
// entry of that name.
func (s *ManifestSet) InComplianceWith(deps []*Dependency) (bool, error) {
	for _, d := range deps {
		sat, err := d.SatisfiedBy(s.index[d.Name()])
		if err != nil || !sat {
			return false, err
		}
	}
	return true, nil
}

// Sorted returns the manifests in install order. See SortManifests.
func (s *ManifestSet) Sorted() ([]*Manifest, error) {
	return SortManifests(s.Manifests())
}

// SortManifests orders manifests so that dependencies come before their dependents, breaking
// ties by name. Dependencies on names outside manifests are ignored, and cycles are broken by
// removing the feedback arc set of the name graph.
func SortManifests(manifests []*Manifest) ([]*Manifest, error) {
	index := indexByName(manifests)
	graph, err := DependencyGraph(manifests)
	if err != nil {
		return nil, err
	}
	order := TSortCyclic(graph)
	out := make([]*Manifest, len(order))
	for i, name := range order {
		out[i] = index[name]
	}
	return out, nil
}

// DependencyGraph returns the name graph of manifests. Edges to names outside manifests are
// dropped.
func DependencyGraph(manifests []*Manifest) (AdjacencyList, error) {
	index := indexByName(manifests)
	graph := make(AdjacencyList, len(index))
	for name, m := range index {
		deps, err := m.Dependencies()
		if err != nil {
			return nil, err
		}
		succ := make([]string, 0, len(deps))
		for _, d := range deps {
			if _, ok := index[d.Name()]; ok {
				succ = append(succ, d.Name())
			}
		}
		graph[name] = succ
	}
	return graph, nil
}
