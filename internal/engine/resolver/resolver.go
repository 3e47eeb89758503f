// Package resolver implements the backtracking dependency resolution engine.
package resolver

import (
	"context"
	"maps"
	"slices"

	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/larder/internal/core/ports"
	"go.trai.ch/zerr"
)

// Resolver searches for an assignment of manifests that satisfies a set of root dependencies.
// The search is depth-first and adopts the first assignment it finds; candidates are tried in the
// order their source returns them.
type Resolver struct {
	logger ports.Logger
}

// New creates a new Resolver.
func New(logger ports.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// state is the value carried through the search. Every level works on its own copy, so a failed
// branch leaves nothing behind for its siblings.
type state struct {
	manifests map[string]*domain.Manifest
	resolved  []*domain.Dependency
	queue     []*domain.Dependency
}

func (s state) clone() state {
	return state{
		manifests: maps.Clone(s.manifests),
		resolved:  slices.Clone(s.resolved),
		queue:     slices.Clone(s.queue),
	}
}

// search holds what stays fixed during one Resolve call.
type search struct {
	ctx        context.Context
	spec       *domain.Spec
	logger     ports.Logger
	candidates map[candidateKey][]*domain.Manifest
}

type candidateKey struct {
	source string
	name   string
}

// Resolve resolves the root dependencies of spec, starting from the partial manifests (usually
// taken from a previous lockfile). When no consistent assignment exists it returns a failed
// Resolution and a nil error; errors are reserved for sources and manifests that cannot be read.
func (r *Resolver) Resolve(ctx context.Context, spec *domain.Spec, partial []*domain.Manifest) (*domain.Resolution, error) {
	initial := state{manifests: make(map[string]*domain.Manifest, len(partial))}
	for _, d := range spec.Dependencies {
		initial.queue = append(initial.queue, spec.Bind(d))
	}
	for _, m := range domain.NewManifestSet(partial...).Manifests() {
		initial.manifests[m.Name()] = m
		deps, err := m.Dependencies()
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to load locked manifest"), "manifest", m.Name())
		}
		for _, d := range deps {
			initial.queue = append(initial.queue, spec.Bind(d))
		}
	}

	if !spec.Cyclic && len(partial) > 0 {
		graph, err := domain.DependencyGraph(slices.Collect(maps.Values(initial.manifests)))
		if err != nil {
			return nil, err
		}
		if domain.Cyclic(graph) {
			r.logger.Debug("locked manifests form a cycle", "manifests", len(initial.manifests))
			return domain.NewFailedResolution(spec.Dependencies), nil
		}
	}

	s := &search{
		ctx:        ctx,
		spec:       spec,
		logger:     r.logger,
		candidates: make(map[candidateKey][]*domain.Manifest),
	}
	assigned, ok, err := s.resolve(initial)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Debug("no consistent assignment found")
		return domain.NewFailedResolution(spec.Dependencies), nil
	}

	manifests := slices.Collect(maps.Values(assigned))
	if err := r.verify(spec, manifests); err != nil {
		return nil, err
	}
	sorted, err := domain.SortManifests(manifests)
	if err != nil {
		return nil, err
	}
	return domain.NewResolution(spec.Dependencies, sorted), nil
}

// verify re-checks the invariants the search is supposed to maintain.
func (r *Resolver) verify(spec *domain.Spec, manifests []*domain.Manifest) error {
	consistent, err := domain.NewManifestSet(manifests...).Consistent()
	if err != nil {
		return err
	}
	if !consistent {
		return zerr.Wrap(domain.ErrInconsistentResolution, "resolved manifests do not satisfy each other")
	}
	if spec.Cyclic {
		return nil
	}
	graph, err := domain.DependencyGraph(manifests)
	if err != nil {
		return err
	}
	if _, err := domain.TSort(graph); err != nil {
		return zerr.Wrap(err, "resolved manifests are cyclic")
	}
	return nil
}

func (s *search) resolve(st state) (map[string]*domain.Manifest, bool, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, false, err
	}

	st, ok, err := s.drain(st.clone())
	if err != nil || !ok {
		return nil, false, err
	}
	if len(st.queue) == 0 {
		return st.manifests, true, nil
	}

	dep := st.queue[0]
	st.queue = st.queue[1:]
	st.resolved = append(st.resolved, dep)

	candidates, err := s.manifestsFor(dep)
	if err != nil {
		return nil, false, err
	}
	for _, m := range candidates {
		ok, err := s.admissible(st, dep, m)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}

		next := st.clone()
		next.manifests[dep.Name()] = m
		deps, err := m.Dependencies()
		if err != nil {
			return nil, false, zerr.With(zerr.Wrap(err, "failed to load manifest dependencies"), "manifest", m.String())
		}
		for _, d := range deps {
			next.queue = append(next.queue, s.spec.Bind(d))
		}

		result, ok, err := s.resolve(next)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return result, true, nil
		}
		s.logger.Debug("backtracking", "dependency", dep.String(), "manifest", m.String())
	}

	s.logger.Debug("no candidate satisfies dependency", "dependency", dep.String())
	return nil, false, nil
}

// drain moves queued dependencies whose name already has a manifest to resolved, failing the
// branch when one of them conflicts.
func (s *search) drain(st state) (state, bool, error) {
	for len(st.queue) > 0 {
		dep := st.queue[0]
		m, ok := st.manifests[dep.Name()]
		if !ok {
			break
		}

		sat, err := dep.SatisfiedBy(m)
		if err != nil {
			return st, false, err
		}
		if !sat {
			s.logger.Debug("conflict", "dependency", dep.String(), "manifest", m.String())
			return st, false, nil
		}
		if other := firstInconsistent(dep, st.resolved, st.queue); other != nil {
			s.logger.Debug("conflict", "dependency", dep.String(), "with", other.String())
			return st, false, nil
		}

		st.queue = st.queue[1:]
		st.resolved = append(st.resolved, dep)
	}
	return st, true, nil
}

func firstInconsistent(dep *domain.Dependency, lists ...[]*domain.Dependency) *domain.Dependency {
	for _, list := range lists {
		for _, d := range list {
			if !dep.ConsistentWith(d) {
				return d
			}
		}
	}
	return nil
}

// admissible reports whether m can be assigned for dep: every resolved or queued dependency on
// the same name must accept it, and unless cycles are allowed it must not close a cycle.
func (s *search) admissible(st state, dep *domain.Dependency, m *domain.Manifest) (bool, error) {
	for _, list := range [][]*domain.Dependency{st.resolved, st.queue} {
		for _, d := range list {
			if d.Name() != m.Name() {
				continue
			}
			sat, err := d.SatisfiedBy(m)
			if err != nil {
				return false, err
			}
			if !sat {
				s.logger.Debug("candidate rejected", "manifest", m.String(), "dependency", d.String())
				return false, nil
			}
		}
	}

	if s.spec.Cyclic {
		return true, nil
	}
	tentative := slices.Collect(maps.Values(st.manifests))
	tentative = slices.DeleteFunc(tentative, func(o *domain.Manifest) bool { return o.Name() == dep.Name() })
	tentative = append(tentative, m)
	graph, err := domain.DependencyGraph(tentative)
	if err != nil {
		return false, err
	}
	if domain.Cyclic(graph) {
		s.logger.Debug("candidate closes a cycle", "manifest", m.String())
		return false, nil
	}
	return true, nil
}

// manifestsFor returns the candidates for dep from its bound source, prefetching on first use.
func (s *search) manifestsFor(dep *domain.Dependency) ([]*domain.Manifest, error) {
	src := dep.Source()
	if src == nil {
		s.logger.Debug("no source for dependency", "dependency", dep.String())
		return nil, nil
	}

	key := candidateKey{source: src.String(), name: dep.Name()}
	if ms, ok := s.candidates[key]; ok {
		return ms, nil
	}

	if err := src.Cache(s.ctx, []*domain.Dependency{dep}); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to cache source"), "source", src.String())
	}
	all, err := src.Manifests(s.ctx, dep.Name())
	if err != nil {
		return nil, zerr.With(zerr.With(zerr.Wrap(err, "failed to list manifests"), "source", src.String()),
			"dependency", dep.Name())
	}
	ms := slices.DeleteFunc(slices.Clone(all), func(m *domain.Manifest) bool { return m.Name() != dep.Name() })
	s.logger.Debug("resolving", "dependency", dep.String(), "candidates", len(ms))
	s.candidates[key] = ms
	return ms, nil
}
