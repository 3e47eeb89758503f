// Package app implements the application layer for larder.
package app

import (
	"context"
	"errors"
	"runtime"
	"slices"

	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/larder/internal/core/ports"
	"go.trai.ch/larder/internal/engine/lockfile"
	"go.trai.ch/larder/internal/engine/resolver"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	specLoader ports.SpecLoader
	store      ports.LockfileStore
	resolver   *resolver.Resolver
	lockfile   *lockfile.Lockfile
	logger     ports.Logger
	workDir    string
}

// New creates a new App instance working in the current directory.
func New(
	loader ports.SpecLoader,
	store ports.LockfileStore,
	res *resolver.Resolver,
	lf *lockfile.Lockfile,
	logger ports.Logger,
) *App {
	return &App{
		specLoader: loader,
		store:      store,
		resolver:   res,
		lockfile:   lf,
		logger:     logger,
		workDir:    ".",
	}
}

// WithWorkDir sets the directory the specfile is loaded from.
func (a *App) WithWorkDir(dir string) *App {
	a.workDir = dir
	return a
}

// Lock resolves the specfile and writes the lockfile. Locked manifests whose root dependency is
// unchanged are kept when they still fit, so locking is stable across runs.
func (a *App) Lock(ctx context.Context) (*domain.Resolution, error) {
	spec, err := a.loadSpec()
	if err != nil {
		return nil, err
	}
	previous, text, err := a.readLocked(spec)
	if err != nil {
		return nil, err
	}

	var keep *domain.ManifestSet
	if previous != nil {
		if keep, err = reusable(spec, previous, nil); err != nil {
			return nil, err
		}
	}
	return a.resolveAndWrite(ctx, spec, keep, text)
}

// Update re-resolves the named packages, or everything when names is empty, and writes the
// lockfile. Each name must be locked.
func (a *App) Update(ctx context.Context, names []string) (*domain.Resolution, error) {
	spec, err := a.loadSpec()
	if err != nil {
		return nil, err
	}
	previous, text, err := a.readLocked(spec)
	if err != nil {
		return nil, err
	}

	var keep *domain.ManifestSet
	if len(names) > 0 {
		var locked *domain.ManifestSet
		if previous != nil {
			if locked, err = previous.ManifestSet(); err != nil {
				return nil, err
			}
		}
		for _, name := range names {
			if locked == nil || locked.Get(name) == nil {
				return nil, zerr.With(zerr.Wrap(domain.ErrNotLocked, "cannot update"), "name", name)
			}
		}
		if keep, err = reusable(spec, previous, names); err != nil {
			return nil, err
		}
	}
	return a.resolveAndWrite(ctx, spec, keep, text)
}

// Check verifies that the lockfile is internally correct and satisfies every root dependency of
// the specfile. It fails with ErrLockfileOutdated otherwise.
func (a *App) Check(_ context.Context) error {
	spec, err := a.loadSpec()
	if err != nil {
		return err
	}
	res, err := a.loadLocked(spec)
	if err != nil {
		return err
	}

	if !res.Correct() {
		return zerr.Wrap(domain.ErrLockfileOutdated, "locked manifests do not satisfy their dependencies")
	}
	set, err := res.ManifestSet()
	if err != nil {
		return err
	}
	for _, d := range spec.Dependencies {
		m := set.Get(d.Name())
		ok, err := d.SatisfiedBy(m)
		if err != nil {
			return err
		}
		if !ok {
			return zerr.With(zerr.Wrap(domain.ErrLockfileOutdated, "root dependency is not satisfied"),
				"dependency", d.String())
		}
		if d.Source() != nil && !d.Source().Equal(m.Source()) {
			return zerr.With(zerr.With(zerr.Wrap(domain.ErrLockfileOutdated, "locked from another source"),
				"dependency", d.Name()), "source", d.Source().String())
		}
	}
	if !spec.Cyclic {
		manifests, err := res.Manifests()
		if err != nil {
			return err
		}
		graph, err := domain.DependencyGraph(manifests)
		if err != nil {
			return err
		}
		if _, err := domain.TSort(graph); err != nil {
			return zerr.Wrap(domain.ErrLockfileOutdated, err.Error())
		}
	}

	a.logger.Info("lockfile satisfies " + spec.Lockfile)
	return nil
}

// Show returns the locked manifests in install order.
func (a *App) Show(_ context.Context) ([]*domain.Manifest, error) {
	spec, err := a.loadSpec()
	if err != nil {
		return nil, err
	}
	res, err := a.loadLocked(spec)
	if err != nil {
		return nil, err
	}
	return res.Manifests()
}

func (a *App) loadSpec() (*domain.Spec, error) {
	spec, err := a.specLoader.Load(a.workDir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load specfile")
	}
	return spec, nil
}

// loadLocked parses the lockfile of spec, which must exist.
func (a *App) loadLocked(spec *domain.Spec) (*domain.Resolution, error) {
	text, err := a.store.Read(spec.Lockfile)
	if err != nil {
		return nil, err
	}
	res, err := a.lockfile.Load(text)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse lockfile"), "path", spec.Lockfile)
	}
	return res, nil
}

// readLocked is loadLocked for workflows that can start without a lockfile; it returns nil then.
func (a *App) readLocked(spec *domain.Spec) (*domain.Resolution, string, error) {
	text, err := a.store.Read(spec.Lockfile)
	if errors.Is(err, domain.ErrLockfileNotFound) {
		a.logger.Debug("no lockfile", "path", spec.Lockfile)
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	res, err := a.lockfile.Load(text)
	if err != nil {
		return nil, "", zerr.With(zerr.Wrap(err, "failed to parse lockfile"), "path", spec.Lockfile)
	}
	return res, text, nil
}

// reusable returns the locked manifests that may seed a new resolution: everything reachable
// from current roots, minus whatever is reachable from roots that changed, were removed, or are
// named in update.
func reusable(spec *domain.Spec, previous *domain.Resolution, update []string) (*domain.ManifestSet, error) {
	set, err := previous.ManifestSet()
	if err != nil {
		return nil, err
	}

	locked := make(map[string]*domain.Dependency, len(previous.Dependencies()))
	for _, d := range previous.Dependencies() {
		locked[d.Name()] = d
	}

	strip := slices.Clone(update)
	for _, d := range spec.Dependencies {
		if l, ok := locked[d.Name()]; !ok || !unchanged(d, l) {
			strip = append(strip, d.Name())
		}
	}
	for name := range locked {
		if spec.Dependency(name) == nil {
			strip = append(strip, name)
		}
	}

	if set, err = set.DeepStrip(strip...); err != nil {
		return nil, err
	}
	roots := make([]string, len(spec.Dependencies))
	for i, d := range spec.Dependencies {
		roots[i] = d.Name()
	}
	return set.DeepKeep(roots...)
}

// unchanged reports whether a specfile root still matches its locked counterpart. A locked root
// is always bound to the source of its manifest, so an unbound specfile root matches any source.
func unchanged(current, locked *domain.Dependency) bool {
	if !current.Requirement().Equal(locked.Requirement()) {
		return false
	}
	return current.Source() == nil || domain.SameSource(current.Source(), locked.Source())
}

// reuse returns keep as a complete resolution of spec when it already is one.
func reuse(spec *domain.Spec, keep *domain.ManifestSet) (*domain.Resolution, bool, error) {
	if keep == nil || keep.Len() == 0 {
		return nil, false, nil
	}
	candidate := domain.NewResolution(spec.Dependencies, keep.Manifests())
	if !candidate.Correct() {
		return nil, false, nil
	}
	if !spec.Cyclic {
		graph, err := domain.DependencyGraph(keep.Manifests())
		if err != nil {
			return nil, false, err
		}
		if domain.Cyclic(graph) {
			return nil, false, nil
		}
	}
	sorted, err := keep.Sorted()
	if err != nil {
		return nil, false, err
	}
	return domain.NewResolution(spec.Dependencies, sorted), true, nil
}

func (a *App) resolveAndWrite(ctx context.Context, spec *domain.Spec, keep *domain.ManifestSet, previousText string) (*domain.Resolution, error) {
	res, ok, err := reuse(spec, keep)
	if err != nil {
		return nil, err
	}
	if ok {
		a.logger.Debug("locked manifests still satisfy the specfile", "manifests", keep.Len())
	} else {
		if res, err = a.resolve(ctx, spec, keep); err != nil {
			return nil, err
		}
	}

	text, err := a.lockfile.Save(res)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to compile lockfile")
	}
	if text == previousText {
		a.logger.Info(spec.Lockfile + " is up to date")
		return res, nil
	}
	if err := a.store.Write(spec.Lockfile, text); err != nil {
		return nil, err
	}
	a.logger.Info("wrote " + spec.Lockfile)
	return res, nil
}

func (a *App) resolve(ctx context.Context, spec *domain.Spec, keep *domain.ManifestSet) (*domain.Resolution, error) {
	if err := a.prefetch(ctx, spec); err != nil {
		return nil, zerr.Wrap(err, "failed to prefetch sources")
	}

	var partial []*domain.Manifest
	if keep != nil {
		partial = keep.Manifests()
	}
	res, err := a.resolver.Resolve(ctx, spec, partial)
	if err != nil {
		return nil, err
	}
	if !res.Resolved() && len(partial) > 0 {
		a.logger.Debug("locked manifests conflict, resolving from scratch", "manifests", len(partial))
		if res, err = a.resolver.Resolve(ctx, spec, nil); err != nil {
			return nil, err
		}
	}
	if !res.Resolved() {
		names := make([]string, len(spec.Dependencies))
		for i, d := range spec.Dependencies {
			names[i] = d.String()
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrResolutionFailed, "no consistent set of manifests"),
			"dependencies", names)
	}
	return res, nil
}

type prefetchBatch struct {
	source domain.Source
	deps   []*domain.Dependency
}

// prefetch warms every source with the root dependencies bound to it, one goroutine per source.
func (a *App) prefetch(ctx context.Context, spec *domain.Spec) error {
	var batches []*prefetchBatch
	for _, d := range spec.Dependencies {
		bound := spec.Bind(d)
		if bound.Source() == nil {
			continue
		}
		i := slices.IndexFunc(batches, func(b *prefetchBatch) bool { return b.source.Equal(bound.Source()) })
		if i < 0 {
			batches = append(batches, &prefetchBatch{source: bound.Source()})
			i = len(batches) - 1
		}
		batches[i].deps = append(batches[i].deps, bound)
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, b := range batches {
		g.Go(func() error {
			return b.source.Cache(groupCtx, b.deps)
		})
	}
	return g.Wait()
}

// SetLogLevel changes the minimum level the application logs at.
func (a *App) SetLogLevel(level domain.LogLevel) {
	a.logger.SetLevel(level)
}
