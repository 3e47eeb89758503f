package app_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/larder/internal/app"
	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/larder/internal/core/domain/domaintest"
	"go.trai.ch/larder/internal/core/ports/mocks"
	"go.trai.ch/larder/internal/engine/lockfile"
	"go.trai.ch/larder/internal/engine/resolver"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

const lockPath = "/project/Larderfile.lock"

type fixture struct {
	app   *app.App
	store *mocks.MockLockfileStore
	spec  *domain.Spec
}

func newFixture(t *testing.T, src *domaintest.Source, roots ...string) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()

	spec := &domain.Spec{
		Dependencies: domaintest.ParseDeps(roots...),
		Sources:      []domain.Source{src},
		Lockfile:     lockPath,
	}
	loader := mocks.NewMockSpecLoader(ctrl)
	loader.EXPECT().Load(".").Return(spec, nil).AnyTimes()

	store := mocks.NewMockLockfileStore(ctrl)
	lf := lockfile.New([]domain.SourceType{domaintest.Type(src)})

	return &fixture{
		app:   app.New(loader, store, resolver.New(log), lf, log),
		store: store,
		spec:  spec,
	}
}

func (f *fixture) noLockfile() {
	f.store.EXPECT().Read(lockPath).Return("", zerr.Wrap(domain.ErrLockfileNotFound, "no lockfile"))
}

func (f *fixture) locked(text string) {
	f.store.EXPECT().Read(lockPath).Return(text, nil)
}

func (f *fixture) expectWrite(text string) {
	f.store.EXPECT().Write(lockPath, text).Return(nil)
}

func versions(t *testing.T, res *domain.Resolution) []string {
	t.Helper()
	ms, err := res.Manifests()
	require.NoError(t, err)
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.String()
	}
	return out
}

func breakfastSource() *domaintest.Source {
	return domaintest.NewSource("main").
		Add("butter", "1.1").
		Add("butter", "1.0").
		Add("jam", "1.2", "butter >= 1.0").
		Add("toast", "2.0", "jam ~> 1.2", "butter")
}

const breakfastLock = `MEMORY
  remote: main
  specs:
    butter (1.1)
    jam (1.2)
      butter (>= 1.0)
    toast (2.0)
      butter (>= 0)
      jam (~> 1.2)

DEPENDENCIES
  jam (~> 1.2)
  toast

`

func TestApp_Lock_Fresh(t *testing.T) {
	f := newFixture(t, breakfastSource(), "jam ~> 1.2", "toast")
	f.noLockfile()
	f.expectWrite(breakfastLock)

	res, err := f.app.Lock(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"butter (1.1)", "jam (1.2)", "toast (2.0)"}, versions(t, res))
}

func TestApp_Lock_UpToDate(t *testing.T) {
	src := breakfastSource()
	f := newFixture(t, src, "jam ~> 1.2", "toast")
	f.locked(breakfastLock)

	res, err := f.app.Lock(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Correct())
	assert.Empty(t, src.Lookups(), "a satisfying lockfile is reused without asking sources")
	assert.Zero(t, src.CacheCalls())
}

func TestApp_Lock_KeepsLockedVersions(t *testing.T) {
	f := newFixture(t, breakfastSource(), "jam ~> 1.2", "toast")
	f.locked(`MEMORY
  remote: main
  specs:
    butter (1.0)
    jam (1.2)
      butter (>= 1.0)

DEPENDENCIES
  jam (~> 1.2)

`)
	f.expectWrite(`MEMORY
  remote: main
  specs:
    butter (1.0)
    jam (1.2)
      butter (>= 1.0)
    toast (2.0)
      butter (>= 0)
      jam (~> 1.2)

DEPENDENCIES
  jam (~> 1.2)
  toast

`)

	res, err := f.app.Lock(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"butter (1.0)", "jam (1.2)", "toast (2.0)"}, versions(t, res))
}

func TestApp_Lock_ChangedRequirementIsResolvedAgain(t *testing.T) {
	src := domaintest.NewSource("main").
		Add("jam", "1.3", "butter >= 1.1").
		Add("jam", "1.2", "butter >= 1.0").
		Add("butter", "1.1").
		Add("butter", "1.0")
	f := newFixture(t, src, "jam >= 1.3")
	f.locked(`MEMORY
  remote: main
  specs:
    butter (1.0)
    jam (1.2)
      butter (>= 1.0)

DEPENDENCIES
  jam (~> 1.2)

`)
	f.expectWrite(`MEMORY
  remote: main
  specs:
    butter (1.1)
    jam (1.3)
      butter (>= 1.1)

DEPENDENCIES
  jam (>= 1.3)

`)

	res, err := f.app.Lock(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"butter (1.1)", "jam (1.3)"}, versions(t, res))
}

func TestApp_Lock_ConflictingLockIsDiscarded(t *testing.T) {
	src := domaintest.NewSource("main").
		Add("jam", "1.3").
		Add("jam", "1.2").
		Add("toast", "1.0", "jam >= 1.3")
	f := newFixture(t, src, "jam", "toast")
	f.locked(`MEMORY
  remote: main
  specs:
    jam (1.2)

DEPENDENCIES
  jam

`)
	f.expectWrite(`MEMORY
  remote: main
  specs:
    jam (1.3)
    toast (1.0)
      jam (>= 1.3)

DEPENDENCIES
  jam
  toast

`)

	res, err := f.app.Lock(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"jam (1.3)", "toast (1.0)"}, versions(t, res))
}

func TestApp_Lock_CyclicLockIsDiscarded(t *testing.T) {
	src := domaintest.NewSource("main").
		Add("jam", "1.0", "butter").
		Add("butter", "2.0", "jam").
		Add("butter", "1.0")
	f := newFixture(t, src, "jam")
	f.locked(`MEMORY
  remote: main
  specs:
    butter (2.0)
      jam (>= 0)
    jam (1.0)
      butter (>= 0)

DEPENDENCIES
  jam

`)
	f.expectWrite(`MEMORY
  remote: main
  specs:
    butter (1.0)
    jam (1.0)
      butter (>= 0)

DEPENDENCIES
  jam

`)

	res, err := f.app.Lock(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"butter (1.0)", "jam (1.0)"}, versions(t, res))
}

func TestApp_Lock_Unsatisfiable(t *testing.T) {
	f := newFixture(t, breakfastSource(), "jam >= 5")
	f.noLockfile()

	_, err := f.app.Lock(t.Context())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrResolutionFailed))
}

func TestApp_Lock_PrefetchesRootSources(t *testing.T) {
	src := breakfastSource()
	f := newFixture(t, src, "jam ~> 1.2", "toast")
	f.noLockfile()
	f.expectWrite(breakfastLock)

	_, err := f.app.Lock(t.Context())
	require.NoError(t, err)
	assert.Positive(t, src.CacheCalls())
}

func TestApp_Lock_SourceFailure(t *testing.T) {
	src := breakfastSource()
	src.CacheErr = errors.New("catalog unreachable")
	f := newFixture(t, src, "jam")
	f.noLockfile()

	_, err := f.app.Lock(t.Context())
	assert.ErrorContains(t, err, "catalog unreachable")
}

func TestApp_Lock_MalformedLockfile(t *testing.T) {
	f := newFixture(t, breakfastSource(), "jam")
	f.locked("MEMORY\n  remote: main\n")

	_, err := f.app.Lock(t.Context())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrParse))
}

func TestApp_Update_All(t *testing.T) {
	f := newFixture(t, breakfastSource(), "jam ~> 1.2", "toast")
	f.locked(`MEMORY
  remote: main
  specs:
    butter (1.0)
    jam (1.2)
      butter (>= 1.0)
    toast (2.0)
      butter (>= 0)
      jam (~> 1.2)

DEPENDENCIES
  jam (~> 1.2)
  toast

`)
	f.expectWrite(breakfastLock)

	res, err := f.app.Update(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"butter (1.1)", "jam (1.2)", "toast (2.0)"}, versions(t, res))
}

func TestApp_Update_Named(t *testing.T) {
	src := domaintest.NewSource("main").
		Add("jam", "1.3", "butter >= 1.0").
		Add("jam", "1.2", "butter >= 1.0").
		Add("butter", "1.1").
		Add("butter", "1.0")
	f := newFixture(t, src, "jam")
	f.locked(`MEMORY
  remote: main
  specs:
    butter (1.0)
    jam (1.2)
      butter (>= 1.0)

DEPENDENCIES
  jam

`)
	f.expectWrite(`MEMORY
  remote: main
  specs:
    butter (1.1)
    jam (1.2)
      butter (>= 1.0)

DEPENDENCIES
  jam

`)

	res, err := f.app.Update(t.Context(), []string{"butter"})
	require.NoError(t, err)
	assert.Equal(t, []string{"butter (1.1)", "jam (1.2)"}, versions(t, res), "jam stays locked")
}

func TestApp_Update_NotLocked(t *testing.T) {
	f := newFixture(t, breakfastSource(), "jam")
	f.locked(breakfastLock)

	_, err := f.app.Update(t.Context(), []string{"caviar"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotLocked))
}

func TestApp_Update_NamedWithoutLockfile(t *testing.T) {
	f := newFixture(t, breakfastSource(), "jam")
	f.noLockfile()

	_, err := f.app.Update(t.Context(), []string{"jam"})
	assert.True(t, errors.Is(err, domain.ErrNotLocked))
}

func TestApp_Check(t *testing.T) {
	t.Run("satisfied", func(t *testing.T) {
		f := newFixture(t, breakfastSource(), "jam ~> 1.2", "toast")
		f.locked(breakfastLock)
		assert.NoError(t, f.app.Check(t.Context()))
	})

	t.Run("root not satisfied", func(t *testing.T) {
		f := newFixture(t, breakfastSource(), "jam >= 1.3", "toast")
		f.locked(breakfastLock)
		err := f.app.Check(t.Context())
		assert.True(t, errors.Is(err, domain.ErrLockfileOutdated), "got %v", err)
	})

	t.Run("root missing", func(t *testing.T) {
		f := newFixture(t, breakfastSource(), "jam", "caviar")
		f.locked(breakfastLock)
		err := f.app.Check(t.Context())
		assert.True(t, errors.Is(err, domain.ErrLockfileOutdated), "got %v", err)
	})

	t.Run("locked from another source", func(t *testing.T) {
		f := newFixture(t, breakfastSource(), "toast")
		f.spec.Dependencies = append(f.spec.Dependencies,
			domain.MustNewDependency("jam", domain.MustParseRequirement(), domaintest.NewSource("mirror")))
		f.locked(breakfastLock)
		err := f.app.Check(t.Context())
		assert.True(t, errors.Is(err, domain.ErrLockfileOutdated), "got %v", err)
	})

	t.Run("no lockfile", func(t *testing.T) {
		f := newFixture(t, breakfastSource(), "jam")
		f.noLockfile()
		err := f.app.Check(t.Context())
		assert.True(t, errors.Is(err, domain.ErrLockfileNotFound))
	})
}

func TestApp_Show(t *testing.T) {
	f := newFixture(t, breakfastSource(), "jam ~> 1.2", "toast")
	f.locked(breakfastLock)

	ms, err := f.app.Show(t.Context())
	require.NoError(t, err)

	var names []string
	for _, m := range ms {
		names = append(names, m.Name())
		assert.Equal(t, "main", m.Source().String())
	}
	assert.Equal(t, []string{"butter", "jam", "toast"}, names)
}

func TestApp_SpecLoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockSpecLoader(ctrl)
	loader.EXPECT().Load("/elsewhere").Return(nil, errors.New("no specfile"))

	a := app.New(loader, mocks.NewMockLockfileStore(ctrl), nil, lockfile.New(nil), mocks.NewMockLogger(ctrl)).
		WithWorkDir("/elsewhere")

	_, err := a.Lock(t.Context())
	assert.ErrorContains(t, err, "failed to load specfile")
}
