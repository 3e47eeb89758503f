package lockfile

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/zerr"
)

// block is the set of manifests of one source.
type block struct {
	typeIndex int
	source    domain.Source
	manifests []*domain.Manifest
}

// Compile renders r as lockfile text. A failed resolution cannot be compiled and yields
// ErrUnresolved.
func (l *Lockfile) Compile(r *domain.Resolution) (string, error) {
	manifests, err := r.Manifests()
	if err != nil {
		return "", zerr.Wrap(err, "cannot compile a failed resolution")
	}

	blocks, err := l.group(manifests)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, b := range blocks {
		blockLines, err := compileBlock(b)
		if err != nil {
			return "", err
		}
		lines = append(lines, blockLines...)
		lines = append(lines, "")
	}

	lines = append(lines, dependenciesMarker)
	roots, err := mergeByName(r.Dependencies())
	if err != nil {
		return "", err
	}
	for _, d := range roots {
		if d.Requirement().Unconstrained() {
			lines = append(lines, optionIndent+d.Name())
		} else {
			lines = append(lines, optionIndent+d.String())
		}
	}
	lines = append(lines, "")

	return strings.Join(lines, "\n") + "\n", nil
}

// group buckets manifests by source, ordered by source type then source identity.
func (l *Lockfile) group(manifests []*domain.Manifest) ([]*block, error) {
	var blocks []*block
	for _, m := range manifests {
		src := m.Source()
		if src == nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnserializable, "manifest has no source"), "manifest", m.Name())
		}
		idx := l.typeIndex(src.LockName())
		if idx < 0 {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownSourceType, "source type is not registered"),
				"type", src.LockName())
		}

		i := slices.IndexFunc(blocks, func(b *block) bool { return b.source.Equal(src) })
		if i < 0 {
			blocks = append(blocks, &block{typeIndex: idx, source: src})
			i = len(blocks) - 1
		}
		blocks[i].manifests = append(blocks[i].manifests, m)
	}

	slices.SortStableFunc(blocks, func(a, b *block) int {
		return cmp.Or(cmp.Compare(a.typeIndex, b.typeIndex), cmp.Compare(a.source.String(), b.source.String()))
	})
	return blocks, nil
}

func compileBlock(b *block) ([]string, error) {
	lines := []string{b.source.LockName()}

	options := b.source.LockOptions()
	if _, ok := options[remoteOption]; !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrUnserializable, "source has no remote"), "source", b.source.String())
	}
	for _, key := range slices.Sorted(maps.Keys(options)) {
		value := options[key]
		if err := validateOption(key, value); err != nil {
			return nil, zerr.With(err, "source", b.source.String())
		}
		lines = append(lines, optionIndent+key+": "+value)
	}
	lines = append(lines, optionIndent+specsMarker+":")

	manifests := slices.Clone(b.manifests)
	slices.SortStableFunc(manifests, func(a, b *domain.Manifest) int { return cmp.Compare(a.Name(), b.Name()) })
	for _, m := range manifests {
		v, err := m.Version()
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to load manifest version"), "manifest", m.Name())
		}
		if v.IsZero() {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnserializable, "manifest has no version"), "manifest", m.Name())
		}
		lines = append(lines, manifestIndent+m.Name()+" ("+v.String()+")")

		deps, err := m.Dependencies()
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to load manifest dependencies"), "manifest", m.Name())
		}
		merged, err := mergeByName(deps)
		if err != nil {
			return nil, err
		}
		for _, d := range merged {
			lines = append(lines, dependencyIndent+d.String())
		}
	}
	return lines, nil
}

func validateOption(key, value string) error {
	switch {
	case key == specsMarker:
		return zerr.With(zerr.Wrap(domain.ErrUnserializable, "option key is reserved"), "key", key)
	case key == "" || strings.ContainsAny(key, ": \t\r\n"):
		return zerr.With(zerr.Wrap(domain.ErrUnserializable, "invalid option key"), "key", key)
	case value == "" || strings.TrimSpace(value) != value || strings.ContainsAny(value, "\r\n"):
		return zerr.With(zerr.Wrap(domain.ErrUnserializable, "invalid option value"), "key", key)
	}
	return nil
}

// mergeByName sorts deps by name and folds dependencies on the same name into one whose
// requirement holds all of their clauses.
func mergeByName(deps []*domain.Dependency) ([]*domain.Dependency, error) {
	byName := make(map[string][]*domain.Dependency, len(deps))
	for _, d := range deps {
		byName[d.Name()] = append(byName[d.Name()], d)
	}

	out := make([]*domain.Dependency, 0, len(byName))
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		group := byName[name]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		var clauses []string
		for _, d := range group {
			if !d.Requirement().Unconstrained() {
				clauses = append(clauses, d.Requirement().String())
			}
		}
		req, err := domain.ParseRequirement(clauses...)
		if err != nil {
			return nil, err
		}
		merged, err := domain.NewDependency(name, req, group[0].Source())
		if err != nil {
			return nil, err
		}
		out = append(out, merged)
	}
	return out, nil
}
