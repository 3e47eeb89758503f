// Package config provides the specfile loader for larder.
package config

import (
	"os"
	"path/filepath"

	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/larder/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const (
	// Filename is the name of the specfile looked up in the working directory.
	Filename = "Larderfile.yaml"
	// DefaultLockfile is the lockfile name used when the specfile does not set one.
	DefaultLockfile = "Larderfile.lock"
)

// Loader implements ports.SpecLoader using a YAML file.
type Loader struct {
	Filename string
	sources  ports.SourceFactory
}

// NewLoader creates a Loader that builds declared sources with factory.
func NewLoader(factory ports.SourceFactory) *Loader {
	return &Loader{Filename: Filename, sources: factory}
}

var _ ports.SpecLoader = (*Loader)(nil)

// Load reads the specfile from the given working directory. Relative paths in it resolve against
// that directory.
func (l *Loader) Load(cwd string) (*domain.Spec, error) {
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve working directory")
	}
	path := filepath.Join(dir, l.Filename)

	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read specfile"), "path", path)
	}

	var file Larderfile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse specfile"), "path", path)
	}

	spec, err := l.build(&file, dir)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return spec, nil
}

func (l *Loader) build(file *Larderfile, dir string) (*domain.Spec, error) {
	spec := &domain.Spec{Cyclic: file.Cyclic}

	byName := make(map[string]domain.Source, len(file.Sources))
	for _, dto := range file.Sources {
		if dto.Name == "" {
			return nil, zerr.New("source name is required")
		}
		if _, dup := byName[dto.Name]; dup {
			return nil, zerr.With(zerr.New("duplicate source"), "source", dto.Name)
		}
		src, err := l.source(dto, dir)
		if err != nil {
			return nil, zerr.With(err, "source", dto.Name)
		}
		byName[dto.Name] = src
		spec.Sources = append(spec.Sources, src)
	}

	seen := make(map[string]bool, len(file.Dependencies))
	for _, dto := range file.Dependencies {
		if seen[dto.Name] {
			return nil, zerr.With(zerr.New("duplicate dependency"), "dependency", dto.Name)
		}
		seen[dto.Name] = true

		req, err := domain.ParseRequirement(dto.Requirement)
		if err != nil {
			return nil, zerr.With(err, "dependency", dto.Name)
		}
		var src domain.Source
		if dto.Source != "" {
			var ok bool
			if src, ok = byName[dto.Source]; !ok {
				return nil, zerr.With(zerr.With(zerr.New("unknown source"), "dependency", dto.Name), "source", dto.Source)
			}
		}
		dep, err := domain.NewDependency(dto.Name, req, src)
		if err != nil {
			return nil, err
		}
		spec.Dependencies = append(spec.Dependencies, dep)
	}

	lockfile := file.Lockfile
	if lockfile == "" {
		lockfile = DefaultLockfile
	}
	if !filepath.IsAbs(lockfile) {
		lockfile = filepath.Join(dir, lockfile)
	}
	spec.Lockfile = lockfile

	return spec, nil
}

func (l *Loader) source(dto SourceDTO, dir string) (domain.Source, error) {
	switch {
	case dto.Path != "" && dto.Site != "":
		return nil, zerr.New("source declares both path and site")
	case dto.Path != "":
		return l.sources.Path(dto.Path, dir)
	case dto.Site != "":
		return l.sources.Site(dto.Site)
	}
	return nil, zerr.New("source declares neither path nor site")
}
