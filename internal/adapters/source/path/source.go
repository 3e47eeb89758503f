// Package path implements a source that reads package manifests from a local directory.
//
// Each package lives in its own subdirectory holding a larder.yaml file:
//
//	vendor/
//	  jam/larder.yaml
//	  butter/larder.yaml
//
// A directory offers exactly one candidate per package name.
package path

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const (
	// LockName is the lockfile header of path sources.
	LockName = "PATH"
	// ManifestFile is the manifest file name inside each package directory.
	ManifestFile = "larder.yaml"

	remoteOption = "remote"
)

// ManifestDTO is the content of a larder.yaml file.
type ManifestDTO struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Dependencies map[string]string `yaml:"dependencies"`
}

// Source implements domain.Source over a local directory.
type Source struct {
	remote string
	dir    string

	mu        sync.Mutex
	manifests map[string][]*domain.Manifest
}

// New creates a source for the directory remote. A relative remote is resolved against base; an
// empty base means the process working directory.
func New(remote, base string) (*Source, error) {
	if remote == "" {
		return nil, zerr.New("path source needs a directory")
	}
	dir := remote
	if !filepath.IsAbs(dir) && base != "" {
		dir = filepath.Join(base, dir)
	}
	return &Source{
		remote:    remote,
		dir:       filepath.Clean(dir),
		manifests: make(map[string][]*domain.Manifest),
	}, nil
}

// Type returns the source type that rebuilds path sources from lockfile options. Relative
// remotes resolve against the process working directory.
func Type() domain.SourceType {
	return domain.SourceType{
		LockName: LockName,
		FromLockOptions: func(options map[string]string) (domain.Source, error) {
			for key := range options {
				if key != remoteOption {
					return nil, zerr.With(zerr.New("unexpected path source option"), "key", key)
				}
			}
			src, err := New(options[remoteOption], "")
			if err != nil {
				return nil, err
			}
			return src, nil
		},
	}
}

// Dir returns the directory the source reads from.
func (s *Source) Dir() string {
	return s.dir
}

// LockName implements domain.Source.
func (s *Source) LockName() string {
	return LockName
}

// Manifests returns the single manifest stored for name, or none. The manifest file is read on
// first access to its version or dependencies.
func (s *Source) Manifests(_ context.Context, name string) ([]*domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ms, ok := s.manifests[name]; ok {
		return ms, nil
	}

	var ms []*domain.Manifest
	if validDirName(name) {
		file := filepath.Join(s.dir, name, ManifestFile)
		_, err := os.Stat(file)
		switch {
		case err == nil:
			m, err := s.lazyManifest(name, file)
			if err != nil {
				return nil, err
			}
			ms = []*domain.Manifest{m}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, zerr.With(zerr.Wrap(err, "failed to stat manifest"), "path", file)
		}
	}
	s.manifests[name] = ms
	return ms, nil
}

func validDirName(name string) bool {
	return name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func (s *Source) lazyManifest(name, file string) (*domain.Manifest, error) {
	read := sync.OnceValues(func() (*ManifestDTO, error) { return readManifest(name, file) })
	return domain.NewManifest(s, name, domain.ManifestLoader{
		Version: func() (domain.Version, error) {
			dto, err := read()
			if err != nil {
				return domain.Version{}, err
			}
			v, err := domain.ParseVersion(dto.Version)
			if err != nil {
				return domain.Version{}, zerr.With(err, "path", file)
			}
			return v, nil
		},
		Dependencies: func() ([]*domain.Dependency, error) {
			dto, err := read()
			if err != nil {
				return nil, err
			}
			deps, err := dependencies(dto.Dependencies)
			if err != nil {
				return nil, zerr.With(err, "path", file)
			}
			return deps, nil
		},
	})
}

func readManifest(name, file string) (*ManifestDTO, error) {
	//nolint:gosec // Path is built from the declared directory and a validated package name
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read manifest"), "path", file)
	}
	var dto ManifestDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse manifest"), "path", file)
	}
	if dto.Name != "" && dto.Name != name {
		return nil, zerr.With(zerr.With(zerr.New("manifest name does not match its directory"),
			"path", file), "name", dto.Name)
	}
	return &dto, nil
}

// dependencies converts a name → requirement map into unbound dependencies sorted by name.
func dependencies(reqs map[string]string) ([]*domain.Dependency, error) {
	deps := make([]*domain.Dependency, 0, len(reqs))
	for _, name := range slices.Sorted(maps.Keys(reqs)) {
		req, err := domain.ParseRequirement(reqs[name])
		if err != nil {
			return nil, zerr.With(err, "dependency", name)
		}
		d, err := domain.NewDependency(name, req, nil)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, nil
}

// Cache implements domain.Source. Local directories need no prefetch.
func (s *Source) Cache(context.Context, []*domain.Dependency) error {
	return nil
}

// LockOptions implements domain.Source.
func (s *Source) LockOptions() map[string]string {
	return map[string]string{remoteOption: s.remote}
}

// Equal implements domain.Source.
func (s *Source) Equal(other domain.Source) bool {
	o, ok := other.(*Source)
	return ok && o.remote == s.remote
}

// String implements domain.Source.
func (s *Source) String() string {
	return s.remote
}
