// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/larder/internal/core/domain"

// SpecLoader defines the interface for loading the specfile.
//
//go:generate go run go.uber.org/mock/mockgen -source=spec_loader.go -destination=mocks/mock_spec_loader.go -package=mocks
type SpecLoader interface {
	// Load reads the specfile from the given working directory. Spec.Lockfile is returned as an
	// absolute path.
	Load(cwd string) (*domain.Spec, error)
}
