package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/larder/internal/adapters/config"
	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/larder/internal/core/domain/domaintest"
	"go.trai.ch/larder/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func writeSpecfile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.Filename), []byte(content), 0o600))
	return dir
}

func TestLoad_Success(t *testing.T) {
	dir := writeSpecfile(t, `
version: "1"
cyclic: true
sources:
  - name: local
    path: ./vendor
  - name: main
    site: https://packages.example.com
dependencies:
  - name: jam
    requirement: "~> 1.2"
    source: local
  - name: toast
`)
	ctrl := gomock.NewController(t)
	factory := mocks.NewMockSourceFactory(ctrl)
	local := domaintest.NewSource("local")
	main := domaintest.NewSource("main")
	factory.EXPECT().Path("./vendor", dir).Return(local, nil)
	factory.EXPECT().Site("https://packages.example.com").Return(main, nil)

	spec, err := config.NewLoader(factory).Load(dir)
	require.NoError(t, err)

	assert.True(t, spec.Cyclic)
	assert.Equal(t, filepath.Join(dir, config.DefaultLockfile), spec.Lockfile)
	require.Len(t, spec.Sources, 2)
	assert.Same(t, local, spec.Sources[0])
	assert.Same(t, main, spec.Sources[1])

	require.Len(t, spec.Dependencies, 2)
	assert.Equal(t, "jam (~> 1.2)", spec.Dependencies[0].String())
	assert.Same(t, local, spec.Dependencies[0].Source())
	assert.Equal(t, "toast", spec.Dependencies[1].Name())
	assert.True(t, spec.Dependencies[1].Requirement().Unconstrained())
	assert.Nil(t, spec.Dependencies[1].Source())
}

func TestLoad_Lockfile(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "elsewhere.lock")
	tests := []struct {
		name  string
		value string
		want  func(dir string) string
	}{
		{name: "relative", value: "locks/app.lock", want: func(dir string) string { return filepath.Join(dir, "locks", "app.lock") }},
		{name: "absolute", value: abs, want: func(string) string { return abs }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeSpecfile(t, "version: \"1\"\nlockfile: "+tt.value+"\n")
			spec, err := config.NewLoader(mocks.NewMockSourceFactory(gomock.NewController(t))).Load(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want(dir), spec.Lockfile)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
		is      error
	}{
		{
			name:    "invalid yaml",
			content: "sources: [",
			wantErr: "failed to parse specfile",
		},
		{
			name:    "source without locator",
			content: "sources:\n  - name: local\n",
			wantErr: "neither path nor site",
		},
		{
			name:    "source with two locators",
			content: "sources:\n  - name: local\n    path: ./a\n    site: https://x\n",
			wantErr: "both path and site",
		},
		{
			name:    "unnamed source",
			content: "sources:\n  - path: ./a\n",
			wantErr: "source name is required",
		},
		{
			name:    "unknown source reference",
			content: "dependencies:\n  - name: jam\n    source: nowhere\n",
			wantErr: "unknown source",
		},
		{
			name:    "duplicate dependency",
			content: "dependencies:\n  - name: jam\n  - name: jam\n",
			wantErr: "duplicate dependency",
		},
		{
			name:    "invalid name",
			content: "dependencies:\n  - name: \" jam\"\n",
			is:      domain.ErrInvalidName,
		},
		{
			name:    "invalid requirement",
			content: "dependencies:\n  - name: jam\n    requirement: \"~> soon\"\n",
			is:      domain.ErrInvalidRequirement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeSpecfile(t, tt.content)
			_, err := config.NewLoader(mocks.NewMockSourceFactory(gomock.NewController(t))).Load(dir)
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			}
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			}
		})
	}
}

func TestLoad_MissingSpecfile(t *testing.T) {
	_, err := config.NewLoader(nil).Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_FactoryError(t *testing.T) {
	dir := writeSpecfile(t, "sources:\n  - name: main\n    site: \"::bad\"\n")
	factory := mocks.NewMockSourceFactory(gomock.NewController(t))
	factory.EXPECT().Site("::bad").Return(nil, errors.New("invalid site url"))

	_, err := config.NewLoader(factory).Load(dir)
	assert.ErrorContains(t, err, "invalid site url")
}
