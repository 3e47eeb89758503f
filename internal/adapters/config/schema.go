package config

// Larderfile represents the structure of the Larderfile.yaml specfile.
type Larderfile struct {
	Version      string          `yaml:"version"`
	Lockfile     string          `yaml:"lockfile"`
	Cyclic       bool            `yaml:"cyclic"`
	Sources      []SourceDTO     `yaml:"sources"`
	Dependencies []DependencyDTO `yaml:"dependencies"`
}

// SourceDTO declares a source. Exactly one of Path and Site is set.
type SourceDTO struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	Site string `yaml:"site"`
}

// DependencyDTO declares a root dependency. Source names a declared source.
type DependencyDTO struct {
	Name        string `yaml:"name"`
	Requirement string `yaml:"requirement"`
	Source      string `yaml:"source"`
}
