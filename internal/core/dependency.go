package core

import "context"

// Dependency is a requirement declared by a released package.
type Dependency struct {
	Name         string `json:"name" yaml:"name"`
	Requirements string `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Marker       string `json:"marker,omitempty" yaml:"marker,omitempty"`
	Optional     bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// DependencyFetcher is implemented by indexes that expose per-release
// dependency metadata.
type DependencyFetcher interface {
	FetchDependencies(ctx context.Context, name, version string) ([]Dependency, error)
}
