// Package core provides shared types and the index system.
package core

import "time"

// Package represents metadata about a package from an index.
type Package struct {
	Name        string
	Description string
	Homepage    string
	Repository  string
	Licenses    string
	Keywords    []string
	Metadata    map[string]any // index-specific data
}

// Version represents a specific release of a package.
type Version struct {
	Number      string
	PublishedAt time.Time
	Licenses    string
	Integrity   string        // sha256-...
	Status      VersionStatus // "", "yanked"
	Metadata    map[string]any
}

// VersionStatus represents the status of a package version.
type VersionStatus string

const (
	StatusNone   VersionStatus = ""
	StatusYanked VersionStatus = "yanked"
)
