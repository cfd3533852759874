// Package version wraps github.com/aquasecurity/go-pep440-version with the
// pre-release and arbitrary-equality rules pip applies when resolving
// requirement specifiers.
package version

import (
	"errors"
	"fmt"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// ErrInvalid is returned for strings that are not PEP 440 versions.
var ErrInvalid = errors.New("invalid version")

// Version is a parsed PEP 440 version.
type Version struct {
	v   pep440.Version
	raw string
}

// Parse parses s as a PEP 440 version. Numeric segments that overflow
// uint64 are rejected.
func Parse(s string) (Version, error) {
	v, err := pep440.Parse(s)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return Version{v: v, raw: strings.TrimSpace(s)}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Valid reports whether s is a PEP 440 version.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// IsPrerelease reports whether v is a pre-release or development release.
func (v Version) IsPrerelease() bool {
	return v.v.IsPreRelease()
}

// IsPostrelease reports whether v is a post-release.
func (v Version) IsPostrelease() bool {
	return v.v.IsPostRelease()
}

// Public returns v without its local segment.
func (v Version) Public() string {
	return v.v.Public()
}

// Local returns the local segment, lowercased, without the leading '+'.
func (v Version) Local() string {
	return v.v.Local()
}

// Original returns the string v was parsed from.
func (v Version) Original() string {
	return v.raw
}

// String returns the normalized form of v.
func (v Version) String() string {
	return v.v.String()
}
