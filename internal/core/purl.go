package core

import (
	"context"
	"fmt"

	packageurl "github.com/package-url/packageurl-go"
)

const purlType = "pypi"

// PURL wraps packageurl.PackageURL with index-specific helpers.
type PURL struct {
	packageurl.PackageURL
}

// FullName returns the package name in the form the index expects.
func (p PURL) FullName() string {
	if p.Namespace == "" {
		return p.Name
	}
	return p.Namespace + "/" + p.Name
}

// CheckType returns an error unless p names a Python package.
func (p PURL) CheckType() error {
	if p.Type != purlType {
		return fmt.Errorf("unsupported PURL type %q, want %q", p.Type, purlType)
	}
	return nil
}

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:pypi/flask) and version PURLs (pkg:pypi/flask@2.3.0).
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, err
	}
	return &PURL{p}, nil
}

// RequirementPURL builds the PURL for a requirement. The version is only
// included when the requirement is pinned.
func RequirementPURL(r *Requirement) string {
	version, _ := r.Pinned()
	return packageurl.NewPackageURL(purlType, "", r.NormalizedName(), version, nil, "").ToString()
}

// NewFromPURL creates an index client from a pypi PURL and returns the
// package name and version (empty if not in PURL). A repository_url
// qualifier selects a private index.
func NewFromPURL(purl string, kind string, client *Client) (Index, string, string, error) {
	p, err := ParsePURL(purl)
	if err != nil {
		return nil, "", "", err
	}
	if err := p.CheckType(); err != nil {
		return nil, "", "", err
	}

	baseURL := p.Qualifiers.Map()["repository_url"]

	idx, err := New(kind, baseURL, client)
	if err != nil {
		return nil, "", "", err
	}

	return idx, p.FullName(), p.Version, nil
}

// FetchPackageFromPURL fetches package metadata using a PURL.
func FetchPackageFromPURL(ctx context.Context, purl string, kind string, client *Client) (*Package, error) {
	idx, name, _, err := NewFromPURL(purl, kind, client)
	if err != nil {
		return nil, err
	}
	return idx.FetchPackage(ctx, name)
}

// FetchVersionFromPURL fetches a specific release using a PURL.
// Returns an error if the PURL doesn't include a version.
func FetchVersionFromPURL(ctx context.Context, purl string, kind string, client *Client) (*Version, error) {
	idx, name, version, err := NewFromPURL(purl, kind, client)
	if err != nil {
		return nil, err
	}
	if version == "" {
		return nil, fmt.Errorf("PURL has no version: %s", purl)
	}

	versions, err := idx.FetchVersions(ctx, name)
	if err != nil {
		return nil, err
	}

	for _, v := range versions {
		if v.Number == version {
			return &v, nil
		}
	}

	return nil, &NotFoundError{Index: idx.Name(), Name: name, Version: version}
}
