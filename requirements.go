// Package requirements parses, lints and checks Python requirements
// manifests against a package index.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/requirements"
//		_ "github.com/git-pkgs/requirements/all"
//	)
//
//	m, err := requirements.ParseFile("requirements.txt")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	idx, err := requirements.New("pypi", "", requirements.DefaultClient())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	report, err := (&requirements.Checker{Index: idx}).Check(context.Background(), m)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(report.Failed(false))
package requirements

import (
	"context"
	"io"

	"github.com/git-pkgs/purl"
	"github.com/git-pkgs/requirements/client"
	"github.com/git-pkgs/requirements/internal/check"
	"github.com/git-pkgs/requirements/internal/core"
	"github.com/git-pkgs/requirements/internal/manifest"
)

// Re-export types from internal/core
type (
	// Index is the interface implemented by package index clients.
	Index = core.Index

	// Package represents metadata about a package from an index.
	Package = core.Package

	// Version represents a specific release of a package.
	Version = core.Version

	// VersionStatus represents the status of a release.
	VersionStatus = core.VersionStatus

	// Dependency is a requirement declared by a released package.
	Dependency = core.Dependency

	// Manifest is a parsed requirements file.
	Manifest = core.Manifest

	// Requirement is one dependency declared in a manifest.
	Requirement = core.Requirement

	// Specifier is a single version clause such as ">=2.3.0".
	Specifier = core.Specifier

	// Diagnostic is a lint finding.
	Diagnostic = core.Diagnostic

	// Severity ranks a diagnostic.
	Severity = core.Severity
)

// Re-export checker types
type (
	// Checker resolves manifest requirements against an index.
	Checker = check.Checker

	// Report collects diagnostics and resolution results.
	Report = check.Report

	// Result is the resolution outcome for one requirement.
	Result = check.Result

	// Status is a requirement's resolution outcome.
	Status = check.Status
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for index APIs.
	Client = client.Client

	// URLBuilder constructs URLs for an index.
	URLBuilder = client.URLBuilder
)

// Re-export constants
const (
	StatusNone   = core.StatusNone
	StatusYanked = core.StatusYanked

	SeverityError   = core.SeverityError
	SeverityWarning = core.SeverityWarning
	SeverityInfo    = core.SeverityInfo
)

// Re-export errors
var (
	ErrNotFound = client.ErrNotFound
)

// Error types
type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
	SyntaxError    = core.SyntaxError
)

// New creates an index client of the given kind.
// If baseURL is empty, the default index URL is used.
// If client is nil, DefaultClient() is used.
//
// Supported kinds: "pypi", "simple"
func New(kind string, baseURL string, c *Client) (Index, error) {
	return core.New(kind, baseURL, c)
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	return client.NewClient(opts...)
}

// Option configures a Client.
type Option = client.Option

// WithTimeout sets the HTTP client timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the maximum number of retries.
var WithMaxRetries = client.WithMaxRetries

// SupportedIndexes returns all registered index kinds.
// Note: indexes must be imported to be registered.
func SupportedIndexes() []string {
	return core.SupportedIndexes()
}

// DefaultURL returns the default base URL for an index kind.
func DefaultURL(kind string) string {
	return core.DefaultURL(kind)
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "registry", "download", "docs", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	return client.BuildURLs(urls, name, version)
}

// Parse reads a manifest from r. Bad lines do not fail the parse; they
// are kept as invalid lines and reported by Lint.
func Parse(r io.Reader, path string) (*Manifest, error) {
	return manifest.Parse(r, path)
}

// ParseFile reads a manifest from disk and follows -r includes.
func ParseFile(path string) (*Manifest, error) {
	return manifest.ParseFile(path)
}

// ParseLine parses a single requirement.
func ParseLine(s string) (*Requirement, error) {
	return manifest.ParseLine(s)
}

// Lint returns offline diagnostics for m.
func Lint(m *Manifest) []Diagnostic {
	return manifest.Lint(m)
}

// Format writes m in canonical form.
func Format(w io.Writer, m *Manifest) error {
	return manifest.Format(w, m)
}

// NormalizeName returns the PEP 503 normalized form of a project name.
func NormalizeName(name string) string {
	return core.NormalizeName(name)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:pypi/flask) and version PURLs (pkg:pypi/flask@2.3.0).
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// RequirementPURL returns the pypi PURL for r, versioned when r is pinned.
func RequirementPURL(r *Requirement) string {
	return core.RequirementPURL(r)
}

// NewFromPURL creates an index client from a pypi PURL and returns the
// package name and version (empty if not in PURL).
func NewFromPURL(purl string, kind string, c *Client) (Index, string, string, error) {
	return core.NewFromPURL(purl, kind, c)
}

// FetchPackageFromPURL fetches package metadata using a PURL.
func FetchPackageFromPURL(ctx context.Context, purl string, kind string, c *Client) (*Package, error) {
	return core.FetchPackageFromPURL(ctx, purl, kind, c)
}

// FetchVersionFromPURL fetches a specific release using a PURL.
// Returns an error if the PURL doesn't include a version.
func FetchVersionFromPURL(ctx context.Context, purl string, kind string, c *Client) (*Version, error) {
	return core.FetchVersionFromPURL(ctx, purl, kind, c)
}

// FetchLatestVersion returns the latest non-yanked release.
// Returns nil if no valid versions exist.
func FetchLatestVersion(ctx context.Context, idx Index, name string) (*Version, error) {
	return core.FetchLatestVersion(ctx, idx, name)
}

// BulkFetchPackages fetches package metadata for multiple names in parallel.
// Individual fetch errors are silently ignored - those names are omitted from results.
func BulkFetchPackages(ctx context.Context, idx Index, names []string) map[string]*Package {
	return core.BulkFetchPackages(ctx, idx, names)
}

// BulkFetchPackagesWithConcurrency fetches packages with a custom concurrency limit.
func BulkFetchPackagesWithConcurrency(ctx context.Context, idx Index, names []string, concurrency int) map[string]*Package {
	return core.BulkFetchPackagesWithConcurrency(ctx, idx, names, concurrency)
}
