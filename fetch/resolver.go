package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/requirements/client"
	"github.com/git-pkgs/requirements/internal/core"
)

var (
	ErrNoDownloadURL = errors.New("no download URL available")
	ErrEmptyName     = errors.New("package name is empty")
)

// sourceHost serves sdists under a predictable path.
const sourceHost = "https://files.pythonhosted.org/packages/source"

// Index provides release metadata and URL information for artifact resolution.
// This interface is satisfied by core.Index implementations.
type Index interface {
	Name() string
	FetchVersions(ctx context.Context, name string) ([]core.Version, error)
	URLs() client.URLBuilder
}

// Resolver determines download URLs for pinned releases.
type Resolver struct {
	index Index
}

// NewResolver creates a resolver. A nil index falls back to the
// conventional sdist location on files.pythonhosted.org.
func NewResolver(idx Index) *Resolver {
	return &Resolver{index: idx}
}

// ArtifactInfo contains information about a downloadable artifact.
type ArtifactInfo struct {
	URL       string
	Filename  string
	Integrity string // sha256-...
}

// Resolve returns the download URL and filename for a release.
func (r *Resolver) Resolve(ctx context.Context, name, version string) (*ArtifactInfo, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if info := r.fromURLs(name, version); info != nil {
		return info, nil
	}

	versions, err := r.index.FetchVersions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetching versions: %w", err)
	}
	return fromVersions(versions, version)
}

// ResolveFrom is like Resolve but picks the artifact out of versions the
// caller already fetched instead of asking the index again.
func (r *Resolver) ResolveFrom(name, version string, versions []core.Version) (*ArtifactInfo, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if info := r.fromURLs(name, version); info != nil {
		return info, nil
	}
	return fromVersions(versions, version)
}

func (r *Resolver) fromURLs(name, version string) *ArtifactInfo {
	if r.index == nil {
		return sourceArtifact(name, version)
	}
	if url := r.index.URLs().Download(name, version); url != "" {
		return &ArtifactInfo{
			URL:      url,
			Filename: filenameFromURL(url),
		}
	}
	return nil
}

func sourceArtifact(name, version string) *ArtifactInfo {
	filename := fmt.Sprintf("%s-%s.tar.gz", name, version)
	return &ArtifactInfo{
		URL:      fmt.Sprintf("%s/%s/%s/%s", sourceHost, name[:1], name, filename),
		Filename: filename,
	}
}

func fromVersions(versions []core.Version, version string) (*ArtifactInfo, error) {
	for _, v := range versions {
		if !sameVersion(v.Number, version) {
			continue
		}

		if url, ok := v.Metadata["download_url"].(string); ok && url != "" {
			return &ArtifactInfo{
				URL:       url,
				Filename:  filenameFromURL(url),
				Integrity: v.Integrity,
			}, nil
		}

		return nil, ErrNoDownloadURL
	}

	return nil, ErrNotFound
}

func sameVersion(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "v"), strings.TrimPrefix(b, "v"))
}

func filenameFromURL(url string) string {
	if idx := strings.IndexAny(url, "#?"); idx >= 0 {
		url = url[:idx]
	}
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
