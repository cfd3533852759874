// Package pypi provides an index client for the PyPI JSON API.
package pypi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/spdx"

	"github.com/git-pkgs/requirements/internal/core"
	"github.com/git-pkgs/requirements/internal/manifest"
)

const (
	DefaultURL = "https://pypi.org"
	kind       = "pypi"
)

func init() {
	core.Register(kind, DefaultURL, func(baseURL string, client *core.Client) core.Index {
		return New(baseURL, client)
	})
}

type Index struct {
	baseURL string
	client  *core.Client
	urls    *URLs
}

func New(baseURL string, client *core.Client) *Index {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = core.DefaultClient()
	}
	i := &Index{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
	i.urls = &URLs{baseURL: i.baseURL}
	return i
}

func (i *Index) Name() string {
	return kind
}

func (i *Index) URLs() core.URLBuilder {
	return i.urls
}

type packageResponse struct {
	Info     infoBlock                `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type infoBlock struct {
	Name              string            `json:"name"`
	Summary           string            `json:"summary"`
	HomePage          string            `json:"home_page"`
	License           string            `json:"license"`
	LicenseExpression string            `json:"license_expression"`
	Keywords          string            `json:"keywords"`
	Version           string            `json:"version"`
	Classifiers       []string          `json:"classifiers"`
	ProjectURLs       map[string]string `json:"project_urls"`
	RequiresDist      []string          `json:"requires_dist"`
	RequiresPython    string            `json:"requires_python"`
}

type releaseFile struct {
	Digests        map[string]string `json:"digests"`
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	UploadTime     string            `json:"upload_time"`
	Yanked         bool              `json:"yanked"`
	YankedReason   string            `json:"yanked_reason"`
	PackageType    string            `json:"packagetype"`
	RequiresPython string            `json:"requires_python"`
	Size           int               `json:"size"`
}

type versionInfoResponse struct {
	Info infoBlock `json:"info"`
}

func (i *Index) fetch(ctx context.Context, url, name, version string, v any) error {
	if err := i.client.GetJSON(ctx, url, v); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return &core.NotFoundError{Index: kind, Name: name, Version: version}
		}
		return err
	}
	return nil
}

func (i *Index) FetchPackage(ctx context.Context, name string) (*core.Package, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", i.baseURL, name)

	var resp packageResponse
	if err := i.fetch(ctx, url, name, "", &resp); err != nil {
		return nil, err
	}

	return &core.Package{
		Name:        core.NormalizeName(resp.Info.Name),
		Description: resp.Info.Summary,
		Homepage:    extractHomepage(resp.Info.ProjectURLs, resp.Info.HomePage),
		Repository:  extractRepoURL(resp.Info.ProjectURLs, resp.Info.HomePage),
		Licenses:    extractLicense(resp.Info),
		Keywords:    parseKeywords(resp.Info.Keywords),
		Metadata: map[string]any{
			"classifiers":     resp.Info.Classifiers,
			"documentation":   resp.Info.ProjectURLs["Documentation"],
			"latest":          resp.Info.Version,
			"requires_python": resp.Info.RequiresPython,
			"display_name":    resp.Info.Name,
		},
	}, nil
}

func extractRepoURL(projectURLs map[string]string, homePage string) string {
	priorityKeys := []string{"Repository", "Source", "Source Code", "Code"}
	for _, key := range priorityKeys {
		if url, ok := projectURLs[key]; ok && url != "" {
			if isRepoURL(url) {
				return url
			}
		}
	}

	for _, url := range projectURLs {
		if isRepoURL(url) && !strings.Contains(url, "github.com/sponsors") {
			return url
		}
	}

	if isRepoURL(homePage) {
		return homePage
	}

	return ""
}

func extractHomepage(projectURLs map[string]string, homePage string) string {
	if homePage != "" {
		return homePage
	}
	if url, ok := projectURLs["Homepage"]; ok {
		return url
	}
	if url, ok := projectURLs["Home"]; ok {
		return url
	}
	return ""
}

func isRepoURL(url string) bool {
	return strings.Contains(url, "github.com") ||
		strings.Contains(url, "gitlab.com") ||
		strings.Contains(url, "bitbucket.org") ||
		strings.Contains(url, "codeberg.org")
}

// extractLicense prefers the PEP 639 expression, then the free-text
// license field, then trove classifiers. Free text is normalized to SPDX
// when possible.
func extractLicense(info infoBlock) string {
	if info.LicenseExpression != "" {
		return info.LicenseExpression
	}
	if info.License != "" && !strings.Contains(info.License, "\n") {
		return normalizeLicense(info.License)
	}

	for _, classifier := range info.Classifiers {
		if strings.HasPrefix(classifier, "License :: ") {
			parts := strings.Split(classifier, " :: ")
			return normalizeLicense(parts[len(parts)-1])
		}
	}

	return ""
}

func normalizeLicense(license string) string {
	if normalized, err := spdx.Normalize(license); err == nil && normalized != "" {
		return normalized
	}
	return license
}

func parseKeywords(keywords string) []string {
	if keywords == "" {
		return nil
	}
	if strings.Contains(keywords, ",") {
		parts := strings.Split(keywords, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return strings.Fields(keywords)
}

func (i *Index) FetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", i.baseURL, name)

	var resp packageResponse
	if err := i.fetch(ctx, url, name, "", &resp); err != nil {
		return nil, err
	}

	versions := make([]core.Version, 0, len(resp.Releases))
	for num, files := range resp.Releases {
		// A release with no files has nothing pip could install.
		if len(files) == 0 {
			continue
		}

		file := pickFile(files)
		var publishedAt time.Time
		if file.UploadTime != "" {
			publishedAt, _ = time.Parse("2006-01-02T15:04:05", file.UploadTime)
		}

		var status core.VersionStatus
		if allYanked(files) {
			status = core.StatusYanked
		}

		var integrity string
		if sha256, ok := file.Digests["sha256"]; ok {
			integrity = "sha256-" + sha256
		}

		versions = append(versions, core.Version{
			Number:      num,
			PublishedAt: publishedAt,
			Integrity:   integrity,
			Status:      status,
			Metadata: map[string]any{
				"download_url":    file.URL,
				"filename":        file.Filename,
				"requires_python": file.RequiresPython,
				"yanked_reason":   file.YankedReason,
				"packagetype":     file.PackageType,
				"size":            file.Size,
			},
		})
	}

	return versions, nil
}

// pickFile prefers the sdist so download URLs are platform independent.
func pickFile(files []releaseFile) releaseFile {
	for _, f := range files {
		if f.PackageType == "sdist" {
			return f
		}
	}
	return files[0]
}

// A release only counts as yanked when every file in it is.
func allYanked(files []releaseFile) bool {
	for _, f := range files {
		if !f.Yanked {
			return false
		}
	}
	return len(files) > 0
}

func (i *Index) FetchDependencies(ctx context.Context, name, version string) ([]core.Dependency, error) {
	url := fmt.Sprintf("%s/pypi/%s/%s/json", i.baseURL, name, version)

	var resp versionInfoResponse
	if err := i.fetch(ctx, url, name, version, &resp); err != nil {
		return nil, err
	}

	if len(resp.Info.RequiresDist) == 0 {
		return nil, nil
	}

	deps := make([]core.Dependency, 0, len(resp.Info.RequiresDist))
	for _, raw := range resp.Info.RequiresDist {
		deps = append(deps, parseRequiresDist(raw))
	}
	return deps, nil
}

func parseRequiresDist(raw string) core.Dependency {
	req, err := manifest.ParseLine(raw)
	if err != nil {
		name, marker, _ := strings.Cut(raw, ";")
		return core.Dependency{Name: strings.TrimSpace(name), Requirements: "*", Marker: strings.TrimSpace(marker)}
	}

	requirements := req.SpecifierString()
	if req.URL != "" {
		requirements = req.URL
	}
	if requirements == "" {
		requirements = "*"
	}

	return core.Dependency{
		Name:         req.Name,
		Requirements: requirements,
		Marker:       req.Marker,
		Optional:     strings.Contains(req.Marker, "extra"),
	}
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/project/%s/%s/", u.baseURL, name, version)
	}
	return fmt.Sprintf("%s/project/%s/", u.baseURL, name)
}

func (u *URLs) Download(name, version string) string {
	// PyPI downloads are version-specific and stored in metadata
	return ""
}

func (u *URLs) Documentation(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://%s.readthedocs.io/en/%s/", core.NormalizeName(name), version)
	}
	return fmt.Sprintf("https://%s.readthedocs.io/", core.NormalizeName(name))
}

func (u *URLs) PURL(name, version string) string {
	normalized := core.NormalizeName(name)
	if version != "" {
		return fmt.Sprintf("pkg:pypi/%s@%s", normalized, version)
	}
	return fmt.Sprintf("pkg:pypi/%s", normalized)
}
