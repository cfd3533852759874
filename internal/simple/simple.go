// Package simple provides an index client for PEP 503 "simple" repository
// pages, as served by pypi.org/simple and most private mirrors.
package simple

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/git-pkgs/requirements/fetch"
	"github.com/git-pkgs/requirements/internal/core"
	"github.com/git-pkgs/requirements/internal/version"
)

const (
	DefaultURL = "https://pypi.org/simple"
	kind       = "simple"

	maxPageSize = 32 << 20
)

func init() {
	core.Register(kind, DefaultURL, func(baseURL string, client *core.Client) core.Index {
		return New(baseURL, client)
	})
}

var archiveExts = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tgz", ".zip", ".whl", ".egg"}

type Index struct {
	baseURL string
	fetcher fetch.FetcherInterface
	urls    *URLs
}

// New creates a simple index client. Page fetches go through a
// circuit-breaking fetcher with the client's timeout, retry budget,
// User-Agent and auth hook.
func New(baseURL string, client *core.Client) *Index {
	return NewWithFetcher(baseURL, fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(fetch.ClientOptions(client)...)))
}

// NewWithFetcher creates a simple index client that uses f for page fetches.
func NewWithFetcher(baseURL string, f fetch.FetcherInterface) *Index {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	i := &Index{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		fetcher: f,
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

// Fetcher returns the fetcher used for page requests.
func (i *Index) Fetcher() fetch.FetcherInterface {
	return i.fetcher
}

// File is one distribution file linked from a project page.
type File struct {
	Filename string
	URL      string
	Version  string
	SHA256   string
	Yanked   bool
	Reason   string
	Requires string // data-requires-python
}

func (i *Index) projectURL(name string) string {
	return fmt.Sprintf("%s/%s/", i.baseURL, core.NormalizeName(name))
}

// FetchFiles returns every distribution file linked from the project page.
func (i *Index) FetchFiles(ctx context.Context, name string) ([]File, error) {
	pageURL := i.projectURL(name)
	body, err := fetch.ReadAll(ctx, i.fetcher, pageURL, maxPageSize)
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			return nil, &core.NotFoundError{Index: kind, Name: name}
		}
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}

	return parsePage(body, base, name), nil
}

// parsePage collects the anchors of a project page. A <base href>
// changes how later relative links resolve.
func parsePage(page []byte, base *url.URL, project string) []File {
	var (
		files []File
		attrs map[string]string
		text  strings.Builder
	)
	flush := func() {
		if attrs == nil {
			return
		}
		if f, ok := newFile(attrs, text.String(), base, project); ok {
			files = append(files, f)
		}
		attrs = nil
	}

	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			return files
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "a":
				flush()
				attrs = readAttrs(z, hasAttr)
				text.Reset()
				if tt == html.SelfClosingTagToken {
					flush()
				}
			case "base":
				if href, ok := readAttrs(z, hasAttr)["href"]; ok {
					if ref, err := url.Parse(href); err == nil {
						base = base.ResolveReference(ref)
					}
				}
			}
		case html.TextToken:
			if attrs != nil {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "a" {
				flush()
			}
		}
	}
}

// readAttrs returns the tag's attributes with entities already decoded.
func readAttrs(z *html.Tokenizer, more bool) map[string]string {
	attrs := make(map[string]string)
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		attrs[string(key)] = string(val)
	}
	return attrs
}

func newFile(attrs map[string]string, text string, base *url.URL, project string) (File, bool) {
	href, ok := attrs["href"]
	if !ok {
		return File{}, false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return File{}, false
	}
	abs := base.ResolveReference(ref)

	filename := strings.TrimSpace(text)
	if filename == "" {
		filename = pathBase(abs.Path)
	}

	ver := versionFromFilename(filename, project)
	if ver == "" {
		return File{}, false
	}

	f := File{
		Filename: filename,
		URL:      abs.String(),
		Version:  ver,
		Requires: attrs["data-requires-python"],
	}
	if frag := abs.Fragment; strings.HasPrefix(frag, "sha256=") {
		f.SHA256 = strings.TrimPrefix(frag, "sha256=")
	}
	if reason, ok := attrs["data-yanked"]; ok {
		f.Yanked = true
		f.Reason = reason
	}
	return f, true
}

func pathBase(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

// versionFromFilename extracts the version from an sdist, wheel or egg
// filename. Returns "" when the file does not belong to project or the
// version is not PEP 440.
func versionFromFilename(filename, project string) string {
	lower := strings.ToLower(filename)
	stem := ""
	for _, ext := range archiveExts {
		if strings.HasSuffix(lower, ext) {
			stem = filename[:len(filename)-len(ext)]
			if ext == ".whl" || ext == ".egg" {
				parts := strings.Split(stem, "-")
				if len(parts) < 2 || core.NormalizeName(parts[0]) != core.NormalizeName(project) {
					return ""
				}
				return validVersion(parts[1])
			}
			break
		}
	}
	if stem == "" {
		return ""
	}

	want := core.NormalizeName(project)
	for idx := strings.Index(stem, "-"); idx >= 0; {
		if core.NormalizeName(stem[:idx]) == want {
			return validVersion(stem[idx+1:])
		}
		next := strings.Index(stem[idx+1:], "-")
		if next < 0 {
			break
		}
		idx += next + 1
	}
	return ""
}

func validVersion(s string) string {
	if version.Valid(s) {
		return s
	}
	return ""
}

func (i *Index) FetchPackage(ctx context.Context, name string) (*core.Package, error) {
	files, err := i.FetchFiles(ctx, name)
	if err != nil {
		return nil, err
	}
	return &core.Package{
		Name: core.NormalizeName(name),
		Metadata: map[string]any{
			"files": len(files),
			"page":  i.projectURL(name),
		},
	}, nil
}

func (i *Index) FetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	files, err := i.FetchFiles(ctx, name)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string][]File)
	var order []string
	for _, f := range files {
		if _, ok := byVersion[f.Version]; !ok {
			order = append(order, f.Version)
		}
		byVersion[f.Version] = append(byVersion[f.Version], f)
	}
	sort.Strings(order)

	versions := make([]core.Version, 0, len(order))
	for _, num := range order {
		group := byVersion[num]
		file := pickFile(group)

		var status core.VersionStatus
		if allYanked(group) {
			status = core.StatusYanked
		}

		var integrity string
		if file.SHA256 != "" {
			integrity = "sha256-" + file.SHA256
		}

		versions = append(versions, core.Version{
			Number:    num,
			Integrity: integrity,
			Status:    status,
			Metadata: map[string]any{
				"download_url":    file.URL,
				"filename":        file.Filename,
				"requires_python": file.Requires,
				"yanked_reason":   file.Reason,
				"files":           len(group),
			},
		})
	}
	return versions, nil
}

func pickFile(files []File) File {
	for _, f := range files {
		if !strings.HasSuffix(strings.ToLower(f.Filename), ".whl") {
			return f
		}
	}
	return files[0]
}

func allYanked(files []File) bool {
	for _, f := range files {
		if !f.Yanked {
			return false
		}
	}
	return len(files) > 0
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	return fmt.Sprintf("%s/%s/", u.baseURL, core.NormalizeName(name))
}

func (u *URLs) Download(name, version string) string {
	return ""
}

func (u *URLs) Documentation(name, version string) string {
	return ""
}

func (u *URLs) PURL(name, version string) string {
	p := fmt.Sprintf("pkg:pypi/%s", core.NormalizeName(name))
	if version != "" {
		p += "@" + version
	}
	if u.baseURL != DefaultURL {
		p += "?repository_url=" + url.QueryEscape(u.baseURL)
	}
	return p
}
