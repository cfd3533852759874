// Package check verifies that a manifest parses and that every package it
// names resolves against a package index.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/requirements/fetch"
	"github.com/git-pkgs/requirements/internal/core"
	"github.com/git-pkgs/requirements/internal/manifest"
	"github.com/git-pkgs/requirements/internal/version"
)

const defaultConcurrency = 8

// Checker resolves manifest requirements against an index.
type Checker struct {
	Index core.Index

	// Fetcher is used for artifact HEAD requests when VerifyArtifacts is set.
	Fetcher fetch.FetcherInterface

	Logger          *slog.Logger
	Concurrency     int
	AllowPre        bool
	VerifyArtifacts bool
	FetchMetadata   bool
}

type entry struct {
	path string
	req  *core.Requirement
}

type lookup struct {
	once     sync.Once
	versions []core.Version
	pkg      *core.Package
	err      error
}

// Lint returns a report containing only the offline diagnostics for m.
func Lint(m *core.Manifest) *Report {
	return &Report{
		Path:        m.Path,
		Diagnostics: manifest.Lint(m),
	}
}

// Check lints m and resolves every index-backed requirement. Results keep
// manifest order. The returned error is non-nil only when ctx ends first.
func (c *Checker) Check(ctx context.Context, m *core.Manifest) (*Report, error) {
	if c.Index == nil {
		return nil, errors.New("check: no index configured")
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	report := Lint(m)
	report.Index = c.Index.Name()

	entries := collect(m)
	report.Results = make([]Result, len(entries))

	lookups := make(map[string]*lookup)
	for _, e := range entries {
		if _, ok := lookups[e.req.NormalizedName()]; !ok {
			lookups[e.req.NormalizedName()] = &lookup{}
		}
	}

	concurrency := c.Concurrency
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, e := range entries {
		g.Go(func() error {
			if ctx.Err() != nil {
				report.Results[i] = c.baseResult(e)
				report.Results[i].Status = StatusError
				report.Results[i].Err = ctx.Err()
				report.Results[i].Message = ctx.Err().Error()
				return nil
			}
			report.Results[i] = c.resolve(ctx, logger, e, lookups[e.req.NormalizedName()])
			return nil
		})
	}
	_ = g.Wait()

	report.Breakers = c.breakerStates()

	return report, ctx.Err()
}

func collect(m *core.Manifest) []entry {
	var out []entry
	for _, line := range m.Lines {
		if line.Requirement != nil {
			out = append(out, entry{path: m.Path, req: line.Requirement})
		}
	}
	for _, inc := range m.Includes {
		out = append(out, collect(inc)...)
	}
	return out
}

func (c *Checker) baseResult(e entry) Result {
	return Result{
		Path:        e.path,
		Line:        e.req.Line,
		Name:        e.req.NormalizedName(),
		Specifier:   e.req.SpecifierString(),
		PURL:        core.RequirementPURL(e.req),
		Requirement: e.req,
	}
}

func (c *Checker) resolve(ctx context.Context, logger *slog.Logger, e entry, l *lookup) Result {
	res := c.baseResult(e)
	req := e.req

	if req.URL != "" {
		res.Status = StatusSkipped
		res.Message = "direct reference " + req.URL
		return res
	}

	l.once.Do(func() {
		logger.Debug("resolving package", "name", res.Name, "index", c.Index.Name())
		l.versions, l.err = c.Index.FetchVersions(ctx, res.Name)
		if l.err == nil && c.FetchMetadata {
			if pkg, err := c.Index.FetchPackage(ctx, res.Name); err == nil {
				l.pkg = pkg
			} else {
				logger.Debug("package metadata unavailable", "name", res.Name, "err", err)
			}
		}
	})

	if l.err != nil {
		res.Err = l.err
		if core.IsNotFound(l.err) {
			res.Status = StatusNotFound
			res.Message = fmt.Sprintf("%s is not on the %s index", res.Name, c.Index.Name())
		} else {
			res.Status = StatusError
			res.Message = l.err.Error()
		}
		logger.Warn("package lookup failed", "name", res.Name, "path", e.path, "line", req.Line, "status", res.Status, "err", l.err)
		return res
	}

	if l.pkg != nil {
		res.License = l.pkg.Licenses
	}
	if latest := core.LatestVersion(l.versions); latest != nil {
		res.Latest = latest.Number
	}

	match := selectVersion(req, l.versions, c.AllowPre)
	switch {
	case match.best != nil:
		res.Status = StatusOK
		res.Best = match.best.Number
		if match.preOnly {
			res.Message = "only pre-releases satisfy " + req.SpecifierString()
		}
	case match.yanked != nil:
		res.Status = StatusYanked
		res.Best = match.yanked.Number
		res.Message = fmt.Sprintf("only yanked release %s satisfies %s", match.yanked.Number, req.SpecifierString())
	default:
		res.Status = StatusNoMatch
		res.Message = fmt.Sprintf("no release of %s satisfies %s", res.Name, req.SpecifierString())
		if match.invalidSpec != nil {
			res.Err = match.invalidSpec
			res.Message = match.invalidSpec.Error()
		}
	}

	if res.Status == StatusOK && c.VerifyArtifacts && c.Fetcher != nil {
		if pinned, ok := req.Pinned(); ok {
			c.verifyArtifact(ctx, logger, &res, pinned, l.versions)
		}
	}

	if res.Status != StatusOK {
		logger.Warn("requirement not satisfiable", "name", res.Name, "path", e.path, "line", req.Line, "status", res.Status)
	}
	return res
}

func (c *Checker) verifyArtifact(ctx context.Context, logger *slog.Logger, res *Result, pinned string, versions []core.Version) {
	info, err := fetch.NewResolver(c.Index).ResolveFrom(res.Name, res.Best, versions)
	if err != nil {
		res.Status = StatusArtifactMissing
		res.Err = err
		res.Message = fmt.Sprintf("resolving artifact for %s==%s: %v", res.Name, pinned, err)
		return
	}
	res.Artifact = info.URL

	if _, _, err := c.Fetcher.Head(ctx, info.URL); err != nil {
		res.Status = StatusArtifactMissing
		res.Err = err
		res.Message = fmt.Sprintf("artifact %s: %v", info.Filename, err)
		return
	}
	logger.Debug("artifact verified", "name", res.Name, "url", info.URL)
}

type selection struct {
	best        *core.Version
	yanked      *core.Version
	preOnly     bool
	invalidSpec error
}

// selectVersion picks the highest release satisfying req. When no final
// release matches, pre-releases are accepted as a fallback.
func selectVersion(req *core.Requirement, versions []core.Version, allowPre bool) selection {
	constraints := make([]version.Constraint, len(req.Specifiers))
	for i, s := range req.Specifiers {
		constraints[i] = version.Constraint{Op: string(s.Op), Version: s.Version}
	}

	sel := pick(constraints, versions, allowPre)
	if sel.best == nil && sel.invalidSpec == nil && !allowPre {
		fallback := pick(constraints, versions, true)
		if fallback.best != nil {
			fallback.preOnly = true
			return fallback
		}
		if sel.yanked == nil {
			sel.yanked = fallback.yanked
		}
	}
	return sel
}

func pick(constraints []version.Constraint, versions []core.Version, allowPre bool) selection {
	var (
		sel               selection
		bestV, bestYanked version.Version
	)
	set, err := version.NewSet(constraints)
	if err != nil {
		sel.invalidSpec = err
		return sel
	}
	for i := range versions {
		v := &versions[i]
		parsed, err := version.Parse(v.Number)
		if err != nil {
			continue
		}
		if !set.Match(parsed, allowPre) {
			continue
		}
		if v.Status == core.StatusYanked {
			if sel.yanked == nil || version.Compare(parsed, bestYanked) > 0 {
				sel.yanked, bestYanked = v, parsed
			}
			continue
		}
		if sel.best == nil || version.Compare(parsed, bestV) > 0 {
			sel.best, bestV = v, parsed
		}
	}
	return sel
}

// fetcherProvider is implemented by indexes that fetch through a fetch.Fetcher.
type fetcherProvider interface {
	Fetcher() fetch.FetcherInterface
}

type breakerReporter interface {
	States() []fetch.BreakerState
}

func (c *Checker) breakerStates() []fetch.BreakerState {
	seen := make(map[string]bool)
	var states []fetch.BreakerState
	add := func(f fetch.FetcherInterface) {
		br, ok := f.(breakerReporter)
		if !ok {
			return
		}
		for _, s := range br.States() {
			if !seen[s.Host] {
				seen[s.Host] = true
				states = append(states, s)
			}
		}
	}
	if fp, ok := c.Index.(fetcherProvider); ok {
		add(fp.Fetcher())
	}
	if c.Fetcher != nil {
		add(c.Fetcher)
	}
	return states
}
