package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/requirements/internal/core"
	"github.com/git-pkgs/requirements/internal/manifest"
	"github.com/git-pkgs/requirements/internal/report"
	"github.com/git-pkgs/requirements/internal/version"
)

func newInfoCmd(a *app) *cobra.Command {
	var deps bool

	cmd := &cobra.Command{
		Use:   "info <requirement|purl>",
		Short: "Show index metadata for one package",
		Long: "Look up a package by requirement (flask, flask==2.3.0) or by\n" +
			"package URL (pkg:pypi/flask@2.3.0). A repository_url qualifier on\n" +
			"the package URL selects the index.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError(fmt.Errorf("info takes exactly one package, got %d", len(args)))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, name, version, err := a.resolveTarget(args[0])
			if err != nil {
				return usageError(err)
			}

			ctx := cmd.Context()
			pkg, err := idx.FetchPackage(ctx, name)
			if err != nil {
				return &exitError{code: exitFindings, err: err}
			}
			versions, err := idx.FetchVersions(ctx, name)
			if err != nil {
				return &exitError{code: exitFindings, err: err}
			}

			info := &report.PackageInfo{
				Name:       pkg.Name,
				Index:      idx.Name(),
				Summary:    pkg.Description,
				License:    pkg.Licenses,
				Homepage:   pkg.Homepage,
				Repository: pkg.Repository,
				Version:    version,
				Releases:   len(versions),
			}
			if latest := core.LatestVersion(versions); latest != nil {
				info.Latest = latest.Number
			}
			if info.Version == "" {
				info.Version = info.Latest
			}

			if info.Version != "" {
				v := findRelease(versions, info.Version)
				if v == nil {
					return &exitError{code: exitFindings, err: &core.NotFoundError{Index: idx.Name(), Name: name, Version: info.Version}}
				}
				info.Version = v.Number
				info.Yanked = v.Status == core.StatusYanked
			}

			info.URLs = core.BuildURLs(idx.URLs(), name, info.Version)
			info.PURL = core.RequirementPURL(&core.Requirement{
				Name:       name,
				Specifiers: []core.Specifier{{Op: core.OpEqual, Version: info.Version}},
			})

			if deps && info.Version != "" {
				if df, ok := idx.(core.DependencyFetcher); ok {
					info.Dependencies, err = df.FetchDependencies(ctx, name, info.Version)
					if err != nil {
						a.log.Warn("dependencies unavailable", "name", name, "version", info.Version, "err", err)
					}
				} else {
					a.log.Info("index does not publish dependencies", "index", idx.Name())
				}
			}

			return report.RenderInfo(a.stdout, info, a.format, a.renderOptions())
		},
	}
	cmd.Flags().BoolVar(&deps, "deps", true, "list the release's declared dependencies")
	return cmd
}

// findRelease returns the release equal to want under PEP 440, so 2.3
// finds 2.3.0. Unparseable numbers fall back to exact string equality.
func findRelease(versions []core.Version, want string) *core.Version {
	wantV, wantErr := version.Parse(want)
	for i := range versions {
		v := &versions[i]
		if v.Number == want {
			return v
		}
		if wantErr != nil {
			continue
		}
		if got, err := version.Parse(v.Number); err == nil && version.Compare(got, wantV) == 0 {
			return v
		}
	}
	return nil
}

// resolveTarget returns the index and package coordinates for a
// requirement string or package URL.
func (a *app) resolveTarget(arg string) (core.Index, string, string, error) {
	if strings.HasPrefix(arg, "pkg:") {
		p, err := core.ParsePURL(arg)
		if err != nil {
			return nil, "", "", err
		}
		if err := p.CheckType(); err != nil {
			return nil, "", "", err
		}
		if p.Qualifiers.Map()["repository_url"] != "" {
			return core.NewFromPURL(arg, a.cfg.Index, a.client())
		}
		idx, err := a.index()
		if err != nil {
			return nil, "", "", err
		}
		return idx, core.NormalizeName(p.FullName()), p.Version, nil
	}

	req, err := manifest.ParseLine(arg)
	if err != nil {
		return nil, "", "", fmt.Errorf("parsing %q: %w", arg, err)
	}
	if req.URL != "" {
		return nil, "", "", fmt.Errorf("%s is a direct reference and has no index entry", req.Name)
	}
	version, _ := req.Pinned()
	idx, err := a.index()
	if err != nil {
		return nil, "", "", err
	}
	return idx, req.NormalizedName(), version, nil
}
