package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/requirements/internal/core"
)

// PackageInfo is the summary printed by the info command.
type PackageInfo struct {
	Name         string            `json:"name" yaml:"name"`
	Index        string            `json:"index" yaml:"index"`
	Summary      string            `json:"summary,omitempty" yaml:"summary,omitempty"`
	License      string            `json:"license,omitempty" yaml:"license,omitempty"`
	Homepage     string            `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	Repository   string            `json:"repository,omitempty" yaml:"repository,omitempty"`
	Version      string            `json:"version,omitempty" yaml:"version,omitempty"`
	Latest       string            `json:"latest,omitempty" yaml:"latest,omitempty"`
	Releases     int               `json:"releases" yaml:"releases"`
	Yanked       bool              `json:"yanked,omitempty" yaml:"yanked,omitempty"`
	PURL         string            `json:"purl" yaml:"purl"`
	URLs         map[string]string `json:"urls,omitempty" yaml:"urls,omitempty"`
	Dependencies []core.Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// RenderInfo writes a package summary.
func RenderInfo(w io.Writer, info *PackageInfo, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatText, "":
	default:
		return fmt.Errorf("unknown format %q", f)
	}

	t := newText(w, opts)
	title := info.Name
	if info.Version != "" {
		title += " " + info.Version
	}
	t.println(t.s.title.Render(title))

	field := func(label, value string) {
		if value != "" {
			t.println(fmt.Sprintf("  %s %s", pad(t.s.faint.Render(label), 12), value))
		}
	}
	field("summary", info.Summary)
	field("license", info.License)
	field("homepage", info.Homepage)
	field("repository", info.Repository)
	field("latest", info.Latest)
	field("releases", fmt.Sprint(info.Releases))
	if info.Yanked {
		field("status", t.s.forStatus("yanked").Render("yanked"))
	}
	field("purl", info.PURL)

	keys := make([]string, 0, len(info.URLs))
	for k := range info.URLs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k != "purl" {
			field(k, info.URLs[k])
		}
	}

	if len(info.Dependencies) > 0 {
		t.println(fmt.Sprintf("  %s", t.s.faint.Render("dependencies")))
		for _, d := range info.Dependencies {
			line := "    " + d.Name
			if d.Requirements != "*" {
				line += d.Requirements
			}
			if d.Marker != "" {
				line += " ; " + d.Marker
			}
			if d.Optional {
				line += " " + t.s.faint.Render("(optional)")
			}
			t.println(strings.TrimRight(line, " "))
		}
	}
	return t.err
}
