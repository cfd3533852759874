// Package report renders check reports as text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/requirements/internal/check"
	"github.com/git-pkgs/requirements/internal/core"
)

// Format names an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatText, FormatJSON, FormatYAML}

// ParseFormat validates a format name. Matching is case-insensitive and
// "yml" is accepted as an alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or yaml)", s)
}

// Options tune text output.
type Options struct {
	NoColor bool
}

// Render writes a single report.
func Render(w io.Writer, r *check.Report, f Format, opts Options) error {
	return RenderAll(w, []*check.Report{r}, f, opts)
}

// RenderAll writes several reports. JSON output is an array, YAML output
// is a stream with one document per report.
func RenderAll(w io.Writer, reports []*check.Report, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if reports == nil {
			reports = []*check.Report{}
		}
		return enc.Encode(reports)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		for _, r := range reports {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encoding yaml: %w", err)
			}
		}
		return enc.Close()
	case FormatText, "":
		t := newText(w, opts)
		for i, r := range reports {
			if i > 0 {
				t.println("")
			}
			t.report(r)
		}
		return t.err
	}
	return fmt.Errorf("unknown format %q", f)
}

type styles struct {
	title  lipgloss.Style
	faint  lipgloss.Style
	name   lipgloss.Style
	status map[check.Status]lipgloss.Style
	sev    map[core.Severity]lipgloss.Style
}

func (s styles) forStatus(st check.Status) lipgloss.Style {
	if style, ok := s.status[st]; ok {
		return style
	}
	return s.faint
}

func (s styles) forSeverity(sev core.Severity) lipgloss.Style {
	if style, ok := s.sev[sev]; ok {
		return style
	}
	return s.faint
}

func newStyles(w io.Writer, noColor bool) styles {
	r := lipgloss.NewRenderer(w)
	plain := r.NewStyle()

	s := styles{
		title: plain,
		faint: plain,
		name:  plain,
	}
	if noColor {
		return s
	}

	red := lipgloss.Color("9")
	yellow := lipgloss.Color("11")
	green := lipgloss.Color("10")
	blue := lipgloss.Color("12")

	s.title = r.NewStyle().Bold(true)
	s.faint = r.NewStyle().Faint(true)
	s.name = r.NewStyle().Bold(true)
	s.status = map[check.Status]lipgloss.Style{
		check.StatusOK:              r.NewStyle().Foreground(green),
		check.StatusSkipped:         r.NewStyle().Foreground(blue),
		check.StatusYanked:          r.NewStyle().Foreground(yellow),
		check.StatusNotFound:        r.NewStyle().Foreground(red).Bold(true),
		check.StatusNoMatch:         r.NewStyle().Foreground(red).Bold(true),
		check.StatusArtifactMissing: r.NewStyle().Foreground(red),
		check.StatusError:           r.NewStyle().Foreground(red),
	}
	s.sev = map[core.Severity]lipgloss.Style{
		core.SeverityError:   r.NewStyle().Foreground(red).Bold(true),
		core.SeverityWarning: r.NewStyle().Foreground(yellow),
		core.SeverityInfo:    r.NewStyle().Foreground(blue),
	}
	return s
}

type text struct {
	w   io.Writer
	s   styles
	err error
}

func newText(w io.Writer, opts Options) *text {
	return &text{w: w, s: newStyles(w, opts.NoColor)}
}

func (t *text) println(s string) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintln(t.w, s)
}

// pad right-fills s to width visible cells. Longer values are kept whole.
func pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s + " "
}

func (t *text) report(r *check.Report) {
	title := r.Path
	if title == "" {
		title = "<stdin>"
	}
	if r.Index != "" {
		title += t.s.faint.Render(" (index: " + r.Index + ")")
	}
	t.println(t.s.title.Render(title))

	for _, d := range r.Diagnostics {
		sev := t.s.forSeverity(d.Severity).Render(string(d.Severity))
		t.println(fmt.Sprintf("  %s:%d: %s: %s %s", d.Path, d.Line, sev, d.Message, t.s.faint.Render("["+d.Code+"]")))
	}

	for _, res := range r.Results {
		label := res.Name + res.Specifier
		line := "  " + pad(t.s.forStatus(res.Status).Render(string(res.Status)), 17) +
			pad(t.s.name.Render(label), 32)
		var detail []string
		if res.Best != "" {
			detail = append(detail, "resolved "+res.Best)
		}
		if res.Latest != "" && res.Latest != res.Best {
			detail = append(detail, "latest "+res.Latest)
		}
		if res.License != "" {
			detail = append(detail, res.License)
		}
		if res.Status != check.StatusOK && res.Message != "" {
			detail = append(detail, res.Message)
		} else if res.Message != "" {
			detail = append(detail, t.s.faint.Render(res.Message))
		}
		t.println(strings.TrimRight(line+" "+strings.Join(detail, ", "), " "))
	}

	for _, b := range r.Breakers {
		if b.State != "closed" {
			t.println(fmt.Sprintf("  %s breaker %s", b.Host, b.State))
		}
	}

	t.println(t.s.faint.Render(summary(r)))
}

func summary(r *check.Report) string {
	sev := r.Severities()
	parts := []string{
		plural(len(r.Diagnostics), "diagnostic"),
	}
	for _, s := range []core.Severity{core.SeverityError, core.SeverityWarning, core.SeverityInfo} {
		if sev[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", sev[s], s))
		}
	}
	out := strings.Join(parts, ", ")

	if len(r.Results) == 0 {
		return out
	}

	counts := r.Counts()
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	res := []string{plural(len(r.Results), "requirement")}
	for _, s := range statuses {
		res = append(res, fmt.Sprintf("%d %s", counts[check.Status(s)], s))
	}
	return out + "; " + strings.Join(res, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
