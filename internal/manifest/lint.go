package manifest

import (
	"fmt"

	"github.com/git-pkgs/requirements/internal/core"
)

// Diagnostic codes reported by Lint.
const (
	CodeSyntax        = "syntax"
	CodeDuplicate     = "duplicate"
	CodeUnpinned      = "unpinned"
	CodeNotNormalized = "name-not-normalized"
	CodeDirectRef     = "direct-reference"
	CodeEmpty         = "empty-manifest"
)

// Lint checks m and its includes without contacting an index.
func Lint(m *core.Manifest) []core.Diagnostic {
	l := &linter{seen: make(map[string]location)}
	l.walk(m)
	if len(m.Requirements()) == 0 && len(m.Invalid()) == 0 {
		l.diags = append(l.diags, core.Diagnostic{
			Path:     m.Path,
			Severity: core.SeverityWarning,
			Code:     CodeEmpty,
			Message:  "manifest declares no requirements",
		})
	}
	return l.diags
}

type location struct {
	path string
	line int
}

type linter struct {
	seen  map[string]location
	diags []core.Diagnostic
}

func (l *linter) add(path string, line int, sev core.Severity, code, msg string) {
	l.diags = append(l.diags, core.Diagnostic{
		Path:     path,
		Line:     line,
		Severity: sev,
		Code:     code,
		Message:  msg,
	})
}

func (l *linter) walk(m *core.Manifest) {
	for _, line := range m.Lines {
		switch line.Kind {
		case core.Invalid:
			l.add(m.Path, line.Number, core.SeverityError, CodeSyntax, syntaxMessage(line.Err))
		case core.RequirementLine:
			l.requirement(m.Path, line.Requirement)
		}
	}
	for _, inc := range m.Includes {
		l.walk(inc)
	}
}

func (l *linter) requirement(path string, r *core.Requirement) {
	norm := r.NormalizedName()
	// The same package may legitimately appear once per distinct marker.
	key := norm + ";" + r.Marker
	if prev, ok := l.seen[key]; ok {
		l.add(path, r.Line, core.SeverityWarning, CodeDuplicate,
			fmt.Sprintf("%s already declared at %s:%d", norm, prev.path, prev.line))
	} else {
		l.seen[key] = location{path: path, line: r.Line}
	}

	if r.URL != "" {
		l.add(path, r.Line, core.SeverityInfo, CodeDirectRef,
			fmt.Sprintf("%s is a direct reference and is not checked against the index", norm))
		return
	}

	if len(r.Specifiers) == 0 {
		l.add(path, r.Line, core.SeverityWarning, CodeUnpinned,
			fmt.Sprintf("%s has no version specifier", r.Name))
	}

	if r.Name != norm {
		l.add(path, r.Line, core.SeverityInfo, CodeNotNormalized,
			fmt.Sprintf("%s is normally written %s", r.Name, norm))
	}
}

func syntaxMessage(err error) string {
	if se, ok := err.(*core.SyntaxError); ok {
		if se.Column > 0 {
			return fmt.Sprintf("column %d: %s", se.Column, se.Msg)
		}
		return se.Msg
	}
	if err != nil {
		return err.Error()
	}
	return "invalid line"
}
