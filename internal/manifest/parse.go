// Package manifest parses, formats and lints Python dependency manifests
// in the requirements.txt format.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/git-pkgs/requirements/internal/core"
)

const maxLineSize = 1 << 20

var inlineCommentRe = regexp.MustCompile(`(^|\s+)#.*$`)

// knownOptions maps every accepted option spelling to its canonical long
// form and whether it takes a value.
var knownOptions = map[string]struct {
	long     string
	hasValue bool
}{
	"-r":                {"--requirement", true},
	"--requirement":     {"--requirement", true},
	"-c":                {"--constraint", true},
	"--constraint":      {"--constraint", true},
	"-e":                {"--editable", true},
	"--editable":        {"--editable", true},
	"-i":                {"--index-url", true},
	"--index-url":       {"--index-url", true},
	"--extra-index-url": {"--extra-index-url", true},
	"--no-index":        {"--no-index", false},
	"-f":                {"--find-links", true},
	"--find-links":      {"--find-links", true},
	"--pre":             {"--pre", false},
	"--no-binary":       {"--no-binary", true},
	"--only-binary":     {"--only-binary", true},
	"--prefer-binary":   {"--prefer-binary", false},
	"--trusted-host":    {"--trusted-host", true},
	"--require-hashes":  {"--require-hashes", false},
	"--use-feature":     {"--use-feature", true},
}

// Parse reads a manifest from r. Lines that fail to parse are kept as
// core.Invalid lines carrying a *core.SyntaxError; Parse itself only fails
// when r cannot be read.
func Parse(r io.Reader, path string) (*core.Manifest, error) {
	m := &core.Manifest{Path: path}
	b := newBuilder(m)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		pending      strings.Builder
		pendingStart int
		lineNo       int
	)

	for scanner.Scan() {
		lineNo++
		text := strings.TrimRight(scanner.Text(), " \t\r")
		if lineNo == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}

		isComment := strings.HasPrefix(strings.TrimSpace(text), "#")
		if !isComment && strings.HasSuffix(text, `\`) {
			if pending.Len() == 0 {
				pendingStart = lineNo
			}
			pending.WriteString(strings.TrimSuffix(text, `\`))
			continue
		}

		if pending.Len() > 0 {
			pending.WriteString(text)
			b.add(parseLogicalLine(pendingStart, pending.String()))
			pending.Reset()
			continue
		}

		b.add(parseLogicalLine(lineNo, text))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if pending.Len() > 0 {
		b.add(parseLogicalLine(pendingStart, pending.String()))
	}

	b.finish()
	return m, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s, path string) (*core.Manifest, error) {
	return Parse(strings.NewReader(s), path)
}

// ParseFile parses the manifest at path and follows -r includes relative
// to the including file. An include cycle is an error.
func ParseFile(path string) (*core.Manifest, error) {
	return parseFile(path, map[string]bool{})
}

func parseFile(path string, visiting map[string]bool) (*core.Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if visiting[abs] {
		return nil, fmt.Errorf("include cycle at %s", path)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := Parse(f, path)
	if err != nil {
		return nil, err
	}

	for _, line := range m.Lines {
		if line.Option == nil || line.Option.Name != "--requirement" {
			continue
		}
		incPath := line.Option.Value
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(filepath.Dir(path), incPath)
		}
		inc, err := parseFile(incPath, visiting)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line.Number, err)
		}
		m.Includes = append(m.Includes, inc)
	}

	return m, nil
}

func parseLogicalLine(number int, raw string) core.Line {
	line := core.Line{Number: number, Raw: raw}
	trimmed := strings.TrimSpace(raw)

	switch {
	case trimmed == "":
		line.Kind = core.Blank
		return line
	case strings.HasPrefix(trimmed, "#"):
		line.Kind = core.Comment
		line.Comment = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		return line
	}

	if loc := inlineCommentRe.FindStringIndex(trimmed); loc != nil {
		comment := trimmed[loc[0]:]
		line.Comment = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(comment), "#"))
		trimmed = strings.TrimSpace(trimmed[:loc[0]])
	}

	if strings.HasPrefix(trimmed, "-") {
		opt, err := parseOption(trimmed)
		if err != nil {
			return invalid(line, err)
		}
		line.Kind = core.OptionLine
		line.Option = opt
		return line
	}

	body, hashes, err := parseHashes(trimmed)
	if err != nil {
		return invalid(line, err)
	}

	req, err := ParseLine(body)
	if err != nil {
		return invalid(line, err)
	}
	req.Hashes = hashes
	req.Line = number

	line.Kind = core.RequirementLine
	line.Requirement = req
	return line
}

func invalid(line core.Line, err error) core.Line {
	line.Kind = core.Invalid
	if se, ok := err.(*core.SyntaxError); ok {
		se.Line = line.Number
		line.Err = se
		return line
	}
	line.Err = &core.SyntaxError{Line: line.Number, Msg: err.Error()}
	return line
}

func parseOption(s string) (*core.Option, error) {
	name, value := s, ""
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		name, value = s[:i], s[i+1:]
	}
	switch {
	case strings.HasPrefix(name, "--"):
		if n, v, ok := strings.Cut(name, "="); ok {
			name, value = n, v+" "+value
		}
	case len(name) > 2:
		// Short options may carry their value attached: -rbase.txt
		name, value = name[:2], name[2:]+" "+value
	}
	value = strings.TrimSpace(value)

	spec, ok := knownOptions[name]
	if !ok {
		return nil, &core.SyntaxError{Column: 1, Msg: fmt.Sprintf("unknown option %q", name)}
	}
	if spec.hasValue && value == "" {
		return nil, &core.SyntaxError{Column: len(name) + 1, Msg: fmt.Sprintf("option %s requires a value", name)}
	}
	if !spec.hasValue && value != "" {
		return nil, &core.SyntaxError{Column: len(name) + 2, Msg: fmt.Sprintf("option %s takes no value", name)}
	}
	return &core.Option{Name: spec.long, Value: value}, nil
}

// builder tracks the header and section state while lines are added.
type builder struct {
	m        *core.Manifest
	pending  []string
	seenBody bool
	section  int // index into m.Sections, -1 before the first requirement
}

func newBuilder(m *core.Manifest) *builder {
	return &builder{m: m, section: -1}
}

func (b *builder) add(line core.Line) {
	b.m.Lines = append(b.m.Lines, line)

	switch line.Kind {
	case core.Comment:
		b.pending = append(b.pending, line.Comment)
	case core.Blank:
		if !b.seenBody && b.m.Header == nil && len(b.pending) > 0 {
			b.m.Header = b.pending
		}
		b.pending = nil
	case core.RequirementLine:
		if len(b.pending) > 0 || b.section < 0 {
			title := ""
			if len(b.pending) > 0 {
				title = b.pending[len(b.pending)-1]
			}
			b.m.Sections = append(b.m.Sections, core.Section{Title: title})
			b.section = len(b.m.Sections) - 1
		}
		sec := &b.m.Sections[b.section]
		sec.Requirements = append(sec.Requirements, line.Requirement)
		b.pending = nil
		b.seenBody = true
	default:
		b.pending = nil
		b.seenBody = true
	}
}

func (b *builder) finish() {
	if !b.seenBody && b.m.Header == nil && len(b.pending) > 0 {
		b.m.Header = b.pending
	}
}
