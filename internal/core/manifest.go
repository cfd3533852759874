package core

import (
	"regexp"
	"strings"
)

// LineKind classifies a logical manifest line.
type LineKind int

const (
	Blank LineKind = iota
	Comment
	RequirementLine
	OptionLine
	Invalid
)

func (k LineKind) String() string {
	switch k {
	case Blank:
		return "blank"
	case Comment:
		return "comment"
	case RequirementLine:
		return "requirement"
	case OptionLine:
		return "option"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// Operator is a version comparison operator.
type Operator string

const (
	OpEqual      Operator = "=="
	OpNotEqual   Operator = "!="
	OpLessEq     Operator = "<="
	OpGreaterEq  Operator = ">="
	OpLess       Operator = "<"
	OpGreater    Operator = ">"
	OpCompatible Operator = "~="
	OpArbitrary  Operator = "==="
)

// Operators lists every comparator, longest first so prefix scans are greedy.
var Operators = []Operator{OpArbitrary, OpEqual, OpNotEqual, OpLessEq, OpGreaterEq, OpCompatible, OpLess, OpGreater}

// Specifier is a single version clause such as ">=2.3.0".
type Specifier struct {
	Op      Operator
	Version string
}

func (s Specifier) String() string {
	return string(s.Op) + s.Version
}

// Requirement is one dependency declared in a manifest.
type Requirement struct {
	Name       string
	Extras     []string
	Specifiers []Specifier
	Marker     string // environment marker, kept verbatim
	URL        string // direct reference (name @ url)
	Hashes     []string
	Line       int
}

var normalizeRe = regexp.MustCompile(`[-_.]+`)

// NormalizeName returns the PEP 503 normalized form of a project name.
func NormalizeName(name string) string {
	return strings.ToLower(normalizeRe.ReplaceAllString(name, "-"))
}

// NormalizedName returns the PEP 503 normalized package name.
func (r *Requirement) NormalizedName() string {
	return NormalizeName(r.Name)
}

// Pinned returns the exact version when the requirement has a single
// non-wildcard == specifier.
func (r *Requirement) Pinned() (string, bool) {
	if len(r.Specifiers) != 1 {
		return "", false
	}
	s := r.Specifiers[0]
	if s.Op != OpEqual && s.Op != OpArbitrary {
		return "", false
	}
	if strings.HasSuffix(s.Version, ".*") {
		return "", false
	}
	return s.Version, true
}

// SpecifierString joins the specifiers with commas.
func (r *Requirement) SpecifierString() string {
	parts := make([]string, len(r.Specifiers))
	for i, s := range r.Specifiers {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// String renders the requirement in canonical form.
func (r *Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.NormalizedName())
	if len(r.Extras) > 0 {
		b.WriteString("[")
		b.WriteString(strings.Join(r.Extras, ","))
		b.WriteString("]")
	}
	if r.URL != "" {
		b.WriteString(" @ ")
		b.WriteString(r.URL)
	} else {
		b.WriteString(r.SpecifierString())
	}
	if r.Marker != "" {
		b.WriteString(" ; ")
		b.WriteString(r.Marker)
	}
	for _, h := range r.Hashes {
		b.WriteString(" --hash=")
		b.WriteString(h)
	}
	return b.String()
}

// Option is a pip option line such as "-r base.txt".
type Option struct {
	Name  string
	Value string
}

func (o Option) String() string {
	if o.Value == "" {
		return o.Name
	}
	return o.Name + " " + o.Value
}

// Line is one logical line of a manifest. Continuations are joined and
// Number refers to the first physical line.
type Line struct {
	Number      int
	Raw         string
	Kind        LineKind
	Comment     string
	Requirement *Requirement
	Option      *Option
	Err         error
}

// Section groups requirements under the comment header that precedes them.
type Section struct {
	Title        string
	Requirements []*Requirement
}

// Manifest is a parsed dependency manifest.
type Manifest struct {
	Path     string
	Header   []string
	Lines    []Line
	Sections []Section
	Includes []*Manifest
}

// Requirements returns every requirement in file order, followed by the
// requirements of included manifests.
func (m *Manifest) Requirements() []*Requirement {
	var reqs []*Requirement
	for i := range m.Lines {
		if m.Lines[i].Requirement != nil {
			reqs = append(reqs, m.Lines[i].Requirement)
		}
	}
	for _, inc := range m.Includes {
		reqs = append(reqs, inc.Requirements()...)
	}
	return reqs
}

// Invalid returns the lines that failed to parse, including those of
// included manifests.
func (m *Manifest) Invalid() []Line {
	var out []Line
	for _, l := range m.Lines {
		if l.Kind == Invalid {
			out = append(out, l)
		}
	}
	for _, inc := range m.Includes {
		out = append(out, inc.Invalid()...)
	}
	return out
}
