package version

import (
	"fmt"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// Constraint is one operator/version clause, e.g. {">=", "2.3.0"}.
type Constraint struct {
	Op      string
	Version string
}

var operators = map[string]bool{
	"===": true,
	"==":  true,
	"!=":  true,
	"~=":  true,
	"<=":  true,
	">=":  true,
	"<":   true,
	">":   true,
}

// Validate checks that version is acceptable for op.
func Validate(op, version string) error {
	version = strings.TrimSpace(version)
	if version == "" {
		return fmt.Errorf("missing version after %q", op)
	}
	if !operators[op] {
		return fmt.Errorf("unknown operator %q", op)
	}
	if strings.ContainsAny(version, " \t,;|") {
		return fmt.Errorf("invalid version %q", version)
	}
	if op == "===" {
		return nil
	}
	if _, err := pep440.NewSpecifiers(op + version); err != nil {
		return fmt.Errorf("invalid specifier %s%s: %w", op, version, err)
	}
	return nil
}

// Set is a compiled list of constraints that must all hold.
type Set struct {
	specs       pep440.Specifiers
	hasSpecs    bool
	arbitrary   []string
	mentionsPre bool
}

// NewSet validates constraints and compiles them for repeated matching.
func NewSet(constraints []Constraint) (Set, error) {
	var (
		s       Set
		clauses []string
	)
	for _, c := range constraints {
		if err := Validate(c.Op, c.Version); err != nil {
			return Set{}, err
		}
		v := strings.TrimSpace(c.Version)
		if c.Op == "===" {
			s.arbitrary = append(s.arbitrary, v)
			continue
		}
		clauses = append(clauses, c.Op+v)
	}
	if len(clauses) > 0 {
		specs, err := pep440.NewSpecifiers(strings.Join(clauses, ","))
		if err != nil {
			return Set{}, fmt.Errorf("invalid specifier %s: %w", strings.Join(clauses, ","), err)
		}
		s.specs, s.hasSpecs = specs, true
	}
	s.mentionsPre = mentionsPrerelease(constraints)
	return s, nil
}

// Match reports whether v satisfies every constraint in s. Pre-releases
// only match when allowPre is set or a constraint names a pre-release.
func (s Set) Match(v Version, allowPre bool) bool {
	if v.IsPrerelease() && !allowPre && !s.mentionsPre {
		return false
	}
	for _, a := range s.arbitrary {
		if !strings.EqualFold(v.Original(), a) {
			return false
		}
	}
	return !s.hasSpecs || s.specs.Check(v.v)
}

// Match reports whether v satisfies the clause op spec.
func Match(op, spec string, v Version) (bool, error) {
	s, err := NewSet([]Constraint{{Op: op, Version: spec}})
	if err != nil {
		return false, err
	}
	return s.Match(v, true), nil
}

// MatchAll reports whether v satisfies every constraint. Pre-releases only
// match when allowPre is set or a constraint names a pre-release.
func MatchAll(constraints []Constraint, v Version, allowPre bool) (bool, error) {
	s, err := NewSet(constraints)
	if err != nil {
		return false, err
	}
	return s.Match(v, allowPre), nil
}

func mentionsPrerelease(constraints []Constraint) bool {
	for _, c := range constraints {
		if c.Op == "!=" || c.Op == "===" {
			continue
		}
		spec := strings.TrimSuffix(strings.TrimSpace(c.Version), ".*")
		if v, err := Parse(spec); err == nil && v.IsPrerelease() {
			return true
		}
	}
	return false
}
