package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/git-pkgs/requirements/internal/core"
	"github.com/git-pkgs/requirements/internal/version"
)

var (
	nameRe       = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?`)
	fullNameRe   = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	urlSchemeRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://\S+$`)
	hashOptionRe = regexp.MustCompile(`^--hash[= ]\s*([A-Za-z0-9]+:[A-Fa-f0-9]+)$`)
)

// ParseLine parses a single requirement such as "flask[async]>=2.3.0,<3 ; python_version>='3.8'".
// Errors are *core.SyntaxError with Line set to zero.
func ParseLine(s string) (*core.Requirement, error) {
	p := &reqParser{src: s}
	return p.parse()
}

type reqParser struct {
	src string
	pos int
}

func (p *reqParser) errorf(format string, args ...any) error {
	return &core.SyntaxError{Column: p.pos + 1, Msg: fmt.Sprintf(format, args...)}
}

func (p *reqParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *reqParser) rest() string {
	return p.src[p.pos:]
}

func (p *reqParser) parse() (*core.Requirement, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, p.errorf("empty requirement")
	}

	name := nameRe.FindString(p.rest())
	if name == "" {
		return nil, p.errorf("expected package name, found %q", firstRune(p.rest()))
	}
	req := &core.Requirement{Name: name}
	p.pos += len(name)
	p.skipSpace()

	if strings.HasPrefix(p.rest(), "[") {
		extras, err := p.parseExtras()
		if err != nil {
			return nil, err
		}
		req.Extras = extras
		p.skipSpace()
	}

	body, marker, hasMarker := strings.Cut(p.rest(), ";")
	if hasMarker {
		marker = strings.TrimSpace(marker)
		if marker == "" {
			p.pos += len(body) + 1
			return nil, p.errorf("empty environment marker")
		}
		req.Marker = marker
	}

	if strings.HasPrefix(body, "@") {
		p.pos++
		url := strings.TrimSpace(body[1:])
		if !urlSchemeRe.MatchString(url) {
			return nil, p.errorf("invalid direct reference URL %q", url)
		}
		req.URL = url
		return req, nil
	}

	specs, err := p.parseSpecifiers(body)
	if err != nil {
		return nil, err
	}
	req.Specifiers = specs
	return req, nil
}

func (p *reqParser) parseExtras() ([]string, error) {
	end := strings.IndexByte(p.rest(), ']')
	if end < 0 {
		return nil, p.errorf("unclosed extras bracket")
	}
	inner := p.rest()[1:end]
	start := p.pos + 1
	p.pos += end + 1

	var extras []string
	for _, part := range strings.Split(inner, ",") {
		extra := strings.TrimSpace(part)
		if extra == "" {
			if strings.TrimSpace(inner) == "" {
				continue
			}
			return nil, &core.SyntaxError{Column: start + 1, Msg: "empty extra name"}
		}
		if !fullNameRe.MatchString(extra) {
			return nil, &core.SyntaxError{Column: start + 1, Msg: fmt.Sprintf("invalid extra name %q", extra)}
		}
		extras = append(extras, extra)
	}
	return extras, nil
}

func (p *reqParser) parseSpecifiers(body string) ([]core.Specifier, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "(") {
		if !strings.HasSuffix(trimmed, ")") {
			return nil, p.errorf("unclosed parenthesis in version specifier")
		}
		trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
		if trimmed == "" {
			return nil, p.errorf("empty version specifier")
		}
	}

	var specs []core.Specifier
	for _, clause := range strings.Split(trimmed, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return nil, p.errorf("empty version clause in %q", trimmed)
		}

		op, ok := matchOperator(clause)
		if !ok {
			switch {
			case clause[0] >= '0' && clause[0] <= '9':
				return nil, p.errorf("missing comparator before version %q", clause)
			case strings.ContainsAny(clause[:1], "=<>!~"):
				return nil, p.errorf("invalid comparator in %q", clause)
			default:
				return nil, p.errorf("unexpected %q after package name", clause)
			}
		}

		ver := strings.TrimSpace(clause[len(op):])
		if err := version.Validate(string(op), ver); err != nil {
			return nil, p.errorf("%v", err)
		}
		specs = append(specs, core.Specifier{Op: op, Version: ver})
	}
	return specs, nil
}

func matchOperator(clause string) (core.Operator, bool) {
	for _, op := range core.Operators {
		if strings.HasPrefix(clause, string(op)) {
			return op, true
		}
	}
	return "", false
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// parseHashes splits trailing --hash options from a requirement line.
func parseHashes(line string) (body string, hashes []string, err error) {
	idx := strings.Index(line, " --")
	if idx < 0 {
		idx = strings.Index(line, "\t--")
	}
	if idx < 0 {
		return line, nil, nil
	}

	body = line[:idx]
	for _, opt := range splitOptions(line[idx:]) {
		m := hashOptionRe.FindStringSubmatch(opt)
		if m == nil {
			return "", nil, &core.SyntaxError{Column: idx + 2, Msg: fmt.Sprintf("unsupported requirement option %q", opt)}
		}
		hashes = append(hashes, m[1])
	}
	return body, hashes, nil
}

// splitOptions splits " --a=1 --b 2" into ["--a=1", "--b 2"].
func splitOptions(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		if strings.HasPrefix(f, "--") || len(out) == 0 {
			out = append(out, f)
			continue
		}
		out[len(out)-1] += " " + f
	}
	return out
}
