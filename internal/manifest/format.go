package manifest

import (
	"bufio"
	"io"

	"github.com/git-pkgs/requirements/internal/core"
)

// Format writes m in canonical form. Comments, blank lines and invalid
// lines are kept verbatim; requirements use normalized names.
func Format(w io.Writer, m *core.Manifest) error {
	bw := bufio.NewWriter(w)
	for _, line := range m.Lines {
		var out string
		switch line.Kind {
		case core.RequirementLine:
			out = line.Requirement.String()
			if line.Comment != "" {
				out += "  # " + line.Comment
			}
		case core.OptionLine:
			out = line.Option.String()
			if line.Comment != "" {
				out += "  # " + line.Comment
			}
		default:
			out = line.Raw
		}
		if _, err := bw.WriteString(out + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
