package core

import "fmt"

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a finding about a manifest line.
type Diagnostic struct {
	Path     string   `json:"path" yaml:"path"`
	Line     int      `json:"line" yaml:"line"`
	Severity Severity `json:"severity" yaml:"severity"`
	Code     string   `json:"code" yaml:"code"`
	Message  string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s (%s)", d.Path, d.Line, d.Severity, d.Message, d.Code)
}
