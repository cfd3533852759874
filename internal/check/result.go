package check

import (
	"github.com/git-pkgs/requirements/fetch"
	"github.com/git-pkgs/requirements/internal/core"
)

// Status is the outcome of resolving one requirement against the index.
type Status string

const (
	StatusOK              Status = "ok"
	StatusNotFound        Status = "not_found"
	StatusNoMatch         Status = "no_match"
	StatusYanked          Status = "yanked"
	StatusSkipped         Status = "skipped"
	StatusError           Status = "error"
	StatusArtifactMissing Status = "artifact_missing"
)

// Result is the resolution outcome for one requirement.
type Result struct {
	Path      string `json:"path" yaml:"path"`
	Line      int    `json:"line" yaml:"line"`
	Name      string `json:"name" yaml:"name"`
	Specifier string `json:"specifier,omitempty" yaml:"specifier,omitempty"`
	PURL      string `json:"purl" yaml:"purl"`
	Status    Status `json:"status" yaml:"status"`
	Latest    string `json:"latest,omitempty" yaml:"latest,omitempty"`
	Best      string `json:"best,omitempty" yaml:"best,omitempty"`
	License   string `json:"license,omitempty" yaml:"license,omitempty"`
	Artifact  string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`

	Requirement *core.Requirement `json:"-" yaml:"-"`
	Err         error             `json:"-" yaml:"-"`
}

// Report collects lint diagnostics and resolution results for a manifest.
type Report struct {
	Path        string               `json:"path" yaml:"path"`
	Index       string               `json:"index,omitempty" yaml:"index,omitempty"`
	Diagnostics []core.Diagnostic    `json:"diagnostics" yaml:"diagnostics"`
	Results     []Result             `json:"results,omitempty" yaml:"results,omitempty"`
	Breakers    []fetch.BreakerState `json:"breakers,omitempty" yaml:"breakers,omitempty"`
}

// Failed reports whether the manifest should be rejected. Syntax errors
// and unresolvable requirements always fail; strict also fails on
// warnings and on requirements that only match yanked releases.
func (r *Report) Failed(strict bool) bool {
	for _, d := range r.Diagnostics {
		if d.Severity == core.SeverityError {
			return true
		}
		if strict && d.Severity == core.SeverityWarning {
			return true
		}
	}
	for _, res := range r.Results {
		switch res.Status {
		case StatusNotFound, StatusNoMatch, StatusError, StatusArtifactMissing:
			return true
		case StatusYanked:
			if strict {
				return true
			}
		}
	}
	return false
}

// Counts tallies results by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Severities tallies diagnostics by severity.
func (r *Report) Severities() map[core.Severity]int {
	counts := make(map[core.Severity]int)
	for _, d := range r.Diagnostics {
		counts[d.Severity]++
	}
	return counts
}
