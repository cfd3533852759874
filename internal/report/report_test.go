package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/requirements/fetch"
	"github.com/git-pkgs/requirements/internal/check"
	"github.com/git-pkgs/requirements/internal/core"
)

func sampleReport() *check.Report {
	return &check.Report{
		Path:  "requirements.txt",
		Index: "pypi",
		Diagnostics: []core.Diagnostic{
			{Path: "requirements.txt", Line: 4, Severity: core.SeverityError, Code: "syntax", Message: "missing comparator before version"},
			{Path: "requirements.txt", Line: 2, Severity: core.SeverityWarning, Code: "unpinned", Message: "requests has no version specifier"},
		},
		Results: []check.Result{
			{Path: "requirements.txt", Line: 1, Name: "flask", Specifier: ">=2.3.0", PURL: "pkg:pypi/flask", Status: check.StatusOK, Best: "2.3.0", Latest: "3.0.0"},
			{Path: "requirements.txt", Line: 2, Name: "requests", PURL: "pkg:pypi/requests", Status: check.StatusOK, Best: "2.31.0", Latest: "2.31.0"},
			{Path: "requirements.txt", Line: 3, Name: "missing-package", PURL: "pkg:pypi/missing-package", Status: check.StatusNotFound, Message: "missing-package is not on the pypi index"},
		},
		Breakers: []fetch.BreakerState{{Host: "pypi.org", State: "open"}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleReport(), FormatText, Options{NoColor: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"requirements.txt (index: pypi)",
		"requirements.txt:4: error: missing comparator before version [syntax]",
		"flask>=2.3.0",
		"resolved 2.3.0, latest 3.0.0",
		"not_found",
		"missing-package is not on the pypi index",
		"pypi.org breaker open",
		"2 diagnostics, 1 error, 1 warning; 3 requirements, 1 not_found, 2 ok",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("expected no escape sequences with NoColor")
	}
}

func TestRenderTextLintOnly(t *testing.T) {
	var buf bytes.Buffer
	r := &check.Report{Path: "requirements.txt"}
	if err := Render(&buf, r, FormatText, Options{NoColor: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "0 diagnostics") {
		t.Errorf("unexpected output: %q", buf.String())
	}
	if strings.Contains(buf.String(), "; ") {
		t.Errorf("lint-only report should not summarise requirements: %q", buf.String())
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderAll(&buf, []*check.Report{sampleReport(), {Path: "dev.txt"}}, FormatJSON, Options{}); err != nil {
		t.Fatalf("RenderAll failed: %v", err)
	}

	var decoded []struct {
		Path    string `json:"path"`
		Results []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			PURL   string `json:"purl"`
		} `json:"results"`
		Diagnostics []struct {
			Code     string `json:"code"`
			Severity string `json:"severity"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(decoded))
	}
	if decoded[0].Results[2].Status != "not_found" {
		t.Errorf("expected not_found, got %q", decoded[0].Results[2].Status)
	}
	if decoded[0].Diagnostics[0].Severity != "error" {
		t.Errorf("expected error severity, got %q", decoded[0].Diagnostics[0].Severity)
	}
	if decoded[1].Path != "dev.txt" {
		t.Errorf("expected dev.txt, got %q", decoded[1].Path)
	}
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleReport(), FormatYAML, Options{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded["index"] != "pypi" {
		t.Errorf("expected index pypi, got %v", decoded["index"])
	}
	results, ok := decoded["results"].([]any)
	if !ok || len(results) != 3 {
		t.Fatalf("expected 3 results, got %v", decoded["results"])
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if err := Render(&bytes.Buffer{}, sampleReport(), Format("xml"), Options{}); err == nil {
		t.Error("expected error for unknown format")
	}
}
