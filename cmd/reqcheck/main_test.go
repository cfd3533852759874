package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func runCmd(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requirements.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func pypiServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pypi/flask/json":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"info": map[string]any{"name": "Flask", "summary": "A simple framework", "license_expression": "BSD-3-Clause"},
				"releases": map[string]any{
					"2.2.5": []map[string]any{{"filename": "Flask-2.2.5.tar.gz", "packagetype": "sdist"}},
					"2.3.0": []map[string]any{{"filename": "Flask-2.3.0.tar.gz", "packagetype": "sdist"}},
				},
			})
		case "/pypi/flask/2.3.0/json":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"info": map[string]any{
					"name":          "Flask",
					"requires_dist": []string{"Werkzeug>=2.3.0", `asgiref>=3.2 ; extra == "async"`},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLintClean(t *testing.T) {
	path := writeManifest(t, "# Core Framework\nflask==2.3.0\nnumpy==1.26.4\n")

	code, out, errOut := runCmd(t, "", "lint", "--no-color", path)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "0 diagnostics") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestLintFindings(t *testing.T) {
	path := writeManifest(t, "flask>=2.3.0\nrequests\nnumpy 1.26\n")

	code, out, _ := runCmd(t, "", "lint", "--no-color", path)
	if code != exitFindings {
		t.Errorf("expected exit 1 for syntax error, got %d", code)
	}
	if !strings.Contains(out, "missing comparator before version") {
		t.Errorf("expected syntax error in output, got %q", out)
	}
}

func TestLintStrict(t *testing.T) {
	path := writeManifest(t, "flask>=2.3.0\nrequests\n")

	if code, _, _ := runCmd(t, "", "lint", path); code != exitOK {
		t.Errorf("expected exit 0 without --strict, got %d", code)
	}
	if code, _, _ := runCmd(t, "", "lint", "--strict", path); code != exitFindings {
		t.Errorf("expected exit 1 with --strict, got %d", code)
	}
}

func TestLintStdinJSON(t *testing.T) {
	code, out, errOut := runCmd(t, "flask==2.3.0\n", "lint", "-o", "json", "-")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	var reports []map[string]any
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(reports) != 1 || reports[0]["path"] != "<stdin>" {
		t.Errorf("unexpected reports %v", reports)
	}
}

func TestCheck(t *testing.T) {
	server := pypiServer(t)
	path := writeManifest(t, "Flask>=2.3.0\nmissing-package==1.0\n")

	code, out, errOut := runCmd(t, "", "check", "--index-url", server.URL, "--max-retries", "0", "-o", "json", path)
	if code != exitFindings {
		t.Fatalf("expected exit 1, got %d: %s", code, errOut)
	}

	var reports []struct {
		Results []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			Best   string `json:"best"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	results := reports[0].Results
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != "ok" || results[0].Best != "2.3.0" {
		t.Errorf("flask: got %+v", results[0])
	}
	if results[1].Status != "not_found" {
		t.Errorf("missing-package: got %+v", results[1])
	}
}

func TestFmt(t *testing.T) {
	path := writeManifest(t, "# Core\nFlask_Login >= 0.6 , < 1.0\n")

	code, out, _ := runCmd(t, "", "fmt", path)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if out != "# Core\nflask-login>=0.6,<1.0\n" {
		t.Errorf("unexpected formatted output %q", out)
	}

	if code, out, _ := runCmd(t, "", "fmt", "-l", path); code != exitFindings || !strings.Contains(out, path) {
		t.Errorf("fmt -l: expected exit 1 listing %s, got %d %q", path, code, out)
	}

	if code, _, _ := runCmd(t, "", "fmt", "-w", path); code != exitOK {
		t.Fatalf("fmt -w: expected exit 0, got %d", code)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "# Core\nflask-login>=0.6,<1.0\n" {
		t.Errorf("fmt -w wrote %q", string(data))
	}

	if code, _, _ := runCmd(t, "", "fmt", "-l", path); code != exitOK {
		t.Errorf("fmt -l after -w: expected exit 0, got %d", code)
	}
}

func TestPurl(t *testing.T) {
	path := writeManifest(t, "Flask>=2.3.0\nnumpy==1.26.4\nnumpy==1.26.4\nmylib @ https://example.com/mylib.tar.gz\n")

	code, out, _ := runCmd(t, "", "purl", path)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	want := "pkg:pypi/flask\npkg:pypi/numpy@1.26.4\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestInfo(t *testing.T) {
	server := pypiServer(t)

	code, out, errOut := runCmd(t, "", "info", "--index-url", server.URL, "-o", "json", "flask==2.3.0")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}

	var info struct {
		Name         string `json:"name"`
		Version      string `json:"version"`
		Latest       string `json:"latest"`
		License      string `json:"license"`
		PURL         string `json:"purl"`
		Releases     int    `json:"releases"`
		Dependencies []struct {
			Name     string `json:"name"`
			Optional bool   `json:"optional"`
		} `json:"dependencies"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if info.Name != "flask" || info.Version != "2.3.0" || info.Latest != "2.3.0" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.PURL != "pkg:pypi/flask@2.3.0" {
		t.Errorf("unexpected purl %q", info.PURL)
	}
	if info.Releases != 2 {
		t.Errorf("expected 2 releases, got %d", info.Releases)
	}
	if len(info.Dependencies) != 2 || !info.Dependencies[1].Optional {
		t.Errorf("unexpected dependencies %+v", info.Dependencies)
	}
}

func TestInfoUnknownVersion(t *testing.T) {
	server := pypiServer(t)

	code, _, errOut := runCmd(t, "", "info", "--index-url", server.URL, "flask==9.9.9")
	if code != exitFindings {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut, "9.9.9") {
		t.Errorf("expected version in error, got %q", errOut)
	}
}

func TestInfoEquivalentVersion(t *testing.T) {
	server := pypiServer(t)

	code, out, errOut := runCmd(t, "", "info", "--index-url", server.URL, "-o", "json", "flask==2.3")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	var info struct {
		Version string `json:"version"`
		PURL    string `json:"purl"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if info.Version != "2.3.0" || info.PURL != "pkg:pypi/flask@2.3.0" {
		t.Errorf("expected 2.3 to resolve to release 2.3.0, got %+v", info)
	}
}

func TestInfoRejectsForeignPURL(t *testing.T) {
	server := pypiServer(t)

	code, _, errOut := runCmd(t, "", "info", "--index-url", server.URL, "pkg:npm/flask@2.3.0")
	if code != exitUsage {
		t.Errorf("expected exit 2, got %d", code)
	}
	if !strings.Contains(errOut, "npm") {
		t.Errorf("expected PURL type in error, got %q", errOut)
	}
}

func TestCheckSendsIndexToken(t *testing.T) {
	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		if r.URL.Path != "/pypi/flask/json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"info":     map[string]any{"name": "Flask"},
			"releases": map[string]any{"2.3.0": []map[string]any{{"filename": "Flask-2.3.0.tar.gz", "packagetype": "sdist"}}},
		})
	}))
	t.Cleanup(server.Close)
	t.Setenv("REQCHECK_INDEX_TOKEN", "s3cret")

	path := writeManifest(t, "flask==2.3.0\n")
	code, _, errOut := runCmd(t, "", "check", "--index-url", server.URL, path)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if got, _ := gotAuth.Load().(string); got != "Bearer s3cret" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer s3cret")
	}
}

func TestUsageErrors(t *testing.T) {
	path := writeManifest(t, "flask\n")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"frobnicate"}},
		{"unknown flag", []string{"lint", "--nope", path}},
		{"bad format", []string{"lint", "-o", "xml", path}},
		{"bad index", []string{"check", "--index", "npm", path}},
		{"bad concurrency", []string{"check", "--concurrency", "0", path}},
		{"missing manifest", []string{"lint", filepath.Join(t.TempDir(), "nope.txt")}},
		{"missing config", []string{"lint", "--config", filepath.Join(t.TempDir(), "nope.yaml"), path}},
		{"info without args", []string{"info"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCmd(t, "", tt.args...)
			if code != exitUsage {
				t.Errorf("expected exit 2, got %d (%s)", code, errOut)
			}
		})
	}
}
