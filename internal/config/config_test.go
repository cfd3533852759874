package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	_ "github.com/git-pkgs/requirements/all"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// unsetEnv clears key for the duration of the test so .env files can set it.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	prev, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Index != "pypi" {
		t.Errorf("expected index pypi, got %q", cfg.Index)
	}
	if cfg.Concurrency != defaultConcurrency {
		t.Errorf("expected concurrency %d, got %d", defaultConcurrency, cfg.Concurrency)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Timeout)
	}
	if cfg.Format != "text" || cfg.LogLevel != "warn" {
		t.Errorf("unexpected format/log level %q %q", cfg.Format, cfg.LogLevel)
	}
	if cfg.BaseURL() != "https://pypi.org" {
		t.Errorf("unexpected base URL %q", cfg.BaseURL())
	}
	if cfg.File != "" {
		t.Errorf("expected no config file, got %q", cfg.File)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".reqcheck.yaml"), `
index: simple
concurrency: 4
timeout: 10s
strict: true
format: yaml
`)
	writeFile(t, filepath.Join(dir, ".env"), "REQCHECK_CONCURRENCY=6\nREQCHECK_LOG_LEVEL=debug\n")

	unsetEnv(t, "REQCHECK_CONCURRENCY")
	unsetEnv(t, "REQCHECK_LOG_LEVEL")
	t.Setenv("REQCHECK_FORMAT", "json")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("concurrency", 8, "")
	flags.Bool("strict", false, "")
	if err := flags.Parse([]string{"--concurrency=2"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Options{Dir: dir, Flags: flags})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Index != "simple" {
		t.Errorf("config file: expected index simple, got %q", cfg.Index)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("config file: expected 10s timeout, got %v", cfg.Timeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf(".env: expected debug, got %q", cfg.LogLevel)
	}
	if cfg.Format != "json" {
		t.Errorf("env: expected json, got %q", cfg.Format)
	}
	if cfg.Concurrency != 2 {
		t.Errorf("flag: expected concurrency 2, got %d", cfg.Concurrency)
	}
	if !cfg.Strict {
		t.Error("unchanged flag should not override config file strict=true")
	}
	if cfg.BaseURL() != "https://pypi.org/simple" {
		t.Errorf("unexpected base URL %q", cfg.BaseURL())
	}
	if filepath.Base(cfg.File) != ".reqcheck.yaml" {
		t.Errorf("unexpected config file %q", cfg.File)
	}
}

func TestLoadExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "index_url: https://mirror.example/pypi\n")

	cfg, err := Load(Options{ConfigFile: path, Dir: dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BaseURL() != "https://mirror.example/pypi" {
		t.Errorf("unexpected base URL %q", cfg.BaseURL())
	}

	if _, err := Load(Options{ConfigFile: filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("expected error for missing explicit config file")
	}
	if _, err := Load(Options{Dir: dir, EnvFile: filepath.Join(dir, "missing.env")}); err == nil {
		t.Error("expected error for missing explicit env file")
	}
}

func TestLoadIndexTokenFromEnvFile(t *testing.T) {
	unsetEnv(t, "REQCHECK_INDEX_TOKEN")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "REQCHECK_INDEX_TOKEN=s3cret\n")

	cfg, err := Load(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.IndexToken != "s3cret" {
		t.Errorf("expected index token from .env, got %q", cfg.IndexToken)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Index:       "pypi",
			Concurrency: 1,
			Timeout:     time.Second,
			UserAgent:   "reqcheck",
			Format:      "text",
			LogLevel:    "info",
			LogFormat:   "json",
		}
	}

	tests := []struct {
		key    string
		mutate func(*Config)
	}{
		{"", func(c *Config) {}},
		{"index", func(c *Config) { c.Index = "npm" }},
		{"index_url", func(c *Config) { c.IndexURL = "ftp://example.com" }},
		{"index_url", func(c *Config) { c.IndexURL = "not a url" }},
		{"concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"timeout", func(c *Config) { c.Timeout = 0 }},
		{"max_retries", func(c *Config) { c.MaxRetries = -1 }},
		{"user_agent", func(c *Config) { c.UserAgent = " " }},
		{"format", func(c *Config) { c.Format = "xml" }},
		{"log_level", func(c *Config) { c.LogLevel = "trace" }},
		{"log_format", func(c *Config) { c.LogFormat = "logfmt" }},
	}
	for _, tt := range tests {
		name := tt.key
		if name == "" {
			name = "valid"
		}
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.key == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, verr.Key)
			}
		})
	}
}

func TestFlagName(t *testing.T) {
	if got := FlagName("verify_artifacts"); got != "verify-artifacts" {
		t.Errorf("FlagName = %q", got)
	}
}
