package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/requirements/client"
	"github.com/git-pkgs/requirements/fetch"
	"github.com/git-pkgs/requirements/internal/check"
	"github.com/git-pkgs/requirements/internal/config"
	"github.com/git-pkgs/requirements/internal/core"
	"github.com/git-pkgs/requirements/internal/logger"
	"github.com/git-pkgs/requirements/internal/manifest"
	"github.com/git-pkgs/requirements/internal/report"

	_ "github.com/git-pkgs/requirements/all"
)

const defaultManifest = "requirements.txt"

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configFile string
	envFile    string

	cfg    config.Config
	format report.Format
	log    *slog.Logger
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "reqcheck",
		Short:         "Lint Python requirements manifests and check them against a package index",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default .reqcheck.yaml)")
	pf.StringVar(&a.envFile, "env-file", "", "env file (default .env)")
	pf.String(config.FlagName("index"), "pypi", "index protocol: pypi or simple")
	pf.String(config.FlagName("index_url"), "", "index base URL (default depends on --index)")
	pf.Int(config.FlagName("concurrency"), 8, "parallel index lookups")
	pf.Duration(config.FlagName("timeout"), 0, "HTTP timeout (default 30s)")
	pf.Int(config.FlagName("max_retries"), 5, "retries for 429 and 5xx responses")
	pf.String(config.FlagName("user_agent"), "reqcheck", "User-Agent header")
	pf.String(config.FlagName("index_token"), "", "bearer token sent only to the index host")
	pf.StringP(config.FlagName("format"), "o", "text", "output format: text, json or yaml")
	pf.String(config.FlagName("log_level"), "warn", "log level: debug, info, warn or error")
	pf.String(config.FlagName("log_format"), "text", "log format: text or json")
	pf.Bool(config.FlagName("strict"), false, "fail on warnings and yanked releases")
	pf.Bool(config.FlagName("allow_pre"), false, "consider pre-releases when resolving")
	pf.Bool(config.FlagName("verify_artifacts"), false, "HEAD the download URL of pinned requirements")
	pf.Bool(config.FlagName("metadata"), false, "fetch package metadata such as licenses")
	pf.Bool(config.FlagName("no_color"), false, "disable colored output")

	root.AddCommand(
		newLintCmd(a),
		newCheckCmd(a),
		newFmtCmd(a),
		newPurlCmd(a),
		newInfoCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{
		ConfigFile: a.configFile,
		EnvFile:    a.envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return usageError(err)
	}

	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return usageError(err)
	}

	log, err := logger.NewWithWriter(a.stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return usageError(err)
	}

	a.cfg = cfg
	a.format = format
	a.log = log
	if cfg.File != "" {
		log.Debug("loaded config", "file", cfg.File)
	}
	return nil
}

func (a *app) client() *client.Client {
	return client.NewClient(
		client.WithTimeout(a.cfg.Timeout),
		client.WithMaxRetries(a.cfg.MaxRetries),
		client.WithAuthFunc(client.BearerAuth(a.cfg.BaseURL(), a.cfg.IndexToken)),
	).WithUserAgent(a.cfg.UserAgent)
}

func (a *app) index() (core.Index, error) {
	return core.New(a.cfg.Index, a.cfg.BaseURL(), a.client())
}

func (a *app) checker(idx core.Index) *check.Checker {
	c := &check.Checker{
		Index:           idx,
		Logger:          a.log,
		Concurrency:     a.cfg.Concurrency,
		AllowPre:        a.cfg.AllowPre,
		VerifyArtifacts: a.cfg.VerifyArtifacts,
		FetchMetadata:   a.cfg.Metadata,
	}
	if a.cfg.VerifyArtifacts {
		c.Fetcher = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(fetch.ClientOptions(a.client())...))
	}
	return c
}

func (a *app) renderOptions() report.Options {
	return report.Options{NoColor: a.cfg.NoColor}
}

// manifests parses each path, following includes. "-" reads stdin.
func (a *app) manifests(paths []string) ([]*core.Manifest, error) {
	if len(paths) == 0 {
		paths = []string{defaultManifest}
	}
	out := make([]*core.Manifest, 0, len(paths))
	for _, p := range paths {
		var (
			m   *core.Manifest
			err error
		)
		if p == "-" {
			m, err = manifest.Parse(a.stdin, "<stdin>")
		} else {
			m, err = manifest.ParseFile(p)
		}
		if err != nil {
			return nil, usageError(err)
		}
		a.log.Debug("parsed manifest", "path", m.Path, "requirements", len(m.Requirements()), "includes", len(m.Includes))
		out = append(out, m)
	}
	return out, nil
}

// finish renders reports and maps failures to the findings exit code.
func (a *app) finish(reports []*check.Report) error {
	var buf bytes.Buffer
	if err := report.RenderAll(&buf, reports, a.format, a.renderOptions()); err != nil {
		return err
	}
	if _, err := a.stdout.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	for _, r := range reports {
		if r.Failed(a.cfg.Strict) {
			return &exitError{code: exitFindings}
		}
	}
	return nil
}
