// Package config loads reqcheck settings from defaults, a YAML file, a
// .env file, REQCHECK_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/git-pkgs/requirements/internal/core"
	"github.com/git-pkgs/requirements/internal/logger"
	"github.com/git-pkgs/requirements/internal/report"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "REQCHECK"

const (
	defaultIndex       = "pypi"
	defaultConcurrency = 8
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 5
	defaultUserAgent   = "reqcheck"
	defaultConfigName  = ".reqcheck"
	defaultEnvFile     = ".env"
)

// Config holds resolved settings.
type Config struct {
	Index           string        `mapstructure:"index"`
	IndexURL        string        `mapstructure:"index_url"`
	Concurrency     int           `mapstructure:"concurrency"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	UserAgent       string        `mapstructure:"user_agent"`
	IndexToken      string        `mapstructure:"index_token"`
	Format          string        `mapstructure:"format"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	Strict          bool          `mapstructure:"strict"`
	AllowPre        bool          `mapstructure:"allow_pre"`
	VerifyArtifacts bool          `mapstructure:"verify_artifacts"`
	Metadata        bool          `mapstructure:"metadata"`
	NoColor         bool          `mapstructure:"no_color"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Keys lists every configuration key.
var Keys = []string{
	"index", "index_url", "concurrency", "timeout", "max_retries",
	"user_agent", "index_token", "format", "log_level", "log_format", "strict",
	"allow_pre", "verify_artifacts", "metadata", "no_color",
}

// Options controls where Load looks for settings.
type Options struct {
	// ConfigFile is an explicit config path. It must exist when set.
	ConfigFile string
	// Dir is searched for .reqcheck.yaml and .env when no explicit paths
	// are given. Defaults to the working directory.
	Dir string
	// EnvFile is an explicit .env path. It must exist when set.
	EnvFile string
	// Flags are bound to keys by name with '_' spelled '-'.
	Flags *pflag.FlagSet
}

// ValidationError reports an invalid value for one key.
type ValidationError struct {
	Key string
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Msg)
}

// FlagName returns the command-line flag spelling of key.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("index", defaultIndex)
	v.SetDefault("index_url", "")
	v.SetDefault("concurrency", defaultConcurrency)
	v.SetDefault("timeout", defaultTimeout)
	v.SetDefault("max_retries", defaultMaxRetries)
	v.SetDefault("user_agent", defaultUserAgent)
	v.SetDefault("index_token", "")
	v.SetDefault("format", string(report.FormatText))
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
	v.SetDefault("strict", false)
	v.SetDefault("allow_pre", false)
	v.SetDefault("verify_artifacts", false)
	v.SetDefault("metadata", false)
	v.SetDefault("no_color", false)
}

// Load resolves the configuration and validates it.
func Load(opts Options) (Config, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	if err := loadEnvFile(opts.EnvFile, dir); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for _, key := range Keys {
			if f := opts.Flags.Lookup(FlagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("binding flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadEnvFile exports variables from a .env file without overriding the
// existing environment. A missing default .env is not an error.
func loadEnvFile(path, dir string) error {
	explicit := path != ""
	if !explicit {
		path = strings.TrimSuffix(dir, "/") + "/" + defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Validate checks every key and returns the first problem found.
func (c Config) Validate() error {
	if core.DefaultURL(c.Index) == "" {
		return &ValidationError{Key: "index", Msg: fmt.Sprintf("unknown index %q (supported: %s)", c.Index, strings.Join(core.SupportedIndexes(), ", "))}
	}
	if c.IndexURL != "" {
		u, err := url.Parse(c.IndexURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Key: "index_url", Msg: fmt.Sprintf("%q is not an http(s) URL", c.IndexURL)}
		}
	}
	if c.Concurrency < 1 {
		return &ValidationError{Key: "concurrency", Msg: "must be at least 1"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Key: "timeout", Msg: "must be positive"}
	}
	if c.MaxRetries < 0 {
		return &ValidationError{Key: "max_retries", Msg: "must not be negative"}
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		return &ValidationError{Key: "user_agent", Msg: "must not be empty"}
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return &ValidationError{Key: "format", Msg: err.Error()}
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return &ValidationError{Key: "log_level", Msg: err.Error()}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return &ValidationError{Key: "log_format", Msg: fmt.Sprintf("unknown log format %q", c.LogFormat)}
	}
	return nil
}

// BaseURL returns the configured index URL or the index's default.
func (c Config) BaseURL() string {
	if c.IndexURL != "" {
		return c.IndexURL
	}
	return core.DefaultURL(c.Index)
}
