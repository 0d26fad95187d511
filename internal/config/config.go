package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/datagov/internal/ckan"
	"github.com/ligustah/datagov/internal/downloader"
	dghttp "github.com/ligustah/datagov/internal/http"
	"github.com/ligustah/datagov/internal/logging"
	"github.com/ligustah/datagov/internal/progress"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "DATAGOV_"

// Config defines configuration for the datagov CLI.
type Config struct {
	CatalogURL       string        `yaml:"catalog_url"`
	APIKey           string        `yaml:"api_key"`
	DownloadDir      string        `yaml:"download_dir"`
	Concurrency      int           `yaml:"concurrency"`
	Progress         bool          `yaml:"progress"`
	Color            bool          `yaml:"color"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	ProgressBytes    int64         `yaml:"progress_bytes"`
	Retry            RetryConfig   `yaml:"retry"`
	Log              LogConfig     `yaml:"log"`
}

// RetryConfig defines retry behavior for catalog calls and transfers.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	Multiplier float64       `yaml:"multiplier"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

type LogConfig struct {
	Verbosity int    `yaml:"verbosity"`
	Format    string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		CatalogURL:       ckan.DefaultBaseURL,
		Concurrency:      4,
		Progress:         true,
		Color:            true,
		Timeout:          5 * time.Minute,
		UserAgent:        "datagov/1.0",
		ProgressInterval: 250 * time.Millisecond,
		ProgressBytes:    256 * 1024,
		Retry: RetryConfig{
			Attempts:   2,
			Backoff:    500 * time.Millisecond,
			Multiplier: 3,
			MaxBackoff: 5 * time.Second,
		},
		Log: LogConfig{Format: "text"},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations and sizes.
type yamlConfig struct {
	CatalogURL       string          `yaml:"catalog_url"`
	APIKey           string          `yaml:"api_key"`
	DownloadDir      string          `yaml:"download_dir"`
	Concurrency      int             `yaml:"concurrency"`
	Progress         *bool           `yaml:"progress"`
	Color            *bool           `yaml:"color"`
	Timeout          string          `yaml:"timeout"`
	UserAgent        string          `yaml:"user_agent"`
	ProgressInterval string          `yaml:"progress_interval"`
	ProgressBytes    string          `yaml:"progress_bytes"`
	Retry            yamlRetryConfig `yaml:"retry"`
	Log              LogConfig       `yaml:"log"`
}

type yamlRetryConfig struct {
	Attempts   *int    `yaml:"attempts"`
	Backoff    string  `yaml:"backoff"`
	Multiplier float64 `yaml:"multiplier"`
	MaxBackoff string  `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of Default().
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.CatalogURL != "" {
		cfg.CatalogURL = yc.CatalogURL
	}
	if yc.APIKey != "" {
		cfg.APIKey = yc.APIKey
	}
	if yc.DownloadDir != "" {
		cfg.DownloadDir = yc.DownloadDir
	}
	if yc.Concurrency != 0 {
		cfg.Concurrency = yc.Concurrency
	}
	if yc.Progress != nil {
		cfg.Progress = *yc.Progress
	}
	if yc.Color != nil {
		cfg.Color = *yc.Color
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	if err := parseDuration(yc.Timeout, "timeout", &cfg.Timeout); err != nil {
		return Config{}, err
	}
	if err := parseDuration(yc.ProgressInterval, "progress_interval", &cfg.ProgressInterval); err != nil {
		return Config{}, err
	}
	if yc.ProgressBytes != "" {
		size, err := progress.ParseBytes(yc.ProgressBytes)
		if err != nil {
			return Config{}, fmt.Errorf("parse progress_bytes: %w", err)
		}
		cfg.ProgressBytes = size
	}
	if yc.Retry.Attempts != nil {
		cfg.Retry.Attempts = *yc.Retry.Attempts
	}
	if err := parseDuration(yc.Retry.Backoff, "retry.backoff", &cfg.Retry.Backoff); err != nil {
		return Config{}, err
	}
	if yc.Retry.Multiplier != 0 {
		cfg.Retry.Multiplier = yc.Retry.Multiplier
	}
	if err := parseDuration(yc.Retry.MaxBackoff, "retry.max_backoff", &cfg.Retry.MaxBackoff); err != nil {
		return Config{}, err
	}
	if yc.Log.Verbosity != 0 {
		cfg.Log.Verbosity = yc.Log.Verbosity
	}
	if yc.Log.Format != "" {
		cfg.Log.Format = yc.Log.Format
	}

	return cfg, nil
}

func parseDuration(raw, field string, dst *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	*dst = d
	return nil
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. An empty path loads ./.env
// when it exists.
func LoadDotEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the DATAGOV_ prefix. A non-empty NO_COLOR
// disables color.
func (c *Config) LoadFromEnv() error {
	if v := getenv("CATALOG_URL"); v != "" {
		c.CatalogURL = v
	}
	if v := getenv("API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := getenv("DOWNLOAD_DIR"); v != "" {
		c.DownloadDir = v
	}
	if v := getenv("CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sCONCURRENCY: %w", EnvPrefix, err)
		}
		c.Concurrency = n
	}
	if v := getenv("PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := getenv("NO_PROGRESS"); v == "true" || v == "1" {
		c.Progress = false
	}
	if v := getenv("COLOR"); v != "" {
		c.Color = v == "true" || v == "1"
	}
	if os.Getenv("NO_COLOR") != "" {
		c.Color = false
	}
	if v := getenv("TIMEOUT"); v != "" {
		if err := parseDuration(v, EnvPrefix+"TIMEOUT", &c.Timeout); err != nil {
			return err
		}
	}
	if v := getenv("USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := getenv("RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sRETRY_ATTEMPTS: %w", EnvPrefix, err)
		}
		c.Retry.Attempts = n
	}
	if v := getenv("RETRY_BACKOFF"); v != "" {
		if err := parseDuration(v, EnvPrefix+"RETRY_BACKOFF", &c.Retry.Backoff); err != nil {
			return err
		}
	}
	if v := getenv("RETRY_MAX_BACKOFF"); v != "" {
		if err := parseDuration(v, EnvPrefix+"RETRY_MAX_BACKOFF", &c.Retry.MaxBackoff); err != nil {
			return err
		}
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := getenv("LOG_VERBOSITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sLOG_VERBOSITY: %w", EnvPrefix, err)
		}
		c.Log.Verbosity = n
	}

	return nil
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.CatalogURL == "" {
		result = multierror.Append(result, errors.New("config: catalog_url is required"))
	} else if u, err := url.Parse(c.CatalogURL); err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		result = multierror.Append(result, fmt.Errorf("config: catalog_url %q is not an absolute http(s) URL", c.CatalogURL))
	}
	if c.Concurrency <= 0 {
		result = multierror.Append(result, errors.New("config: concurrency must be positive"))
	}
	if c.Timeout < 0 {
		result = multierror.Append(result, errors.New("config: timeout must not be negative"))
	}
	if c.Retry.Attempts < 0 {
		result = multierror.Append(result, errors.New("config: retry.attempts must not be negative"))
	}
	if c.Retry.Multiplier < 1 {
		result = multierror.Append(result, errors.New("config: retry.multiplier must be at least 1"))
	}
	if c.ProgressBytes <= 0 {
		result = multierror.Append(result, errors.New("config: progress_bytes must be positive"))
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		result = multierror.Append(result, fmt.Errorf("config: %w", err))
	}

	return result.ErrorOrNil()
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.CatalogURL != "" {
		c.CatalogURL = override.CatalogURL
	}
	if override.APIKey != "" {
		c.APIKey = override.APIKey
	}
	if override.DownloadDir != "" {
		c.DownloadDir = override.DownloadDir
	}
	if override.Concurrency != 0 {
		c.Concurrency = override.Concurrency
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.UserAgent != "" {
		c.UserAgent = override.UserAgent
	}
	if override.ProgressInterval != 0 {
		c.ProgressInterval = override.ProgressInterval
	}
	if override.ProgressBytes != 0 {
		c.ProgressBytes = override.ProgressBytes
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.Multiplier != 0 {
		c.Retry.Multiplier = override.Retry.Multiplier
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	if override.Log.Verbosity != 0 {
		c.Log.Verbosity = override.Log.Verbosity
	}
	if override.Log.Format != "" {
		c.Log.Format = override.Log.Format
	}
	return c
}

// HTTPOptions returns the HTTP client options described by c.
func (c Config) HTTPOptions() dghttp.Options {
	opts := dghttp.DefaultOptions()
	opts.Timeout = c.Timeout
	opts.RetryAttempts = c.Retry.Attempts
	opts.RetryBackoff = c.Retry.Backoff
	opts.RetryMultiplier = c.Retry.Multiplier
	opts.RetryMaxBackoff = c.Retry.MaxBackoff
	if c.UserAgent != "" {
		opts.UserAgent = c.UserAgent
	}
	return opts
}

// BaseDir resolves the download base directory for mode from the
// configured override, the home directory and the working directory.
func (c Config) BaseDir(mode downloader.Mode) (string, error) {
	var (
		dirs downloader.Dirs
		err  error
	)

	if c.DownloadDir == "" && mode == downloader.ModeInteractive {
		if dirs.Home, err = os.UserHomeDir(); err != nil {
			return "", fmt.Errorf("determine home directory: %w", err)
		}
	}
	if (c.DownloadDir == "" && mode == downloader.ModeDirect) || (c.DownloadDir != "" && !filepath.IsAbs(c.DownloadDir)) {
		if dirs.Working, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
	}

	return downloader.ResolveBaseDir(mode, c.DownloadDir, dirs), nil
}
