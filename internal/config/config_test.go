package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligustah/datagov/internal/downloader"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://catalog.data.gov/api/3", cfg.CatalogURL)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.True(t, cfg.Progress)
	assert.True(t, cfg.Color)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retry.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Backoff)
	assert.Equal(t, 3.0, cfg.Retry.Multiplier)
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxBackoff)
	assert.Equal(t, int64(256*1024), cfg.ProgressBytes)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
catalog_url: https://demo.ckan.org/api/3
download_dir: /srv/datasets
concurrency: 8
progress: false
timeout: 10m
progress_interval: 1s
progress_bytes: 512KiB
retry:
  attempts: 0
  backoff: 2s
  multiplier: 2
  max_backoff: 60s
log:
  verbosity: 2
  format: json
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://demo.ckan.org/api/3", cfg.CatalogURL)
	assert.Equal(t, "/srv/datasets", cfg.DownloadDir)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.False(t, cfg.Progress)
	assert.True(t, cfg.Color, "unset fields keep their defaults")
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
	assert.Equal(t, time.Second, cfg.ProgressInterval)
	assert.Equal(t, int64(512*1024), cfg.ProgressBytes)
	assert.Equal(t, 0, cfg.Retry.Attempts, "an explicit zero disables retries")
	assert.Equal(t, 2*time.Second, cfg.Retry.Backoff)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, time.Minute, cfg.Retry.MaxBackoff)
	assert.Equal(t, 2, cfg.Log.Verbosity)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAMLErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeFile(t, "bad.yaml", "concurrency: [1"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeFile(t, "bad.yaml", "timeout: soon"))
	assert.ErrorContains(t, err, "parse timeout")

	_, err = LoadFromFile(writeFile(t, "bad.yaml", "progress_bytes: lots"))
	assert.ErrorContains(t, err, "parse progress_bytes")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATAGOV_CATALOG_URL", "https://env.example.com/api/3")
	t.Setenv("DATAGOV_API_KEY", "key-123")
	t.Setenv("DATAGOV_DOWNLOAD_DIR", "/env/dir")
	t.Setenv("DATAGOV_CONCURRENCY", "6")
	t.Setenv("DATAGOV_NO_PROGRESS", "1")
	t.Setenv("DATAGOV_TIMEOUT", "30s")
	t.Setenv("DATAGOV_RETRY_ATTEMPTS", "5")
	t.Setenv("DATAGOV_LOG_FORMAT", "json")
	t.Setenv("NO_COLOR", "1")

	cfg := Default()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://env.example.com/api/3", cfg.CatalogURL)
	assert.Equal(t, "key-123", cfg.APIKey)
	assert.Equal(t, "/env/dir", cfg.DownloadDir)
	assert.Equal(t, 6, cfg.Concurrency)
	assert.False(t, cfg.Progress)
	assert.False(t, cfg.Color)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("DATAGOV_CONCURRENCY", "many")

	cfg := Default()
	assert.ErrorContains(t, cfg.LoadFromEnv(), "DATAGOV_CONCURRENCY")
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "DATAGOV_API_KEY=from-dotenv\nDATAGOV_CONCURRENCY=3\n")

	// Variables already in the environment win over the file.
	t.Setenv("DATAGOV_CONCURRENCY", "7")
	t.Setenv("DATAGOV_API_KEY", "")
	os.Unsetenv("DATAGOV_API_KEY")

	require.NoError(t, LoadDotEnv(path))

	cfg := Default()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "from-dotenv", cfg.APIKey)
	assert.Equal(t, 7, cfg.Concurrency)

	assert.Error(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.CatalogURL = "catalog.data.gov"
	cfg.Concurrency = 0
	cfg.Retry.Multiplier = 0.5
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 4)
	assert.ErrorContains(t, err, "catalog_url")
	assert.ErrorContains(t, err, "concurrency must be positive")
}

func TestMerge(t *testing.T) {
	base := Default()
	merged := base.Merge(Config{
		APIKey:      "flag-key",
		Concurrency: 12,
		Log:         LogConfig{Verbosity: 1},
	})

	assert.Equal(t, "flag-key", merged.APIKey)
	assert.Equal(t, 12, merged.Concurrency)
	assert.Equal(t, 1, merged.Log.Verbosity)
	assert.Equal(t, base.CatalogURL, merged.CatalogURL, "zero values are ignored")
	assert.Equal(t, base.Retry, merged.Retry)
	assert.Equal(t, 4, base.Concurrency, "the receiver is not modified")
}

func TestHTTPOptions(t *testing.T) {
	cfg := Default()
	cfg.Timeout = time.Minute
	cfg.Retry.Attempts = 4
	cfg.UserAgent = "tests/1.0"

	opts := cfg.HTTPOptions()
	assert.Equal(t, time.Minute, opts.Timeout)
	assert.Equal(t, 4, opts.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, opts.RetryBackoff)
	assert.Equal(t, 3.0, opts.RetryMultiplier)
	assert.Equal(t, "tests/1.0", opts.UserAgent)
}

func TestBaseDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)

	cfg := Default()

	dir, err := cfg.BaseDir(downloader.ModeInteractive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Downloads"), dir)

	dir, err = cfg.BaseDir(downloader.ModeDirect)
	require.NoError(t, err)
	assert.Equal(t, wd, dir)

	cfg.DownloadDir = "out"
	dir, err = cfg.BaseDir(downloader.ModeInteractive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "out"), dir)

	cfg.DownloadDir = "/srv/data"
	dir, err = cfg.BaseDir(downloader.ModeDirect)
	require.NoError(t, err)
	assert.Equal(t, "/srv/data", dir)
}
