package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"pluginstore.shikanime.studio/internal/plugin"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	t.Parallel()
	assert.Empty(t, DefaultOptions().Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()
	o := DefaultOptions()
	o.LogLevel = "loud"
	o.Catalogue.URL = "ftp://example.com/db.json"
	o.Catalogue.Timeout = 0
	o.Cache.Readme.DiskMaxAge = -time.Second
	o.Readme.Source = "gopher"
	o.Server.Addr = ptr.To("")

	errs := o.Validate()
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Equal(t, []string{
		"cache.readme.disk_max_age",
		"catalogue.timeout",
		"catalogue.url",
		"log_level",
		"readme.source",
		"server.addr",
	}, fields)
	assert.ErrorIs(t, errs, plugin.ErrValidation)
	assert.Contains(t, errs.Error(), "log_level: unknown level")
}

func TestValidateRawReadmeSource(t *testing.T) {
	t.Parallel()
	o := DefaultOptions()
	o.Readme.Source = ReadmeSourceRaw
	assert.Empty(t, o.Validate())

	o.Readme.RawURL = "https://example.com/README.md"
	errs := o.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "readme.raw_url", errs[0].Field)
}

func TestValidateAllowsDisabledInstallCatalogue(t *testing.T) {
	t.Parallel()
	o := DefaultOptions()
	o.Install.VimPack.URL = ""
	assert.Empty(t, o.Validate())
}

func TestConfigOptionsDefaults(t *testing.T) {
	cfg := New()
	o, err := cfg.Options()
	require.NoError(t, err)
	want := DefaultOptions()
	assert.Equal(t, want.Cache, o.Cache)
	assert.Equal(t, want.Catalogue, o.Catalogue)
	assert.Equal(t, want.Install, o.Install)
	assert.Equal(t, want.Readme, o.Readme)
	require.NotNil(t, o.Telemetry.Enabled)
	assert.False(t, *o.Telemetry.Enabled)
}

func TestConfigOptionsInvalid(t *testing.T) {
	cfg := New()
	cfg.Set("catalogue.timeout", "0s")
	cfg.Set("readme.source", "nope")

	_, err := cfg.Options()
	require.Error(t, err)
	assert.ErrorIs(t, err, plugin.ErrValidation)
	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 2)
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("PLUGINSTORE_CATALOGUE_URL", "https://mirror.example.com/db.json")
	t.Setenv("PLUGINSTORE_CACHE_PLUGINS_MEMORY_MAX_AGE", "5m")
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	cfg := New()
	o, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.com/db.json", o.Catalogue.URL)
	assert.Equal(t, 5*time.Minute, o.Cache.Plugins.MemoryMaxAge)
	assert.Equal(t, "ghp_test", cfg.GetGitHubToken())
	require.NotNil(t, o.GitHub.Token)
	assert.Equal(t, "ghp_test", *o.GitHub.Token)
}

func TestConfigReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
readme:
  source: raw
  debounce: 1s
install:
  lazy:
    target_dir: /tmp/nvim/lua/plugins
`), 0o644))

	cfg := New()
	require.NoError(t, cfg.ReadFile(path))
	o, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.GetLogLevel())
	assert.Equal(t, ReadmeSourceRaw, o.Readme.Source)
	assert.Equal(t, time.Second, o.Readme.Debounce)
	assert.Equal(t, "/tmp/nvim/lua/plugins", o.Install.Lazy.TargetDir)
	assert.Equal(t, DefaultOptions().Install.Lazy.URL, o.Install.Lazy.URL)
}

func TestConfigReadFileMissing(t *testing.T) {
	cfg := New()
	err := cfg.ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetAddr(t *testing.T) {
	t.Setenv("HOST", "")
	t.Setenv("PORT", "9090")
	cfg := New()
	assert.Equal(t, "localhost:9090", cfg.GetAddr())

	cfg.Set("server.addr", "0.0.0.0:1234")
	assert.Equal(t, "0.0.0.0:1234", cfg.GetAddr())
}

func TestGetLogLevel(t *testing.T) {
	cfg := New()
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	} {
		cfg.Set("log_level", in)
		assert.Equal(t, want, cfg.GetLogLevel(), in)
	}
}

func TestNewLoggerFormat(t *testing.T) {
	cfg := New()
	cfg.Set("log_format", "json")
	var buf bytes.Buffer
	NewLogger(cfg, &buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	cfg.Set("log_format", "text")
	buf.Reset()
	NewLogger(cfg, &buf).Debug("hidden")
	assert.Empty(t, buf.String())
}
