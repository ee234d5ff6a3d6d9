package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Config.
const EnvPrefix = "PLUGINSTORE"

type Config struct{ v *viper.Viper }

func New() *Config {
	vv := viper.New()
	vv.SetEnvPrefix(EnvPrefix)
	vv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vv.AutomaticEnv()
	setDefaults(vv, DefaultOptions())
	_ = vv.BindEnv("log_level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")
	_ = vv.BindEnv("github.token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN", "GH_TOKEN")
	_ = vv.BindEnv("github.base_url", EnvPrefix+"_GITHUB_BASE_URL")
	_ = vv.BindEnv("server.addr", EnvPrefix+"_SERVER_ADDR")
	_ = vv.BindEnv("host", "HOST")
	_ = vv.BindEnv("port", "PORT")
	return &Config{v: vv}
}

func setDefaults(v *viper.Viper, o Options) {
	v.SetDefault("log_level", o.LogLevel)
	v.SetDefault("log_format", o.LogFormat)
	v.SetDefault("service_name", o.ServiceName)
	v.SetDefault("cache.dir", o.Cache.Dir)
	for name, c := range map[string]CacheClass{
		"plugins": o.Cache.Plugins,
		"readme":  o.Cache.Readme,
		"install": o.Cache.Install,
	} {
		v.SetDefault("cache."+name+".memory_max_age", c.MemoryMaxAge)
		v.SetDefault("cache."+name+".disk_max_age", c.DiskMaxAge)
	}
	v.SetDefault("catalogue.url", o.Catalogue.URL)
	v.SetDefault("catalogue.timeout", o.Catalogue.Timeout)
	v.SetDefault("catalogue.user_agent", o.Catalogue.UserAgent)
	v.SetDefault("install.lazy.url", o.Install.Lazy.URL)
	v.SetDefault("install.lazy.target_dir", o.Install.Lazy.TargetDir)
	v.SetDefault("install.vim_pack.url", o.Install.VimPack.URL)
	v.SetDefault("install.vim_pack.target_dir", o.Install.VimPack.TargetDir)
	v.SetDefault("readme.source", o.Readme.Source)
	v.SetDefault("readme.raw_url", o.Readme.RawURL)
	v.SetDefault("readme.debounce", o.Readme.Debounce)
	v.SetDefault("telemetry.enabled", false)
}

// ReadFile loads path, or the first "config" file found in the user
// configuration directory when path is empty. A missing default file is not an error.
func (c *Config) ReadFile(path string) error {
	if path != "" {
		c.v.SetConfigFile(path)
	} else {
		c.v.SetConfigName("config")
		if d, err := os.UserConfigDir(); err == nil {
			c.v.AddConfigPath(filepath.Join(d, "pluginstore"))
		}
		c.v.AddConfigPath(".")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	slog.Debug("Loaded config file", "path", c.v.ConfigFileUsed())
	return nil
}

// Options decodes the current settings and validates them.
func (c *Config) Options() (Options, error) {
	var o Options
	if err := c.v.Unmarshal(&o); err != nil {
		return o, fmt.Errorf("failed to decode config: %w", err)
	}
	if errs := o.Validate(); len(errs) > 0 {
		return o, errs
	}
	return o, nil
}

func (c *Config) GetGitHubToken() string { return c.v.GetString("github.token") }

func (c *Config) GetServiceName() string { return c.v.GetString("service_name") }

// GetTelemetryEnabled reports whether traces are exported.
func (c *Config) GetTelemetryEnabled() bool { return c.v.GetBool("telemetry.enabled") }

// GetAddr returns server.addr, falling back to HOST and PORT.
func (c *Config) GetAddr() string {
	if addr := c.v.GetString("server.addr"); addr != "" {
		return addr
	}
	port := c.v.GetString("port")
	if port == "" {
		port = "8080"
	}
	host := c.v.GetString("host")
	if host == "" {
		host = "localhost"
	}
	return host + ":" + port
}

func (c *Config) Set(key string, value any) { c.v.Set(key, value) }

// GetLogLevel returns the log level mapped to slog.Level.
// Recognized values: debug, info (default), warn|warning, error.
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToLower(c.v.GetString("log_level")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogFormat returns "json" or "text".
func (c *Config) GetLogFormat() string { return c.v.GetString("log_format") }

// OnLogLevelChange calls fn with the slog.Level whenever it changes.
// The initial call is made immediately.
func (c *Config) OnLogLevelChange(fn func(slog.Level)) {
	apply := func() { fn(c.GetLogLevel()) }
	apply()
	c.v.OnConfigChange(func(e fsnotify.Event) {
		slog.Debug("Config file changed", "path", e.Name, "op", e.Op.String())
		apply()
	})
}

// Watch watches the loaded config file for changes until ctx is done.
func (c *Config) Watch(ctx context.Context) {
	if c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.WatchConfig()
	go func() { <-ctx.Done() }()
}
