package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"k8s.io/utils/ptr"

	"pluginstore.shikanime.studio/internal/plugin"
)

// CacheClass holds the maximum ages of one cached resource class.
type CacheClass struct {
	MemoryMaxAge time.Duration `mapstructure:"memory_max_age"`
	DiskMaxAge   time.Duration `mapstructure:"disk_max_age"`
}

type CacheOptions struct {
	// Dir is the disk tier root. Empty disables the disk tier.
	Dir     string     `mapstructure:"dir"`
	Plugins CacheClass `mapstructure:"plugins"`
	Readme  CacheClass `mapstructure:"readme"`
	Install CacheClass `mapstructure:"install"`
}

type CatalogueOptions struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// ManagerOptions locates the install catalogue of a manager and where its snippets belong.
type ManagerOptions struct {
	// URL of the install catalogue. Empty disables the catalogue.
	URL       string `mapstructure:"url"`
	TargetDir string `mapstructure:"target_dir"`
}

type InstallOptions struct {
	Lazy    ManagerOptions `mapstructure:"lazy"`
	VimPack ManagerOptions `mapstructure:"vim_pack"`
}

// Manager returns the options of m.
func (o InstallOptions) Manager(m plugin.Manager) ManagerOptions {
	switch m {
	case plugin.ManagerLazy:
		return o.Lazy
	case plugin.ManagerVimPack:
		return o.VimPack
	default:
		return ManagerOptions{}
	}
}

type ReadmeOptions struct {
	// Source is "github" for the contents API or "raw" for RawURL.
	Source   string        `mapstructure:"source"`
	RawURL   string        `mapstructure:"raw_url"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type GitHubOptions struct {
	Token   *string `mapstructure:"token"`
	BaseURL *string `mapstructure:"base_url"`
}

type ServerOptions struct {
	Addr *string `mapstructure:"addr"`
}

type TelemetryOptions struct {
	Enabled *bool `mapstructure:"enabled"`
}

// Options is the typed configuration of the application.
type Options struct {
	LogLevel    string           `mapstructure:"log_level"`
	LogFormat   string           `mapstructure:"log_format"`
	ServiceName string           `mapstructure:"service_name"`
	Cache       CacheOptions     `mapstructure:"cache"`
	Catalogue   CatalogueOptions `mapstructure:"catalogue"`
	Install     InstallOptions   `mapstructure:"install"`
	Readme      ReadmeOptions    `mapstructure:"readme"`
	GitHub      GitHubOptions    `mapstructure:"github"`
	Server      ServerOptions    `mapstructure:"server"`
	Telemetry   TelemetryOptions `mapstructure:"telemetry"`
}

const (
	ReadmeSourceGitHub = "github"
	ReadmeSourceRaw    = "raw"

	defaultBaseURL = "https://pluginstore.shikanime.studio"
	defaultRawURL  = "https://raw.githubusercontent.com/{full_name}/HEAD/README.md"
)

// DefaultOptions returns the configuration used when nothing is overridden.
func DefaultOptions() Options {
	cacheDir := ""
	if d, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(d, "pluginstore")
	}
	nvimDir := filepath.Join("~", ".config", "nvim")
	if d, err := os.UserConfigDir(); err == nil {
		nvimDir = filepath.Join(d, "nvim")
	}
	return Options{
		LogLevel:    "info",
		LogFormat:   "text",
		ServiceName: "pluginstore",
		Cache: CacheOptions{
			Dir:     cacheDir,
			Plugins: CacheClass{MemoryMaxAge: time.Hour, DiskMaxAge: 6 * time.Hour},
			Readme:  CacheClass{MemoryMaxAge: time.Hour, DiskMaxAge: 7 * 24 * time.Hour},
			Install: CacheClass{MemoryMaxAge: time.Hour, DiskMaxAge: 24 * time.Hour},
		},
		Catalogue: CatalogueOptions{
			URL:       defaultBaseURL + "/db.json",
			Timeout:   10 * time.Second,
			UserAgent: "pluginstore/1.0",
		},
		Install: InstallOptions{
			Lazy: ManagerOptions{
				URL:       defaultBaseURL + "/install/lazy.json",
				TargetDir: filepath.Join(nvimDir, "lua", "plugins"),
			},
			VimPack: ManagerOptions{
				URL:       defaultBaseURL + "/install/vim_pack.json",
				TargetDir: filepath.Join(nvimDir, "plugin"),
			},
		},
		Readme: ReadmeOptions{
			Source:   ReadmeSourceGitHub,
			RawURL:   defaultRawURL,
			Debounce: 150 * time.Millisecond,
		},
		Telemetry: TelemetryOptions{Enabled: ptr.To(false)},
	}
}

// FieldError describes one invalid setting.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// ValidationErrors lists every invalid setting found by Validate.
type ValidationErrors []FieldError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Unwrap exposes plugin.ErrValidation to errors.Is.
func (errs ValidationErrors) Unwrap() error { return plugin.ErrValidation }

// Validate checks o without side effects and returns every problem found.
func (o Options) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch strings.ToLower(o.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log_level", "unknown level %q", o.LogLevel)
	}
	switch o.LogFormat {
	case "text", "json":
	default:
		add("log_format", "must be text or json, got %q", o.LogFormat)
	}

	for name, c := range map[string]CacheClass{
		"cache.plugins": o.Cache.Plugins,
		"cache.readme":  o.Cache.Readme,
		"cache.install": o.Cache.Install,
	} {
		if c.MemoryMaxAge < 0 {
			add(name+".memory_max_age", "must not be negative")
		}
		if c.DiskMaxAge < 0 {
			add(name+".disk_max_age", "must not be negative")
		}
	}

	if err := checkURL(o.Catalogue.URL); err != "" {
		add("catalogue.url", "%s", err)
	}
	if o.Catalogue.Timeout <= 0 {
		add("catalogue.timeout", "must be positive")
	}
	if o.Catalogue.UserAgent == "" {
		add("catalogue.user_agent", "must not be empty")
	}

	for _, m := range []struct {
		field string
		opts  ManagerOptions
	}{
		{"install.lazy", o.Install.Lazy},
		{"install.vim_pack", o.Install.VimPack},
	} {
		if m.opts.URL != "" {
			if err := checkURL(m.opts.URL); err != "" {
				add(m.field+".url", "%s", err)
			}
		}
		if m.opts.TargetDir == "" {
			add(m.field+".target_dir", "must not be empty")
		}
	}

	switch o.Readme.Source {
	case ReadmeSourceGitHub:
	case ReadmeSourceRaw:
		if !strings.Contains(o.Readme.RawURL, "{") {
			add("readme.raw_url", "must reference {full_name} or {owner} and {name}")
		} else if err := checkURL(o.Readme.RawURL); err != "" {
			add("readme.raw_url", "%s", err)
		}
	default:
		add("readme.source", "must be %s or %s, got %q", ReadmeSourceGitHub, ReadmeSourceRaw, o.Readme.Source)
	}
	if o.Readme.Debounce < 0 {
		add("readme.debounce", "must not be negative")
	}

	if o.GitHub.BaseURL != nil {
		if err := checkURL(*o.GitHub.BaseURL); err != "" {
			add("github.base_url", "%s", err)
		}
	}
	if o.Server.Addr != nil && *o.Server.Addr == "" {
		add("server.addr", "must not be empty when set")
	}

	slices.SortStableFunc(errs, func(a, b FieldError) int { return strings.Compare(a.Field, b.Field) })
	return errs
}

func checkURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return err.Error()
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("must be an http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Sprintf("missing host in %q", raw)
	}
	return ""
}
