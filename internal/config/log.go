package config

import (
	"io"
	"log/slog"
	"os"
)

// SetupLog configures a global slog logger whose level follows log_level changes.
func SetupLog(cfg *Config) {
	slog.SetDefault(NewLogger(cfg, os.Stderr))
}

// NewLogger returns a logger writing to w in the configured format.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	lv := new(slog.LevelVar)
	lv.Set(cfg.GetLogLevel())
	cfg.OnLogLevelChange(func(level slog.Level) { lv.Set(level) })
	opts := &slog.HandlerOptions{Level: lv}
	if cfg.GetLogFormat() == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
