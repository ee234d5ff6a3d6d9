package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pluginstore.shikanime.studio/internal/config"
	"pluginstore.shikanime.studio/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

var (
	rootCmd = &cobra.Command{
		Use:               "pluginstore",
		Short:             "Browse, search and install Neovim plugins",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
	}

	// Flags
	configPath string
	logLevel   string

	cfg               *config.Config
	shutdownTelemetry = func() {}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file. Defaults to config.yaml in the user config directory when present")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error). Falls back to LOG_LEVEL")
	rootCmd.AddCommand(listCmd, readmeCmd, installCmd, cacheCmd, serveCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg = config.New()
	if err := cfg.ReadFile(configPath); err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Set("log_level", logLevel)
	}
	config.SetupLog(cfg)
	cfg.Watch(cmd.Context())

	shutdown, err := config.SetupTelemetry(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	shutdownTelemetry = shutdown
	return nil
}

func teardown(*cobra.Command, []string) {
	shutdownTelemetry()
}

// withStore opens the Store, runs fn and waits for pending cache writes.
func withStore(fn func(*store.Store) error) error {
	s, err := store.NewForConfig(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Printf("Error during shutdown: %v", cerr)
		}
	}()
	return fn(s)
}
