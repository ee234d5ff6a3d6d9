package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"pluginstore.shikanime.studio/internal/store"
	storehttp "pluginstore.shikanime.studio/internal/store/http"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	addr string
)

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "Address to run the server on (host:port). If empty, uses server.addr or HOST and PORT")
}

func runServe(cmd *cobra.Command, _ []string) error {
	finalAddr := addr
	if finalAddr == "" {
		finalAddr = cfg.GetAddr()
	}
	return withStore(func(s *store.Store) error {
		ctx := cmd.Context()
		if _, err := s.Load(ctx, false); err != nil {
			slog.WarnContext(ctx, "Initial catalogue load failed; serving anyway", "error", err)
		}
		srv := storehttp.NewServer(s)
		if err := srv.ListenAndServe(ctx, finalAddr); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Server stopped")
		return nil
	})
}
