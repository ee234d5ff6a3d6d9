package main

import (
	"github.com/spf13/cobra"

	"pluginstore.shikanime.studio/cmd/pluginstore/app"
	"pluginstore.shikanime.studio/internal/store"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage the local cache",
	}
	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached resource",
		Args:  cobra.NoArgs,
		RunE:  runCacheClear,
	}
	cacheInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "Show cache disk usage",
		Args:  cobra.NoArgs,
		RunE:  runCacheInfo,
	}
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheInfoCmd)
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	return withStore(func(s *store.Store) error {
		if err := s.ClearCache(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Cache cleared")
		return nil
	})
}

func runCacheInfo(cmd *cobra.Command, _ []string) error {
	return withStore(func(s *store.Store) error {
		usage, err := s.CacheSize()
		if err != nil {
			return err
		}
		app.PrintCacheUsage(cmd.OutOrStdout(), s.Options().Cache.Dir, usage)
		return nil
	})
}
