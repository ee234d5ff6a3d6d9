package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pluginstore.shikanime.studio/cmd/pluginstore/app"
	"pluginstore.shikanime.studio/internal/plugin"
	"pluginstore.shikanime.studio/internal/sorting"
	"pluginstore.shikanime.studio/internal/store"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List plugins matching a query",
		Long: `List plugins matching a query.

A query is a ';'-separated list of terms. A term is either "field:value" or a
bare value matched against the full name. Fields: full_name, author, name,
description, tags, homepage. Every term must match.`,
		Example: `  pluginstore list -q "author:folke;tags:colorscheme" --sort most_stars`,
		Args:    cobra.NoArgs,
		RunE:    runList,
	}

	listQuery     string
	listSort      string
	listInstalled []string
	listRefresh   bool
	listLimit     int
	listJSON      bool
)

func init() {
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Filter query")
	listCmd.Flags().StringVarP(&listSort, "sort", "s", "default", "Order: default, most_stars, recently_updated, recently_created, installed")
	listCmd.Flags().StringSliceVar(&listInstalled, "installed", nil, "Installed plugin names, ordered first by --sort installed")
	listCmd.Flags().BoolVar(&listRefresh, "refresh", false, "Download the plugin database even when cached")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Show at most n plugins (0 for all)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print results as JSON")
}

func runList(cmd *cobra.Command, _ []string) error {
	key, err := sorting.ParseKey(listSort)
	if err != nil {
		return err
	}
	return withStore(func(s *store.Store) error {
		stop := app.WithSpinner(cmd.Context(), "Loading plugins...")
		res, err := s.Search(cmd.Context(), store.SearchRequest{
			Query:     listQuery,
			Sort:      key,
			Installed: plugin.NewInstalled(listInstalled...),
			Limit:     listLimit,
			Force:     listRefresh,
		})
		stop()
		if err != nil {
			return err
		}
		if listJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		app.PrintPlugins(cmd.OutOrStdout(), res, app.Width(os.Stdout), time.Now())
		return nil
	})
}
