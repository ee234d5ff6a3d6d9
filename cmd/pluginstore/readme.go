package main

import (
	"github.com/spf13/cobra"

	"pluginstore.shikanime.studio/cmd/pluginstore/app"
	"pluginstore.shikanime.studio/internal/store"
)

var (
	readmeCmd = &cobra.Command{
		Use:   "readme <owner/name>",
		Short: "Show the sanitized README of a plugin",
		Args:  cobra.ExactArgs(1),
		RunE:  runReadme,
	}

	readmeRefresh bool
	readmeOutline bool
)

func init() {
	readmeCmd.Flags().BoolVar(&readmeRefresh, "refresh", false, "Download the README even when cached")
	readmeCmd.Flags().BoolVar(&readmeOutline, "outline", false, "Show only the headings")
}

func runReadme(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.Store) error {
		stop := app.WithSpinner(cmd.Context(), "Fetching README...")
		lines, err := s.Readme(cmd.Context(), args[0], readmeRefresh)
		stop()
		if err != nil {
			return err
		}
		if readmeOutline {
			headings, err := s.Outline(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app.PrintOutline(cmd.OutOrStdout(), headings)
			return nil
		}
		app.PrintReadme(cmd.OutOrStdout(), lines)
		return nil
	})
}
