package main

import (
	"github.com/spf13/cobra"

	"pluginstore.shikanime.studio/cmd/pluginstore/app"
	"pluginstore.shikanime.studio/internal/plugin"
	"pluginstore.shikanime.studio/internal/store"
)

var (
	installCmd = &cobra.Command{
		Use:   "install <owner/name>",
		Short: "Print the install snippet of a plugin",
		Args:  cobra.ExactArgs(1),
		RunE:  runInstall,
	}

	installManager string
)

func init() {
	installCmd.Flags().StringVarP(&installManager, "manager", "m", string(plugin.ManagerLazy), "Plugin manager (lazy.nvim, vim.pack)")
}

func runInstall(cmd *cobra.Command, args []string) error {
	manager, err := plugin.ParseManager(installManager)
	if err != nil {
		return err
	}
	return withStore(func(s *store.Store) error {
		stop := app.WithSpinner(cmd.Context(), "Resolving snippet...")
		snippet, err := s.Install(cmd.Context(), args[0], manager)
		stop()
		if err != nil {
			return err
		}
		app.PrintSnippet(cmd.OutOrStdout(), snippet)
		return nil
	})
}
