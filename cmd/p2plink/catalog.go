package main

import "github.com/spf13/cobra"

func newCatalogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the registered message types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(cmd.OutOrStdout(), a.outputFormat, a.registry.Entries())
		},
	}
}
