package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "analyst",
		Short:         "Multi-step investment research on a listed company",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "config.yaml", "path to config file (optional)")
	root.PersistentFlags().String("log-level", "", "override log level (debug, info, warn, error)")
	root.AddCommand(newRunCmd(), newStatusCmd())
	return root
}
