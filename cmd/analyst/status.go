package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which integrations are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			status := cfg.Status()
			names := make([]string, 0, len(status))
			for name := range status {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				mark := "missing"
				if status[name] {
					mark = "ok"
				}
				fmt.Fprintf(out, "%-14s %s\n", name, mark)
			}
			if cfg.IsConfigured() {
				fmt.Fprintln(out, "\nready: full analysis available")
			} else {
				fmt.Fprintln(out, "\nnot ready: set LLM_API_KEY (or GEMINI_API_KEY) and ALPHA_VANTAGE_API_KEY")
			}
			return nil
		},
	}
}
