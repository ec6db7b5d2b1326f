package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/bootstrap"
	"github.com/bryanwahyu/automaton-analyst/internal/config"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-analyst/internal/telemetry"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <SYMBOL>",
		Short: "Run one analysis and print the report",
		Long: `Run the plan, fetch, analyze, write and check pipeline for one company
and print the final report. With --offline a canned model is used so the
pipeline can be exercised without credentials.`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}
	cmd.Flags().Bool("offline", false, "use the canned model instead of the configured one")
	cmd.Flags().Bool("json", false, "print the full terminal state as JSON")
	cmd.Flags().Bool("persist", false, "store the report in the configured database/archive")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOptional(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	offline, _ := cmd.Flags().GetBool("offline")
	asJSON, _ := cmd.Flags().GetBool("json")
	persist, _ := cmd.Flags().GetBool("persist")

	// zap nulis ke stderr, stdout bersih untuk report
	if cfg.Log.Format == "json" {
		cfg.Log.Format = "console"
	}
	logger, err := telemetry.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{Offline: offline, Persist: persist})
	if err != nil {
		return err
	}
	defer app.Close()

	errOut := cmd.ErrOrStderr()
	st, err := app.Service.Run(ctx, args[0], func(label string, percent int) {
		fmt.Fprintf(errOut, "[%3d%%] %s\n", percent, label)
	})
	if err != nil {
		logger.Error("analysis failed", zap.Error(err))
		return err
	}
	return printResult(cmd.OutOrStdout(), st, asJSON)
}

func printResult(w io.Writer, st *analysis.State, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	_, err := fmt.Fprintln(w, st.FinalReport)
	return err
}
