package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/connector"
	"github.com/crimson-sun/whistle/internal/pipeline"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		since          string
		limit          int
		showSuppressed bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze logs written since a given time",
		Example: `  whistle analyze --since "1 hour ago"
  whistle analyze --since yesterday --show-suppressed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			cfg, err := a.load(st)
			if err != nil {
				return err
			}

			// Keep stdout clean for NDJSON consumers.
			status := cmd.OutOrStdout()
			if cfg.Output.Format == "json" {
				status = cmd.ErrOrStderr()
			}

			s, err := buildSession(cfg, st, a.logger, buildOptions{stdout: cmd.OutOrStdout(), showSuppressed: showSuppressed})
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.gateway.Configured() {
				color.New(color.FgYellow).Fprintln(status, "LLM is not configured; entries will not be classified. Run 'whistle config llm'.")
			}
			fmt.Fprintf(status, "Analyzing logs since '%s'...\n", since)

			stats, err := s.pipeline.Query(cmd.Context(), s.conn, s.connCfg, connector.QueryParams{Since: since, Limit: limit})
			if err != nil {
				return err
			}
			a.logger.Info("analysis finished", zap.Any("stats", stats))
			printSummary(status, stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "1 hour ago", `start of the window, e.g. "1 hour ago", "today", "2026-10-17 10:00:00"`)
	cmd.Flags().IntVar(&limit, "limit", 0, "only analyze the most recent N lines (0 = all)")
	cmd.Flags().BoolVar(&showSuppressed, "show-suppressed", false, "also print lines silenced by ignore rules")
	return cmd
}

func printSummary(w io.Writer, s pipeline.Stats) {
	if s.Seen == 0 {
		fmt.Fprintln(w, "No log entries found for the specified time range and configuration.")
		return
	}
	fmt.Fprintf(w, "\n%d entries: %d suppressed, %d classified, %d rules learned.\n", s.Seen, s.Suppressed, s.Classified, s.Learned)
	if s.NotifyFailures > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d alerts could not be delivered.\n", s.NotifyFailures)
	}
	if s.PersistFailures > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d learned rules could not be saved.\n", s.PersistFailures)
	}
	if s.Anomalies > 0 {
		color.New(color.FgRed).Fprintf(w, "Analysis complete. Found %d anomalies.\n", s.Anomalies)
		return
	}
	color.New(color.FgGreen).Fprintln(w, "Analysis complete. No anomalies found.")
}
