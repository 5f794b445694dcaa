package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/whistle/internal/metrics"
)

func newMonitorCmd(a *app) *cobra.Command {
	var (
		metricsAddr    string
		showSuppressed bool
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor logs in real time and alert on anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			// An explicitly named config must exist; the service depends on it.
			st.MustExist = a.v.GetString("config") != ""
			cfg, err := a.load(st)
			if err != nil {
				return err
			}

			var rec *metrics.Recorder
			if metricsAddr != "" {
				rec = metrics.New()
			}
			s, err := buildSession(cfg, st, a.logger, buildOptions{stdout: cmd.OutOrStdout(), showSuppressed: showSuppressed, metrics: rec})
			if err != nil {
				return err
			}
			defer s.Close()

			status := cmd.ErrOrStderr()
			if !s.gateway.Configured() {
				color.New(color.FgYellow).Fprintln(status, "LLM is not configured; entries will not be classified. Run 'whistle config llm'.")
			}
			if cfg.Alert.Slack == "" {
				color.New(color.FgYellow).Fprintln(status, "No alert method configured; anomalies are only printed.")
			}
			fmt.Fprintf(status, "Starting log monitoring (source: %s)...\n", cfg.Log.Source)

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(sigCtx)
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer cancel()
				return s.pipeline.Stream(gctx, s.conn, s.connCfg)
			})
			if rec != nil {
				g.Go(func() error {
					return rec.Serve(gctx, metricsAddr, a.logger.Named("metrics"))
				})
			}

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			stats := s.pipeline.Stats()
			a.logger.Info("monitor stopped", zap.Any("stats", stats))
			fmt.Fprintf(status, "Stopped. %d entries, %d anomalies, %d rules learned.\n", stats.Seen, stats.Anomalies, stats.Learned)
			return err
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	cmd.Flags().BoolVar(&showSuppressed, "show-suppressed", false, "also print lines silenced by ignore rules")
	return cmd
}
