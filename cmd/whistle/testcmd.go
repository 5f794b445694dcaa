package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newTestCmd(a *app) *cobra.Command {
	var (
		alert    bool
		classify string
	)
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Print the effective configuration and optionally exercise it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			cfg, err := a.load(st)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Current configuration:")
			if err := printConfig(cmd, st.Path, cfg); err != nil {
				return err
			}

			if classify != "" {
				v := buildGateway(cfg, a.logger).Classify(cmd.Context(), classify)
				fmt.Fprintf(out, "\nClassification: anomaly=%t reason=%q", v.IsAnomaly, v.Reason)
				if v.HasSuggestion() {
					fmt.Fprintf(out, " suggested_pattern=%q", v.SuggestedPattern)
				}
				fmt.Fprintln(out)
			}

			if !alert {
				return nil
			}
			n, closeFn := buildNotifier(cfg, a.logger)
			defer closeFn()
			if n == nil {
				color.New(color.FgYellow).Fprintln(out, "\nNo alert method configured.")
				return errors.New("no alert method configured")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			msg := fmt.Sprintf(":white_check_mark: Test alert from whistle on %s.", hostname())
			if err := n.Notify(ctx, msg); err != nil {
				color.New(color.FgRed).Fprintf(out, "\nFailed to send test alert: %v\n", err)
				return err
			}
			color.New(color.FgGreen).Fprintln(out, "\nTest alert sent successfully.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&alert, "alert", false, "also send a test alert")
	cmd.Flags().StringVar(&classify, "classify", "", "classify this log line and print the verdict")
	return cmd
}
