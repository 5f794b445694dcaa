package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/whistle/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(
		newConfigShowCmd(a),
		newConfigLLMCmd(a),
		newConfigAlertCmd(a),
		newConfigLogCmd(a),
	)
	return cmd
}

// update loads the config, applies fn, validates and saves.
func (a *app) update(cmd *cobra.Command, what string, fn func(*config.Config)) error {
	st := a.store()
	cfg, err := st.Load()
	if err != nil {
		return err
	}
	fn(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := st.Save(cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s configuration updated in %s.\n", what, st.Path)
	return nil
}

func printConfig(cmd *cobra.Command, path string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
	return nil
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (API key masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			cfg, err := st.Load()
			if err != nil {
				return err
			}
			return printConfig(cmd, st.Path, cfg)
		},
	}
}

func newConfigLLMCmd(a *app) *cobra.Command {
	var (
		baseURL, apiKey, model, hints, timeout string
		maxLength                              int
		rateLimit                              float64
	)
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Configure the classification model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			return a.update(cmd, "LLM", func(c *config.Config) {
				if f.Changed("base-url") {
					c.LLM.BaseURL = baseURL
				}
				if f.Changed("api-key") {
					c.LLM.APIKey = apiKey
				}
				if f.Changed("model") {
					c.LLM.Model = model
				}
				if f.Changed("max-length") {
					c.LLM.MaxLength = maxLength
				}
				if f.Changed("hints") {
					c.LLM.Hints = hints
				}
				if f.Changed("timeout") {
					c.LLM.Timeout = timeout
				}
				if f.Changed("rate-limit") {
					c.LLM.RateLimit = rateLimit
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&baseURL, "base-url", "", "OpenAI-compatible API base URL")
	f.StringVar(&apiKey, "api-key", "", "API key")
	f.StringVar(&model, "model", "", "model name")
	f.IntVar(&maxLength, "max-length", 0, "truncate log lines longer than this many characters (0 disables)")
	f.StringVar(&hints, "hints", "", "extra guidance appended to the prompt")
	f.StringVar(&timeout, "timeout", "", "per-request timeout, e.g. 30s")
	f.Float64Var(&rateLimit, "rate-limit", 0, "maximum requests per second (0 = unlimited)")
	return cmd
}

func newConfigAlertCmd(a *app) *cobra.Command {
	var (
		slackURL string
		headers  map[string]string
		async    bool
	)
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Configure alerting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			return a.update(cmd, "Alerting", func(c *config.Config) {
				if f.Changed("slack") {
					c.Alert.Slack = slackURL
				}
				if f.Changed("header") {
					c.Alert.Headers = headers
				}
				if f.Changed("async") {
					c.Alert.Async = async
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&slackURL, "slack", "", "Slack incoming webhook URL (empty disables)")
	f.StringToStringVar(&headers, "header", nil, "extra HTTP header for the webhook, key=value (repeatable)")
	f.BoolVar(&async, "async", false, "deliver alerts in the background")
	return cmd
}

func newConfigLogCmd(a *app) *cobra.Command {
	var (
		source     string
		kernelOnly bool
		units      []string
		files      []string
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Configure which logs are watched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			return a.update(cmd, "Log", func(c *config.Config) {
				if f.Changed("source") {
					c.Log.Source = source
				}
				if f.Changed("kernel-only") {
					c.Log.KernelOnly = kernelOnly
				}
				if f.Changed("service-unit") {
					c.Log.ServiceUnits = units
				}
				if f.Changed("file") {
					c.Log.Files = files
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&source, "source", "", "log source: journalctl, journal or file")
	f.BoolVar(&kernelOnly, "kernel-only", false, "watch kernel messages")
	f.StringSliceVar(&units, "service-unit", nil, "systemd unit to watch (repeatable)")
	f.StringSliceVar(&files, "file", nil, "log file to read when source is file (repeatable)")
	return cmd
}
