package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/config"
	"github.com/crimson-sun/whistle/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries per-invocation state shared by the subcommands.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
	runID  string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "whistle",
		Short: "Lightweight, LLM-assisted log monitoring",
		Long: `whistle reads system logs, asks a language model whether each line needs
attention, and alerts on the ones that do. Lines the model calls routine can
be turned into ignore rules so they are never sent again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default: /etc/whistle/config.yaml as root, ~/.config/whistle/config.yaml otherwise)")
	flags.String("log-level", "warn", "diagnostic log level (debug, info, warn, error)")
	flags.String("log-format", "console", "diagnostic log format (console, json)")
	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", flags.Lookup("log-format"))

	a.v.SetEnvPrefix("WHISTLE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newAnalyzeCmd(a),
		newMonitorCmd(a),
		newIgnoreCmd(a),
		newConfigCmd(a),
		newTestCmd(a),
		newServiceCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	logger, err := logging.New(logging.ParseLevel(a.v.GetString("log_level")), a.v.GetString("log_format"))
	if err != nil {
		return err
	}
	a.runID = uuid.NewString()
	a.logger = logger.With(zap.String("run_id", a.runID))
	return nil
}

// configPath resolves --config, $WHISTLE_CONFIG, then the default location.
func (a *app) configPath() string {
	if p := a.v.GetString("config"); p != "" {
		return p
	}
	return config.DefaultPath()
}

func (a *app) store() *config.Store {
	return config.NewStore(a.configPath())
}

// load reads and validates the config.
func (a *app) load(st *config.Store) (*config.Config, error) {
	cfg, err := st.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
