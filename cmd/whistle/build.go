package main

import (
	"io"

	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/config"
	"github.com/crimson-sun/whistle/internal/connector"
	"github.com/crimson-sun/whistle/internal/engine"
	"github.com/crimson-sun/whistle/internal/engine/classifier"
	"github.com/crimson-sun/whistle/internal/metrics"
	"github.com/crimson-sun/whistle/internal/notify"
	"github.com/crimson-sun/whistle/internal/notify/async"
	"github.com/crimson-sun/whistle/internal/notify/slack"
	"github.com/crimson-sun/whistle/internal/oracle"
	"github.com/crimson-sun/whistle/internal/oracle/openai"
	"github.com/crimson-sun/whistle/internal/output"
	"github.com/crimson-sun/whistle/internal/output/console"
	"github.com/crimson-sun/whistle/internal/output/file"
	"github.com/crimson-sun/whistle/internal/output/multi"
	"github.com/crimson-sun/whistle/internal/output/stdout"
	"github.com/crimson-sun/whistle/internal/pipeline"

	// Register log sources.
	_ "github.com/crimson-sun/whistle/internal/connector/file"
	_ "github.com/crimson-sun/whistle/internal/connector/journal"
	_ "github.com/crimson-sun/whistle/internal/connector/journalctl"
)

// session is everything one analyze or monitor run needs.
type session struct {
	pipeline *pipeline.Pipeline
	conn     connector.Connector
	connCfg  connector.ConnectorConfig
	gateway  *classifier.Gateway
	closers  []func() error
}

func (s *session) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type buildOptions struct {
	stdout         io.Writer
	showSuppressed bool
	metrics        *metrics.Recorder
}

func buildSession(cfg *config.Config, st *config.Store, logger *zap.Logger, opts buildOptions) (*session, error) {
	rs, err := cfg.Rules()
	if err != nil {
		return nil, err
	}

	ctor, err := connector.Get(cfg.Log.Source)
	if err != nil {
		return nil, err
	}

	out, err := buildOutput(cfg, opts)
	if err != nil {
		return nil, err
	}
	s := &session{
		conn: ctor(logger),
		connCfg: connector.ConnectorConfig{
			Provider:   cfg.Log.Source,
			KernelOnly: cfg.Log.KernelOnly,
			Units:      cfg.Log.ServiceUnits,
			Files:      cfg.Log.Files,
		},
		gateway: buildGateway(cfg, logger),
	}

	n, closeNotifier := buildNotifier(cfg, logger)
	s.closers = append(s.closers, out.Close, closeNotifier)

	eng := engine.New(rs, engine.WithPersister(st), engine.WithLogger(logger.Named("engine")))
	s.pipeline = pipeline.New(s.gateway, eng,
		pipeline.WithPrecheck(cfg.Pipeline.PrecheckBatch, cfg.Pipeline.PrecheckLive),
		pipeline.WithEscalator(notify.NewEscalator(n, notify.WithHost(hostname()), notify.WithLogger(logger.Named("notify")))),
		pipeline.WithOutput(out),
		pipeline.WithMetrics(opts.metrics),
		pipeline.WithLogger(logger.Named("pipeline")),
	)
	return s, nil
}

func buildGateway(cfg *config.Config, logger *zap.Logger) *classifier.Gateway {
	settings := classifier.Settings{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxLength: cfg.LLM.MaxLength,
		Hints:     cfg.LLM.Hints,
	}
	var o oracle.Oracle
	if settings.Configured() {
		o = openai.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, openai.WithTimeout(cfg.LLM.TimeoutDuration()))
	}
	opts := []classifier.Option{classifier.WithLogger(logger.Named("classifier"))}
	if cfg.LLM.RateLimit > 0 {
		opts = append(opts, classifier.WithRateLimit(cfg.LLM.RateLimit))
	}
	return classifier.New(o, settings, opts...)
}

// buildNotifier returns nil when no alert channel is configured.
func buildNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, func() error) {
	noop := func() error { return nil }
	if cfg.Alert.Slack == "" {
		return nil, noop
	}
	var n notify.Notifier = slack.New(cfg.Alert.Slack, slack.WithHeaders(cfg.Alert.Headers))
	if cfg.Alert.Async {
		a := async.New(n, async.WithLogger(logger.Named("alert")))
		return a, a.Close
	}
	return n, noop
}

func buildOutput(cfg *config.Config, opts buildOptions) (output.Output, error) {
	verbosity, err := output.ParseVerbosity(cfg.Output.Verbosity)
	if err != nil {
		return nil, err
	}

	var outs []output.Output
	if cfg.Output.Format == "json" {
		outs = append(outs, stdout.NewWriter(opts.stdout, verbosity, false))
	} else {
		outs = append(outs, console.New(verbosity, console.WithWriter(opts.stdout), console.WithShowSuppressed(opts.showSuppressed)))
	}
	if cfg.Output.File != "" {
		f, err := file.New(cfg.Output.File, verbosity, file.WithMaxSize(cfg.Output.FileMax))
		if err != nil {
			return nil, err
		}
		outs = append(outs, f)
	}
	return multi.New(outs...), nil
}
