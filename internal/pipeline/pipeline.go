// Package pipeline drives log entries through rule pre-check,
// classification, rule override, rule learning and escalation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/connector"
	"github.com/crimson-sun/whistle/internal/engine"
	"github.com/crimson-sun/whistle/internal/metrics"
	"github.com/crimson-sun/whistle/internal/model"
	"github.com/crimson-sun/whistle/internal/notify"
	"github.com/crimson-sun/whistle/internal/output"
)

// Classifier turns one entry into a verdict. It never fails; errors are
// folded into the verdict.
type Classifier interface {
	Classify(ctx context.Context, entry string) model.Verdict
}

// Mode selects batch or live behaviour.
type Mode int

const (
	Batch Mode = iota
	Live
)

func (m Mode) String() string {
	if m == Live {
		return "live"
	}
	return "batch"
}

// Stats counts what happened during one run. Blank entries are not counted.
type Stats struct {
	Seen            int `json:"seen"`
	Suppressed      int `json:"suppressed"` // silenced before classification
	Overridden      int `json:"overridden"` // classified, then silenced by a rule
	Classified      int `json:"classified"`
	Anomalies       int `json:"anomalies"`
	Learned         int `json:"learned"`
	NotifyFailures  int `json:"notify_failures,omitempty"`
	PersistFailures int `json:"persist_failures,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPrecheck enables the pre-classification rule check per mode.
// Default: batch on, live off.
func WithPrecheck(batch, live bool) Option {
	return func(p *Pipeline) {
		p.precheck[Batch] = batch
		p.precheck[Live] = live
	}
}

// WithEscalator sets where anomalies are sent. Default: nowhere.
func WithEscalator(e *notify.Escalator) Option {
	return func(p *Pipeline) { p.escalator = e }
}

// WithOutput sets where outcomes are written. Default: discarded.
func WithOutput(o output.Output) Option {
	return func(p *Pipeline) { p.output = o }
}

// WithMetrics records outcomes on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = r }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline processes entries strictly one at a time so that a rule learned
// from one entry applies to the next.
type Pipeline struct {
	classifier Classifier
	engine     *engine.Engine
	escalator  *notify.Escalator
	output     output.Output
	metrics    *metrics.Recorder
	logger     *zap.Logger
	precheck   [2]bool

	mu    sync.Mutex
	stats Stats
}

// New creates a Pipeline from the given components.
func New(c Classifier, eng *engine.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier: c,
		engine:     eng,
		escalator:  notify.NewEscalator(nil),
		logger:     zap.NewNop(),
		precheck:   [2]bool{Batch: true, Live: false},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.metrics.SetRules(eng.Rules().Len())
	return p
}

// Stats returns a snapshot of the counters for the current run.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipeline) reset() {
	p.mu.Lock()
	p.stats = Stats{}
	p.mu.Unlock()
}

func (p *Pipeline) count(f func(*Stats)) {
	p.mu.Lock()
	f(&p.stats)
	p.mu.Unlock()
}

// Process runs one entry through the pipeline. It reports false for a
// blank entry, which is skipped without touching any counter.
func (p *Pipeline) Process(ctx context.Context, entry model.RawLog, mode Mode) (model.Outcome, bool) {
	text := strings.TrimSpace(entry.Raw)
	if text == "" {
		return model.Outcome{}, false
	}
	p.count(func(s *Stats) { s.Seen++ })

	oc := model.Outcome{Entry: entry}

	if p.precheck[mode] {
		if r, ok := p.engine.Precheck(text); ok {
			oc.Stage = model.StageSuppressed
			oc.Rule = r.Name
			oc.Verdict = model.Verdict{Reason: engine.IgnoredReason(r.Name)}
			p.count(func(s *Stats) { s.Suppressed++ })
			p.emit(ctx, oc)
			return oc, true
		}
	}

	start := time.Now()
	v := p.classifier.Classify(ctx, text)
	p.metrics.ObserveClassify(time.Since(start))
	p.count(func(s *Stats) { s.Classified++ })

	oc.Stage = model.StageClassified
	if overridden, r, ok := p.engine.Override(text, v); ok {
		oc.Stage = model.StageOverridden
		oc.Rule = r.Name
		v = overridden
		p.count(func(s *Stats) { s.Overridden++ })
	}
	oc.Verdict = v

	p.learn(text, v, &oc)

	if v.IsAnomaly {
		p.count(func(s *Stats) { s.Anomalies++ })
		p.logger.Info("anomaly detected", zap.String("reason", v.Reason), zap.String("entry", text))
		if p.escalator.Enabled() {
			oc.Escalated = p.escalator.Escalate(ctx, entry, v)
			if !oc.Escalated {
				p.count(func(s *Stats) { s.NotifyFailures++ })
				p.metrics.AlertFailed()
			}
		}
	}

	p.emit(ctx, oc)
	return oc, true
}

func (p *Pipeline) learn(text string, v model.Verdict, oc *model.Outcome) {
	r, err := p.engine.Learn(text, v)
	var perr *engine.PersistError
	switch {
	case errors.As(err, &perr):
		p.count(func(s *Stats) { s.PersistFailures++ })
		p.metrics.PersistFailed()
	case errors.Is(err, engine.ErrInvalidSuggestion):
		// logged by the engine; nothing learned
	case err != nil:
		p.logger.Error("learning rule", zap.Error(err))
	}
	if r == nil {
		return
	}
	oc.Learned = &model.LearnedRule{Name: r.Name, Pattern: r.Pattern, Comment: r.Comment}
	p.count(func(s *Stats) { s.Learned++ })
	p.metrics.SetRules(p.engine.Rules().Len())
}

func (p *Pipeline) emit(ctx context.Context, oc model.Outcome) {
	p.metrics.Observe(oc)
	if p.output == nil {
		return
	}
	if err := p.output.Write(ctx, oc); err != nil {
		p.logger.Warn("writing outcome", zap.Error(err))
	}
}

// Batch processes a finite list of entries in order and returns the run's
// counters. It stops early only when ctx is cancelled.
func (p *Pipeline) Batch(ctx context.Context, entries []model.RawLog) (Stats, error) {
	p.reset()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return p.Stats(), err
		}
		p.Process(ctx, entry, Batch)
	}
	return p.Stats(), nil
}

// Query fetches a batch from conn and processes it. A source that cannot
// be read fails the run before any entry is processed.
func (p *Pipeline) Query(ctx context.Context, conn connector.Connector, cfg connector.ConnectorConfig, params connector.QueryParams) (Stats, error) {
	entries, err := conn.Query(ctx, cfg, params)
	if err != nil {
		return Stats{}, fmt.Errorf("pipeline query: %w", err)
	}
	p.logger.Info("fetched log entries", zap.Int("count", len(entries)), zap.String("since", params.Since))
	return p.Batch(ctx, entries)
}

// Stream processes entries from conn as they arrive. It returns nil when
// the source ends and ctx.Err() when cancelled.
func (p *Pipeline) Stream(ctx context.Context, conn connector.Connector, cfg connector.ConnectorConfig) error {
	ch, err := conn.Stream(ctx, cfg)
	if err != nil {
		return fmt.Errorf("pipeline stream: %w", err)
	}
	p.reset()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-ch:
			if !ok {
				p.logger.Info("log source closed")
				return nil
			}
			p.Process(ctx, raw, Live)
		}
	}
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	if p.output == nil {
		return nil
	}
	return p.output.Close()
}
