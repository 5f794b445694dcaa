package whistle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/crimson-sun/whistle/internal/engine"
	"github.com/crimson-sun/whistle/internal/engine/classifier"
	"github.com/crimson-sun/whistle/internal/model"
	"github.com/crimson-sun/whistle/internal/notify"
	"github.com/crimson-sun/whistle/internal/notify/slack"
	"github.com/crimson-sun/whistle/internal/oracle"
	"github.com/crimson-sun/whistle/internal/oracle/openai"
	"github.com/crimson-sun/whistle/internal/output"
	"github.com/crimson-sun/whistle/internal/output/multi"
	"github.com/crimson-sun/whistle/internal/output/stdout"
	"github.com/crimson-sun/whistle/internal/pipeline"
	"github.com/crimson-sun/whistle/internal/rules"
)

// Analyzer checks log lines against ignore rules and a classifier.
type Analyzer struct {
	mu        sync.Mutex
	pipeline  *pipeline.Pipeline
	engine    *engine.Engine
	collector *collector
	saveRules func([]Rule) error
}

// New creates an Analyzer. It fails only when a seeded rule is invalid
// or an option value is out of range.
func New(opts ...Option) (*Analyzer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	rs, err := rules.FromRecords(toRecords(o.rules))
	if err != nil {
		return nil, fmt.Errorf("whistle: %w", err)
	}

	engOpts := []engine.Option{engine.WithLogger(o.logger)}
	if o.saveRules != nil {
		save := o.saveRules
		engOpts = append(engOpts, engine.WithPersister(engine.PersisterFunc(func(recs []rules.Record) error {
			return save(fromRecords(recs))
		})))
	}
	eng := engine.New(rs, engOpts...)

	verbosity, err := output.ParseVerbosity(o.verbosity)
	if err != nil {
		return nil, fmt.Errorf("whistle: %w", err)
	}
	col := &collector{}
	outputs := []output.Output{col}
	if o.output != nil {
		outputs = append(outputs, stdout.NewWriter(o.output, verbosity, false))
	}

	a := &Analyzer{
		engine:    eng,
		collector: col,
		saveRules: o.saveRules,
	}
	a.pipeline = pipeline.New(newClassifier(o), eng,
		pipeline.WithPrecheck(o.precheckBatch, o.precheckLive),
		pipeline.WithEscalator(newEscalator(o)),
		pipeline.WithOutput(multi.New(outputs...)),
		pipeline.WithLogger(o.logger),
	)
	return a, nil
}

func newClassifier(o options) pipeline.Classifier {
	if o.classify != nil {
		return funcClassifier{f: o.classify, maxLength: o.maxLength}
	}
	settings := classifier.Settings{
		BaseURL:   o.baseURL,
		APIKey:    o.apiKey,
		Model:     o.model,
		MaxLength: o.maxLength,
		Hints:     o.hints,
	}
	var orc oracle.Oracle
	if settings.Configured() {
		var clientOpts []openai.Option
		if o.timeout > 0 {
			clientOpts = append(clientOpts, openai.WithTimeout(o.timeout))
		}
		orc = openai.New(o.baseURL, o.apiKey, o.model, clientOpts...)
	}
	return classifier.New(orc, settings, classifier.WithRateLimit(o.rateLimit), classifier.WithLogger(o.logger))
}

func newEscalator(o options) *notify.Escalator {
	var ns notify.Multi
	if o.slackURL != "" {
		ns = append(ns, slack.New(o.slackURL))
	}
	for _, f := range o.notifiers {
		ns = append(ns, notifierFunc(f))
	}
	escOpts := []notify.Option{notify.WithHost(o.host), notify.WithLogger(o.logger)}
	if len(ns) == 0 {
		return notify.NewEscalator(nil, escOpts...)
	}
	return notify.NewEscalator(ns, escOpts...)
}

// Check classifies one line.
func (a *Analyzer) Check(ctx context.Context, line string) Result {
	return a.CheckLog(ctx, Log{Text: line})
}

// CheckLog classifies one log entry in live mode: by default no rule is
// consulted before the classifier, only after it.
func (a *Analyzer) CheckLog(ctx context.Context, l Log) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	oc, ok := a.pipeline.Process(ctx, toRawLog(l), pipeline.Live)
	if !ok {
		return Result{}
	}
	return toResult(oc)
}

// Analyze classifies lines in order. Blank lines are skipped.
func (a *Analyzer) Analyze(ctx context.Context, lines []string) (Report, error) {
	logs := make([]Log, len(lines))
	for i, line := range lines {
		logs[i] = Log{Text: line}
	}
	return a.AnalyzeLogs(ctx, logs)
}

// AnalyzeLogs classifies entries in order. A rule learned from one entry
// applies to every later one. On cancellation it returns the partial
// report with ctx.Err().
func (a *Analyzer) AnalyzeLogs(ctx context.Context, logs []Log) (Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	raws := make([]model.RawLog, len(logs))
	for i, l := range logs {
		raws[i] = toRawLog(l)
	}

	a.collector.start()
	stats, err := a.pipeline.Batch(ctx, raws)
	outcomes := a.collector.stop()

	results := make([]Result, len(outcomes))
	for i, oc := range outcomes {
		results[i] = toResult(oc)
	}
	return toReport(stats, results), err
}

// Rules returns a copy of the current ignore rules, learned ones included.
func (a *Analyzer) Rules() []Rule {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fromRecords(a.engine.Rules().Records())
}

// AddRule adds an ignore rule and saves the rule list.
func (a *Analyzer) AddRule(r Rule) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rule, err := rules.New(r.Name, r.Pattern, r.Comment)
	if err != nil {
		return fmt.Errorf("whistle: %w", err)
	}
	if err := a.engine.Rules().Add(rule); err != nil {
		return fmt.Errorf("whistle: %w", err)
	}
	return a.save()
}

// RemoveRule deletes the named rule. It reports false when no rule had
// that name.
func (a *Analyzer) RemoveRule(name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.engine.Rules().Remove(name) {
		return false, nil
	}
	return true, a.save()
}

func (a *Analyzer) save() error {
	if a.saveRules == nil {
		return nil
	}
	if err := a.saveRules(fromRecords(a.engine.Rules().Records())); err != nil {
		return fmt.Errorf("whistle: save rules: %w", err)
	}
	return nil
}

// Close flushes outputs.
func (a *Analyzer) Close() error {
	return a.pipeline.Close()
}

func toRawLog(l Log) model.RawLog {
	ts := l.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return model.RawLog{Timestamp: ts, Source: l.Source, Raw: l.Text, Metadata: l.Metadata}
}

// funcClassifier adapts a ClassifierFunc to the pipeline.
type funcClassifier struct {
	f         ClassifierFunc
	maxLength int
}

func (c funcClassifier) Classify(ctx context.Context, entry string) model.Verdict {
	v, err := c.f(ctx, classifier.Truncate(entry, c.maxLength))
	if err != nil {
		return classifier.FailSafe(err)
	}
	if strings.TrimSpace(v.Reason) == "" {
		return classifier.FailSafe(fmt.Errorf("%w: reason", classifier.ErrMissingField))
	}
	return model.Verdict{
		IsAnomaly:        v.Anomaly,
		Reason:           v.Reason,
		SuggestedPattern: v.SuggestedPattern,
		SuggestedName:    strings.TrimSpace(v.SuggestedName),
	}
}

type notifierFunc NotifierFunc

func (f notifierFunc) Notify(ctx context.Context, message string) error {
	return f(ctx, message)
}

// collector records outcomes between start and stop.
type collector struct {
	mu        sync.Mutex
	recording bool
	outcomes  []model.Outcome
}

func (c *collector) start() {
	c.mu.Lock()
	c.recording = true
	c.outcomes = nil
	c.mu.Unlock()
}

func (c *collector) stop() []model.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
	out := c.outcomes
	c.outcomes = nil
	return out
}

func (c *collector) Write(_ context.Context, oc model.Outcome) error {
	c.mu.Lock()
	if c.recording {
		c.outcomes = append(c.outcomes, oc)
	}
	c.mu.Unlock()
	return nil
}

func (c *collector) Close() error { return nil }

var _ output.Output = (*collector)(nil)
