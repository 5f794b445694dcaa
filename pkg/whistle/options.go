package whistle

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// ClassifierFunc classifies one line. A returned error makes the line an
// anomaly, so nothing is silently dropped.
type ClassifierFunc func(ctx context.Context, line string) (Verdict, error)

// NotifierFunc delivers one alert message.
type NotifierFunc func(ctx context.Context, message string) error

type options struct {
	baseURL   string
	apiKey    string
	model     string
	timeout   time.Duration
	rateLimit float64
	classify  ClassifierFunc
	maxLength int
	hints     string

	rules     []Rule
	saveRules func([]Rule) error

	slackURL  string
	notifiers []NotifierFunc
	host      string

	precheckBatch bool
	precheckLive  bool

	output    io.Writer
	verbosity string

	logger *zap.Logger
}

// Option configures an Analyzer.
type Option func(*options)

// WithOpenAI classifies through an OpenAI-compatible chat completions
// endpoint. An empty baseURL uses api.openai.com. Without an API key and a
// model every line is reported as not anomalous with a hint to configure it.
func WithOpenAI(baseURL, apiKey, model string) Option {
	return func(o *options) {
		o.baseURL = baseURL
		o.apiKey = apiKey
		o.model = model
	}
}

// WithTimeout bounds each classification request. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithRateLimit caps classification requests per second. Default: unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(o *options) {
		o.rateLimit = perSecond
	}
}

// WithClassifier replaces the LLM with f. Takes precedence over WithOpenAI.
func WithClassifier(f ClassifierFunc) Option {
	return func(o *options) {
		o.classify = f
	}
}

// WithMaxLength truncates lines before classification. Default: 2000.
// Zero disables truncation.
func WithMaxLength(n int) Option {
	return func(o *options) {
		o.maxLength = n
	}
}

// WithHints passes free-text policy to the classifier, e.g.
// "404s from nginx are expected".
func WithHints(hints string) Option {
	return func(o *options) {
		o.hints = hints
	}
}

// WithRules seeds the ignore rules.
func WithRules(rs ...Rule) Option {
	return func(o *options) {
		o.rules = append(o.rules, rs...)
	}
}

// WithRuleSaver is called with the full rule list whenever a rule is
// learned or changed. A failing save keeps the rule active in memory.
func WithRuleSaver(save func([]Rule) error) Option {
	return func(o *options) {
		o.saveRules = save
	}
}

// WithSlack sends anomalies to a Slack incoming webhook.
func WithSlack(webhookURL string) Option {
	return func(o *options) {
		o.slackURL = webhookURL
	}
}

// WithNotifier sends anomalies to f. May be given more than once.
func WithNotifier(f NotifierFunc) Option {
	return func(o *options) {
		o.notifiers = append(o.notifiers, f)
	}
}

// WithHost names the machine in alert messages.
func WithHost(host string) Option {
	return func(o *options) {
		o.host = host
	}
}

// WithPrecheck toggles the rule check before classification for Analyze
// (batch) and Check (live). Default: batch on, live off.
func WithPrecheck(batch, live bool) Option {
	return func(o *options) {
		o.precheckBatch = batch
		o.precheckLive = live
	}
}

// WithOutput writes every result as a JSON line to w. verbosity is
// "minimal", "standard" or "full".
func WithOutput(w io.Writer, verbosity string) Option {
	return func(o *options) {
		o.output = w
		o.verbosity = verbosity
	}
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func defaultOptions() options {
	return options{
		maxLength:     2000,
		precheckBatch: true,
		logger:        zap.NewNop(),
	}
}
