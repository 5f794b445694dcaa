// Package classifier adapts the external classification oracle behind an
// interface that always yields a model.Verdict.
package classifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crimson-sun/whistle/internal/model"
	"github.com/crimson-sun/whistle/internal/oracle"
)

// NotConfiguredReason is the verdict reason when no credentials are set.
const NotConfiguredReason = "LLM is not configured. Run 'whistle config llm' to set the API key and model."

// Settings is the per-installation classification context.
type Settings struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxLength int    // 0 disables truncation
	Hints     string // free-text policy passed to the oracle
}

// Configured reports whether credentials are complete. BaseURL is optional.
func (s Settings) Configured() bool {
	return s.APIKey != "" && s.Model != ""
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRateLimit caps oracle calls per second. 0 means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(g *Gateway) {
		if perSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// Gateway classifies single log entries. It never returns an error: an
// unreachable or misbehaving oracle yields a fail-safe anomalous verdict so
// that nothing is silently swallowed.
type Gateway struct {
	oracle   oracle.Oracle
	settings Settings
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New creates a Gateway. o may be nil when settings are not configured.
func New(o oracle.Oracle, settings Settings, opts ...Option) *Gateway {
	g := &Gateway{
		oracle:   o,
		settings: settings,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether Classify will contact the oracle.
func (g *Gateway) Configured() bool {
	return g.oracle != nil && g.settings.Configured()
}

// Classify returns the verdict for entry. The entry is truncated to
// MaxLength before it leaves the process.
func (g *Gateway) Classify(ctx context.Context, entry string) model.Verdict {
	if !g.Configured() {
		return model.Verdict{IsAnomaly: false, Reason: NotConfiguredReason}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return FailSafe(fmt.Errorf("rate limit: %w", err))
		}
	}

	req := oracle.Request{
		Entry: Truncate(entry, g.settings.MaxLength),
		Hints: g.settings.Hints,
	}
	raw, err := g.oracle.Complete(ctx, req)
	if err != nil {
		g.logger.Warn("classification failed", zap.Error(err))
		return FailSafe(err)
	}

	v, err := ParseVerdict(raw)
	if err != nil {
		g.logger.Warn("malformed classification response", zap.Error(err), zap.String("response", Summarize(raw, 200)))
		return FailSafe(err)
	}
	return v
}

// FailSafe is the verdict for an entry that could not be classified.
func FailSafe(err error) model.Verdict {
	return model.Verdict{
		IsAnomaly: true,
		Reason:    fmt.Sprintf("Error classifying log entry: %v", err),
	}
}
