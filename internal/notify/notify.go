// Package notify escalates anomalous verdicts to a notification channel.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/engine/classifier"
	"github.com/crimson-sun/whistle/internal/model"
)

// maxEntryLen bounds the log line quoted in a message.
const maxEntryLen = 3000

// Notifier delivers one text message. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Option configures an Escalator.
type Option func(*Escalator)

// WithHost names the machine in every message.
func WithHost(host string) Option {
	return func(e *Escalator) { e.host = host }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(e *Escalator) { e.logger = l }
}

// WithOnFailure is called after every failed delivery.
func WithOnFailure(f func(error)) Option {
	return func(e *Escalator) { e.onFailure = f }
}

// Escalator wraps a Notifier so the pipeline never sees delivery errors.
type Escalator struct {
	notifier  Notifier
	host      string
	logger    *zap.Logger
	onFailure func(error)
}

// NewEscalator returns an Escalator. A nil notifier makes Escalate a
// logged no-op.
func NewEscalator(n Notifier, opts ...Option) *Escalator {
	e := &Escalator{
		notifier:  n,
		logger:    zap.NewNop(),
		onFailure: func(error) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enabled reports whether a notifier is configured.
func (e *Escalator) Enabled() bool {
	return e.notifier != nil
}

// Escalate sends the anomaly and reports whether delivery succeeded.
// Failures are logged and passed to the failure hook, never returned.
func (e *Escalator) Escalate(ctx context.Context, entry model.RawLog, v model.Verdict) bool {
	if e.notifier == nil {
		e.logger.Debug("no alert method configured, anomaly not sent")
		return false
	}
	if err := e.notifier.Notify(ctx, FormatMessage(e.host, entry, v)); err != nil {
		e.logger.Warn("failed to send alert", zap.Error(err))
		e.onFailure(err)
		return false
	}
	return true
}

// FormatMessage renders an anomaly for chat delivery.
func FormatMessage(host string, entry model.RawLog, v model.Verdict) string {
	var b strings.Builder
	b.WriteString(":rotating_light: Anomaly detected")
	if host != "" {
		fmt.Fprintf(&b, " on %s", host)
	}
	fmt.Fprintf(&b, ": %s\n", v.Reason)
	if entry.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", entry.Source)
	}
	b.WriteString("```\n")
	b.WriteString(classifier.Summarize(strings.TrimSpace(entry.Raw), maxEntryLen))
	b.WriteString("\n```")
	return b.String()
}
