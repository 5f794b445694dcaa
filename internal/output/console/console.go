// Package console renders outcomes for a person watching a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/crimson-sun/whistle/internal/model"
	"github.com/crimson-sun/whistle/internal/output"
)

var styles = struct {
	Anomaly func(a ...interface{}) string
	Learned func(a ...interface{}) string
	Muted   func(a ...interface{}) string
	Normal  func(a ...interface{}) string
}{
	Anomaly: color.New(color.FgRed, color.Bold).SprintFunc(),
	Learned: color.New(color.FgCyan).SprintFunc(),
	Muted:   color.New(color.FgHiBlack).SprintFunc(),
	Normal:  color.New(color.FgGreen).SprintFunc(),
}

// Option configures a console Output.
type Option func(*Output)

// WithWriter replaces os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *Output) { o.w = w }
}

// WithShowSuppressed also prints entries silenced by a rule.
func WithShowSuppressed(on bool) Option {
	return func(o *Output) { o.showSuppressed = on }
}

// Output prints anomalies and learned rules. Non-anomalous entries are
// printed only at Full verbosity; suppressed ones only when asked for.
type Output struct {
	mu             sync.Mutex
	w              io.Writer
	verbosity      output.Verbosity
	showSuppressed bool
}

// New creates a console output.
func New(verbosity output.Verbosity, opts ...Option) *Output {
	o := &Output{w: os.Stdout, verbosity: verbosity}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Output) Write(_ context.Context, oc model.Outcome) error {
	var b strings.Builder
	entry := strings.TrimSpace(oc.Entry.Raw)

	switch {
	case oc.Suppressed():
		if !o.showSuppressed {
			return nil
		}
		fmt.Fprintf(&b, "%s %s\n", styles.Muted("· suppressed by '"+oc.Rule+"':"), styles.Muted(entry))
	case oc.Verdict.IsAnomaly:
		fmt.Fprintf(&b, "%s %s\n", styles.Anomaly("ANOMALY:"), oc.Verdict.Reason)
		if o.verbosity > output.Minimal {
			fmt.Fprintf(&b, "    %s\n", entry)
		}
	case o.verbosity == output.Full:
		fmt.Fprintf(&b, "%s %s\n", styles.Normal("ok:"), entry)
	}

	if oc.Learned != nil {
		fmt.Fprintf(&b, "%s '%s': %s\n", styles.Learned("learned rule"), oc.Learned.Name, oc.Learned.Pattern)
	}
	if b.Len() == 0 {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := io.WriteString(o.w, b.String()); err != nil {
		return fmt.Errorf("console output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
