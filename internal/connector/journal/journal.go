// Package journal reads the systemd journal through libsystemd instead of
// a journalctl subprocess. It needs cgo on Linux; elsewhere Query and Stream
// report the source as unavailable.
package journal

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/connector"
)

const name = "journal"

func init() {
	connector.Register(name, func(logger *zap.Logger) connector.Connector {
		return New(WithLogger(logger))
	})
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l.Named(name)
		}
	}
}

// WithPollInterval sets how long Stream blocks waiting for new entries
// before rechecking the context. Default: 1s.
func WithPollInterval(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.poll = d
		}
	}
}

// Connector reads journal entries directly.
type Connector struct {
	logger *zap.Logger
	poll   time.Duration
	now    func() time.Time
}

// New creates a journal connector.
func New(opts ...Option) *Connector {
	c := &Connector{logger: zap.NewNop(), poll: time.Second, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Matches returns the journal match groups for a selection. Each group is
// a single match; groups are OR-ed together. An empty result selects the
// whole journal.
func Matches(cfg connector.ConnectorConfig) []string {
	var m []string
	if cfg.KernelOnly {
		m = append(m, "_TRANSPORT=kernel")
	}
	for _, unit := range cfg.Units {
		if !strings.Contains(unit, ".") {
			unit += ".service"
		}
		m = append(m, "_SYSTEMD_UNIT="+unit)
	}
	return m
}

// FormatLine renders entry fields the way `journalctl -o short` does:
// "Oct 17 10:00:00 host ident[pid]: message".
func FormatLine(ts time.Time, fields map[string]string) string {
	var b strings.Builder
	b.WriteString(ts.Format(time.Stamp))
	if host := fields["_HOSTNAME"]; host != "" {
		b.WriteByte(' ')
		b.WriteString(host)
	}

	ident := fields["SYSLOG_IDENTIFIER"]
	if ident == "" {
		ident = fields["_COMM"]
	}
	if fields["_TRANSPORT"] == "kernel" && ident == "" {
		ident = "kernel"
	}
	if ident != "" {
		b.WriteByte(' ')
		b.WriteString(ident)
		if pid := fields["_PID"]; pid != "" {
			b.WriteString("[" + pid + "]")
		}
		b.WriteByte(':')
	}
	b.WriteByte(' ')
	b.WriteString(fields["MESSAGE"])
	return b.String()
}
