// Package journalctl reads the systemd journal by running journalctl.
package journalctl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/connector"
	"github.com/crimson-sun/whistle/internal/model"
)

const (
	name          = "journalctl"
	maxLineBytes  = 1 << 20
	killWaitDelay = 2 * time.Second
)

func init() {
	connector.Register(name, func(logger *zap.Logger) connector.Connector {
		return New(WithLogger(logger))
	})
}

// Option configures a Connector.
type Option func(*Connector)

// WithBinary overrides the journalctl executable.
func WithBinary(path string) Option {
	return func(c *Connector) { c.binary = path }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l.Named(name)
		}
	}
}

// Connector runs journalctl as a subprocess.
type Connector struct {
	binary string
	logger *zap.Logger
}

// New creates a journalctl connector.
func New(opts ...Option) *Connector {
	c := &Connector{binary: "journalctl", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryArgs returns one journalctl argument list per selection: the kernel
// ring when KernelOnly is set and one per unit. With neither, the whole
// journal is read.
func QueryArgs(cfg connector.ConnectorConfig, params connector.QueryParams) [][]string {
	base := []string{"--no-pager"}
	if params.Since != "" {
		base = append([]string{"--since", params.Since}, base...)
	}
	if params.Limit > 0 {
		base = append(base, "-n", fmt.Sprint(params.Limit))
	}

	var runs [][]string
	if cfg.KernelOnly {
		runs = append(runs, append(clone(base), "-k"))
	}
	for _, unit := range cfg.Units {
		runs = append(runs, append(clone(base), "-u", unit))
	}
	if len(runs) == 0 {
		runs = append(runs, base)
	}
	return runs
}

// StreamArgs returns the follow-mode argument list. Kernel and unit
// selections are combined into a single journalctl. History is skipped
// (-n 0) so a restart does not re-alert on old lines.
func StreamArgs(cfg connector.ConnectorConfig) []string {
	args := []string{"-f", "--no-pager", "-n", "0"}
	if cfg.KernelOnly {
		args = append(args, "-k")
	}
	for _, unit := range cfg.Units {
		args = append(args, "-u", unit)
	}
	return args
}

// Query runs one journalctl per selection and concatenates the output in
// selection order, keeping the last params.Limit lines when a limit is set. A selection that fails is logged and skipped; the query
// fails only when journalctl is missing or every selection failed.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLog, error) {
	var (
		out  []model.RawLog
		errs []error
	)
	runs := QueryArgs(cfg, params)
	for _, args := range runs {
		c.logger.Info("running command", zap.String("cmd", c.binary+" "+strings.Join(args, " ")))

		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, c.binary, args...)
		cmd.Stderr = &stderr
		stdout, err := cmd.Output()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: '%s' command not found, is systemd installed?", connector.ErrSourceUnavailable, c.binary)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("journalctl failed", zap.Strings("args", args), zap.Error(err), zap.String("stderr", strings.TrimSpace(stderr.String())))
			errs = append(errs, fmt.Errorf("journalctl %s: %w", strings.Join(args, " "), err))
			continue
		}
		now := time.Now()
		for _, line := range strings.Split(string(stdout), "\n") {
			if line == "" || isMarker(line) {
				continue
			}
			out = append(out, model.RawLog{Timestamp: now, Source: name, Raw: line})
		}
	}
	if len(errs) == len(runs) {
		return nil, fmt.Errorf("%w: %w", connector.ErrSourceUnavailable, errors.Join(errs...))
	}
	// -n bounds each selection; the combined result is bounded too.
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[len(out)-params.Limit:]
	}
	return out, nil
}

// Stream starts `journalctl -f` and sends each line. The subprocess is
// killed when ctx is cancelled.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLog, error) {
	args := StreamArgs(cfg)
	c.logger.Info("running command", zap.String("cmd", c.binary+" "+strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.WaitDelay = killWaitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("journalctl stream: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", connector.ErrSourceUnavailable, c.binary, err)
	}

	ch := make(chan model.RawLog)
	go func() {
		defer close(ch)
		c.pump(ctx, stdout, ch)
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			c.logger.Error("journalctl exited", zap.Error(err), zap.String("stderr", strings.TrimSpace(stderr.String())))
		}
	}()
	return ch, nil
}

func (c *Connector) pump(ctx context.Context, r io.Reader, ch chan<- model.RawLog) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		if isMarker(line) {
			continue
		}
		select {
		case ch <- model.RawLog{Timestamp: time.Now(), Source: name, Raw: line}:
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("reading journalctl output", zap.Error(err))
	}
}

// isMarker reports journalctl's own annotations, e.g. "-- No entries --"
// or "-- Boot 1a2b... --".
func isMarker(line string) bool {
	return strings.HasPrefix(line, "-- ") && strings.HasSuffix(line, " --")
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
