// Package file reads plain log files, or stdin when the path is "-".
package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/connector"
	"github.com/crimson-sun/whistle/internal/model"
)

const (
	name         = "file"
	stdinPath    = "-"
	maxLineBytes = 1 << 20
)

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

// WithStdin replaces os.Stdin for the "-" path.
func WithStdin(r io.Reader) Option {
	return func(c *Connector) { c.stdin = r }
}

// Connector reads lines from files.
type Connector struct {
	logger *zap.Logger
	stdin  io.Reader
}

// New creates a file connector.
func New(opts ...Option) *Connector {
	c := &Connector{logger: zap.NewNop(), stdin: os.Stdin}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query reads every configured file to the end, in order. Since and Limit
// are ignored except that Limit keeps only the last N lines.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLog, error) {
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("%w: no files configured", connector.ErrSourceUnavailable)
	}
	var out []model.RawLog
	for _, path := range cfg.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, closeFn, err := c.open(path)
		if err != nil {
			return nil, err
		}
		lines, err := readLines(r, sourceName(path))
		closeFn()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		out = append(out, lines...)
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[len(out)-params.Limit:]
	}
	return out, nil
}

// Stream follows every configured file from its current end. Rotated or
// recreated files are reopened from the start; a truncated file is re-read
// from offset zero. Stdin is read until EOF.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLog, error) {
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("%w: no files configured", connector.ErrSourceUnavailable)
	}

	if len(cfg.Files) == 1 && cfg.Files[0] == stdinPath {
		ch := make(chan model.RawLog)
		go func() {
			defer close(ch)
			c.pumpReader(ctx, c.stdin, ch)
		}()
		return ch, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	tails := make(map[string]*tail, len(cfg.Files))
	for _, path := range cfg.Files {
		if path == stdinPath {
			watcher.Close()
			closeTails(tails)
			return nil, fmt.Errorf("stdin cannot be combined with other files")
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		t, err := openTail(abs)
		if err != nil {
			watcher.Close()
			closeTails(tails)
			return nil, err
		}
		tails[abs] = t
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			watcher.Close()
			closeTails(tails)
			return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
		}
	}

	ch := make(chan model.RawLog)
	go func() {
		defer close(ch)
		defer watcher.Close()
		defer closeTails(tails)
		c.watch(ctx, watcher, tails, ch)
	}()
	return ch, nil
}

func (c *Connector) watch(ctx context.Context, w *fsnotify.Watcher, tails map[string]*tail, ch chan<- model.RawLog) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.logger.Warn("watcher error", zap.Error(err))
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			t, tracked := tails[filepath.Clean(ev.Name)]
			if !tracked {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				c.logger.Debug("file recreated", zap.String("path", t.path))
				t.reopen()
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				c.logger.Debug("file moved away", zap.String("path", t.path))
				t.close()
				continue
			}
			lines, err := t.readNew()
			if err != nil {
				c.logger.Warn("reading file", zap.String("path", t.path), zap.Error(err))
				continue
			}
			for _, line := range lines {
				select {
				case ch <- model.RawLog{Timestamp: time.Now(), Source: sourceName(t.path), Raw: line}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (c *Connector) pumpReader(ctx context.Context, r io.Reader, ch chan<- model.RawLog) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		select {
		case ch <- model.RawLog{Timestamp: time.Now(), Source: "stdin", Raw: sc.Text()}:
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil {
		c.logger.Warn("reading stdin", zap.Error(err))
	}
}

func (c *Connector) open(path string) (io.Reader, func(), error) {
	if path == stdinPath {
		return c.stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s does not exist", connector.ErrSourceUnavailable, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", connector.ErrSourceUnavailable, err)
	}
	return f, func() { f.Close() }, nil
}

func readLines(r io.Reader, source string) ([]model.RawLog, error) {
	var out []model.RawLog
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	now := time.Now()
	for sc.Scan() {
		out = append(out, model.RawLog{Timestamp: now, Source: source, Raw: sc.Text()})
	}
	return out, sc.Err()
}

func sourceName(path string) string {
	if path == stdinPath {
		return "stdin"
	}
	return filepath.Base(path)
}

// tail tracks the read offset of one followed file. A trailing partial
// line is held until its newline arrives.
type tail struct {
	path    string
	f       *os.File
	offset  int64
	partial string
}

func openTail(path string) (*tail, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", connector.ErrSourceUnavailable, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", connector.ErrSourceUnavailable, err)
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &tail{path: path, f: f, offset: end}, nil
}

func (t *tail) reopen() {
	t.close()
	f, err := os.Open(t.path)
	if err != nil {
		return
	}
	t.f = f
}

func (t *tail) close() {
	if t.f != nil {
		t.f.Close()
		t.f = nil
	}
	t.offset = 0
	t.partial = ""
}

func (t *tail) readNew() ([]string, error) {
	if t.f == nil {
		return nil, nil
	}
	info, err := t.f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < t.offset {
		t.offset = 0
		t.partial = ""
	}
	if info.Size() == t.offset {
		return nil, nil
	}

	buf := make([]byte, info.Size()-t.offset)
	n, err := t.f.ReadAt(buf, t.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	t.offset += int64(n)

	data := t.partial + string(buf[:n])
	parts := strings.Split(data, "\n")
	t.partial = parts[len(parts)-1]
	return parts[:len(parts)-1], nil
}

func closeTails(tails map[string]*tail) {
	for _, t := range tails {
		t.close()
	}
}
