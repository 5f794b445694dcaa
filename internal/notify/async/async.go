// Package async decouples alert delivery from the pipeline so a slow
// webhook does not hold up classification.
package async

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/notify"
)

const (
	defaultBufferSize   = 256
	defaultDrainTimeout = 30 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 256.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner notifier fails.
// Default: logs a warning.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Notify return immediately (dropping the message)
// when the buffer is full, instead of blocking.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(a *Async) { a.logger = l }
}

// Async queues messages on a buffered channel; a background goroutine
// drains it to the wrapped notifier in order. Delivery errors go to errFunc
// rather than to the caller.
type Async struct {
	inner      notify.Notifier
	ch         chan string
	done       chan struct{}
	errFunc    func(error)
	logger     *zap.Logger
	bufSize    int
	dropOnFull bool
	closeOnce  sync.Once
}

// New wraps a notifier. The drain goroutine starts immediately.
func New(inner notify.Notifier, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.errFunc == nil {
		a.errFunc = func(err error) { a.logger.Warn("async alert delivery failed", zap.Error(err)) }
	}
	a.ch = make(chan string, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Notify enqueues message. By default it blocks while the buffer is full;
// with WithDropOnFull it drops the message instead. It returns ctx.Err()
// when ctx ends while blocked.
func (a *Async) Notify(ctx context.Context, message string) error {
	if a.dropOnFull {
		select {
		case a.ch <- message:
		default:
			a.logger.Warn("alert buffer full, dropping message")
		}
		return nil
	}
	select {
	case a.ch <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits (bounded) for queued ones.
func (a *Async) Close() error {
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			a.logger.Warn("alert drain timed out")
		}
	})
	return nil
}

func (a *Async) drain() {
	defer close(a.done)
	for msg := range a.ch {
		if err := a.inner.Notify(context.Background(), msg); err != nil {
			a.errFunc(err)
		}
	}
}
