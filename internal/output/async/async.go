package async

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/output"
)

const (
	defaultBufferSize   = 256
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write drop the result instead of blocking when the
// buffer is full.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithDrainTimeout bounds how long Close waits for buffered results.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// Async hands results to a background goroutine that writes them to the
// wrapped output, so a slow sink (webhook) does not stall scanning. Inner
// write errors go to errFunc, not the caller.
type Async struct {
	inner        output.Output
	ch           chan model.ScanResult
	done         chan struct{}
	errFunc      func(error)
	bufSize      int
	dropOnFull   bool
	drainTimeout time.Duration
	dropped      atomic.Int64
	closeOnce    sync.Once
}

// New wraps inner and starts the drain goroutine.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		errFunc:      func(err error) { slog.Warn("async output write error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.ScanResult, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write queues the result. It blocks when the buffer is full unless
// WithDropOnFull is set, or until ctx is done.
func (a *Async) Write(ctx context.Context, result model.ScanResult) error {
	if a.dropOnFull {
		select {
		case a.ch <- result:
		default:
			a.dropped.Add(1)
			slog.Warn("async output buffer full, dropping result",
				"url", result.Tab.URL, "risk", result.Risk)
		}
		return nil
	}
	select {
	case a.ch <- result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many results were discarded because the buffer was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting results, waits for the queue to drain (bounded by
// the drain timeout), then closes the inner output.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(a.drainTimeout):
			slog.Warn("async output drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for result := range a.ch {
		if err := a.inner.Write(context.Background(), result); err != nil {
			a.errFunc(err)
		}
	}
}
