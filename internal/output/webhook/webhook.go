package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/tabguard/internal/httpclient"
	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/output"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
)

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.httpOpts = append(o.httpOpts, httpclient.WithHeaders(h)) }
}

// WithBatchSize sets the number of results accumulated before a flush. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval sets the maximum time between flushes. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.httpOpts = append(o.httpOpts, httpclient.WithTimeout(d)) }
}

// WithBackoff sets the base retry delay.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.httpOpts = append(o.httpOpts, httpclient.WithBackoff(d)) }
}

// WithMinRisk drops results below level. Default: model.Safe (send all).
func WithMinRisk(level model.RiskLevel) Option {
	return func(o *Output) { o.minRisk = level }
}

// WithVerbosity controls which fields are posted. Default: output.Standard.
func WithVerbosity(v output.Verbosity) Option {
	return func(o *Output) { o.verbosity = v }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output POSTs batched scan results to an HTTP endpoint as a JSON array.
// Results accumulate in an internal buffer and are flushed when batchSize is
// reached or flushInterval elapses. 429 and 5xx responses are retried.
type Output struct {
	client        *httpclient.Client
	httpOpts      []httpclient.Option
	batchSize     int
	flushInterval time.Duration
	minRisk       model.RiskLevel
	verbosity     output.Verbosity
	errFunc       func(error)
	mu            sync.Mutex
	pending       []model.ScanResult
	timer         *time.Timer
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		httpOpts:      []httpclient.Option{httpclient.WithTimeout(defaultTimeout)},
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		verbosity:     output.Standard,
		errFunc:       func(err error) { slog.Warn("webhook flush error", "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.client = httpclient.New(url, "", o.httpOpts...)
	return o
}

// Write appends a result to the batch. When batchSize is reached, the batch
// is flushed immediately. A timer is started on the first result to ensure
// the batch flushes even if batchSize is never reached.
func (o *Output) Write(ctx context.Context, result model.ScanResult) error {
	if result.Risk < o.minRisk {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, output.FormatResult(result, o.verbosity))

	if len(o.pending) >= o.batchSize {
		return o.flushLocked(ctx)
	}

	if len(o.pending) == 1 {
		o.timer = time.AfterFunc(o.flushInterval, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.flushLocked(context.Background()); err != nil {
				o.errFunc(err)
			}
		})
	}
	return nil
}

// Close flushes any remaining results and stops the timer.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	return o.flushLocked(context.Background())
}

// flushLocked sends the pending batch. Caller must hold o.mu.
func (o *Output) flushLocked(ctx context.Context) error {
	if len(o.pending) == 0 {
		return nil
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}

	batch := o.pending
	o.pending = nil

	if err := o.client.PostJSON(ctx, "", nil, batch, nil); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
