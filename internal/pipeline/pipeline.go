package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crimson-sun/tabguard/internal/engine"
	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/output"
	"github.com/crimson-sun/tabguard/internal/scanlog"
	"github.com/crimson-sun/tabguard/internal/tabs"
)

// Scanner produces the verdict for one tab.
type Scanner interface {
	ScanTab(ctx context.Context, tab model.Tab, opts engine.Options) model.ScanResult
}

// Report is the outcome of one Run.
type Report struct {
	Results []model.ScanResult
	Summary model.Summary
	// Recent is the scan log after this run, most recent first. Nil when no
	// log is configured or nothing was scanned.
	Recent []time.Time
}

// Pipeline connects a tab source, the engine, an output and the scan log.
type Pipeline struct {
	source  tabs.Source
	scanner Scanner
	output  output.Output
	log     *scanlog.Log
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithScanLog records a timestamp after every non-empty run.
func WithScanLog(l *scanlog.Log) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the timestamp recorded in the scan log.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline from the given components.
func New(src tabs.Source, sc Scanner, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:  src,
		scanner: sc,
		output:  out,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run lists the tabs, scans them in order and writes each result as it is
// produced. An empty tab list is a no-op. Cancelling ctx stops before the
// next tab.
func (p *Pipeline) Run(ctx context.Context, opts engine.Options) (Report, error) {
	list, err := p.source.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("pipeline list tabs: %w", err)
	}
	if len(list) == 0 {
		p.logger.Debug("no tabs to scan")
		return Report{}, nil
	}

	var rep Report
	rep.Results = make([]model.ScanResult, 0, len(list))
	for _, tab := range list {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res := p.scanner.ScanTab(ctx, tab, opts)
		rep.Results = append(rep.Results, res)
		rep.Summary.Add(res)
		if err := p.output.Write(ctx, res); err != nil {
			return rep, fmt.Errorf("pipeline output: %w", err)
		}
	}

	p.logger.Info("scan complete",
		"tabs", len(rep.Results),
		"safe", rep.Summary.Safe,
		"warning", rep.Summary.Warning,
		"danger", rep.Summary.Danger,
	)

	if p.log != nil {
		recent, err := p.log.Record(ctx, p.now())
		if err != nil {
			// The verdicts are already out; a lost timestamp is not fatal.
			p.logger.Warn("scan log record failed", "error", err)
		} else {
			rep.Recent = recent
		}
	}
	return rep, nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}
