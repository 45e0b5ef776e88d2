package tabguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crimson-sun/tabguard/internal/artifacts"
	"github.com/crimson-sun/tabguard/internal/engine"
	"github.com/crimson-sun/tabguard/internal/engine/classifier"
	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/remote"
	"github.com/crimson-sun/tabguard/internal/scanlog"
)

// ErrNoModel is returned by Reload when the Guard has no model directory.
var ErrNoModel = errors.New("tabguard: no model directory configured")

// Guard scans tab URLs. Safe for concurrent use.
type Guard struct {
	engine  *engine.Engine
	local   *classifier.Adapter // nil without a model directory
	remote  bool
	history *scanlog.Log
	logger  *slog.Logger
	closers []func() error
}

// New creates a Guard. With a model directory the model is loaded before
// New returns; a model that cannot be loaded is an error.
func New(opts ...Option) (*Guard, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	g := &Guard{logger: o.logger}
	engOpts := []engine.Option{engine.WithLogger(o.logger)}

	if o.modelDir != "" {
		loader := o.loader
		if loader == nil {
			loader = classifier.ONNXLoader(o.onnxLibrary)
		}
		g.local = classifier.New(artifacts.NewDir(o.modelDir),
			classifier.WithLoader(loader),
			classifier.WithSettleDelay(o.settleDelay),
			classifier.WithLogger(o.logger),
		)
		if err := g.local.Load(context.Background()); err != nil {
			return nil, fmt.Errorf("tabguard: %w", err)
		}
		g.closers = append(g.closers, g.local.Close)
		engOpts = append(engOpts, engine.WithLocal(g.local))
	}

	if o.hfToken != "" {
		rc := remote.New(o.remoteEndpoint, o.hfToken,
			remote.WithModel(o.remoteModel),
			remote.WithRateLimit(o.remoteRate, 2),
			remote.WithLogger(o.logger),
		)
		g.remote = true
		engOpts = append(engOpts, engine.WithRemote(rc))
	}

	var store scanlog.Store = &scanlog.Memory{}
	if o.historyPath != "" {
		db, err := scanlog.OpenSQLite(o.historyPath)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("tabguard: %w", err)
		}
		g.closers = append(g.closers, db.Close)
		store = db
	}
	g.history = scanlog.New(store)
	g.engine = engine.New(engOpts...)
	return g, nil
}

func (g *Guard) scanOptions(opts []ScanOption) engine.Options {
	so := scanOptions{local: true, remote: true}
	for _, opt := range opts {
		opt(&so)
	}
	return engine.Options{Local: so.local, Remote: so.remote}
}

// Mode describes the engines a default scan uses, e.g. "Rules + Local AI".
func (g *Guard) Mode() string {
	return g.engine.Mode(engine.Options{Local: true, Remote: g.remote})
}

// ScanURL scans a single URL. It is not recorded in the recent-scan log.
func (g *Guard) ScanURL(ctx context.Context, url string, opts ...ScanOption) Result {
	return resultFromScan(g.engine.ScanTab(ctx, model.Tab{URL: url}, g.scanOptions(opts)))
}

// Scan scans tabs in order and records the scan time. An empty list is a
// no-op. Results gathered before ctx was cancelled are returned with the
// error. A scan time that cannot be recorded is logged, not returned.
func (g *Guard) Scan(ctx context.Context, tabs []Tab, opts ...ScanOption) ([]Result, error) {
	if len(tabs) == 0 {
		return nil, nil
	}
	eo := g.scanOptions(opts)
	results := make([]Result, 0, len(tabs))
	for _, t := range tabs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, resultFromScan(g.engine.ScanTab(ctx, model.Tab{URL: t.URL, Title: t.Title}, eo)))
	}
	if _, err := g.history.Record(ctx, time.Now()); err != nil {
		g.logger.Warn("scan log record failed", "error", err)
	}
	return results, nil
}

// Recent returns up to five recent scan times, most recent first.
func (g *Guard) Recent(ctx context.Context) ([]time.Time, error) {
	return g.history.Recent(ctx)
}

// Reload reloads the model files. On failure the local classifier is off
// until a later Reload succeeds.
func (g *Guard) Reload(ctx context.Context) error {
	if g.local == nil {
		return ErrNoModel
	}
	return g.local.Reload(ctx)
}

// Close releases the model and history database.
func (g *Guard) Close() error {
	var errs []error
	for _, c := range g.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
