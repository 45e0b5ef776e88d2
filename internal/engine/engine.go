// Package engine turns a browser tab into a verdict by running the static
// rules, the local classifier, and optionally the remote classifier.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/crimson-sun/tabguard/internal/engine/classifier"
	"github.com/crimson-sun/tabguard/internal/engine/rules"
	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/remote"
)

// Local-AI score thresholds (percent) used when merging into the tab verdict.
const (
	localDangerScore  = 80
	localWarningScore = 60
	remoteDangerScore = 80
)

// LocalClassifier is the on-device phishing model.
type LocalClassifier interface {
	Ready() bool
	Predict(ctx context.Context, rawURL string) (classifier.Prediction, error)
}

// Options selects which classifiers run for one scan.
type Options struct {
	Local  bool
	Remote bool
}

// Engine merges every signal into a single ScanResult per tab.
type Engine struct {
	local  LocalClassifier
	remote remote.Classifier
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocal sets the local classifier.
func WithLocal(c LocalClassifier) Option {
	return func(e *Engine) { e.local = c }
}

// WithRemote sets the remote classifier. Nil disables remote scoring.
func WithRemote(c remote.Classifier) Option {
	return func(e *Engine) { e.remote = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine. With no options only the rules run.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode describes the engines active for opts, e.g. "Rules + Local AI".
func (e *Engine) Mode(opts Options) string {
	mode := "Rules"
	if opts.Local && e.local != nil && e.local.Ready() {
		mode += " + Local AI"
	}
	if opts.Remote && e.remote != nil {
		mode += " + Cloud AI"
	}
	return mode
}

// ScanTab produces the verdict for one tab. It never fails: classifier
// errors are logged and contribute nothing.
func (e *Engine) ScanTab(ctx context.Context, tab model.Tab, opts Options) model.ScanResult {
	rr := rules.Evaluate(tab.URL)
	res := model.ScanResult{
		ID:        uuid.NewString(),
		ScannedAt: e.now(),
		Tab:       tab,
		Risk:      rr.Risk,
		Issues:    rr.Issues,
	}
	if !rr.Scannable() {
		return res
	}
	res.Domain = registrableDomain(rr.Parsed.Hostname)

	e.applyLocal(ctx, &res, opts)
	e.applyRemote(ctx, &res, opts)
	return res
}

// ScanAll scans tabs one after another, in order.
func (e *Engine) ScanAll(ctx context.Context, tabs []model.Tab, opts Options) []model.ScanResult {
	results := make([]model.ScanResult, 0, len(tabs))
	for _, tab := range tabs {
		results = append(results, e.ScanTab(ctx, tab, opts))
	}
	return results
}

func (e *Engine) applyLocal(ctx context.Context, res *model.ScanResult, opts Options) {
	if e.local == nil || !e.local.Ready() {
		return
	}
	if !opts.Local {
		res.AddIssue(model.KindInfo, "Local AI is turned off (rules only)")
		return
	}

	p, err := e.local.Predict(ctx, res.Tab.URL)
	if err != nil {
		e.logger.Warn("local classifier failed", "url", res.Tab.URL, "error", err)
		return
	}
	res.Local = &model.LocalVerdict{
		IsPhishing: p.IsPhishing,
		Confidence: p.Confidence,
		Risk:       p.Risk,
		Score:      p.Score,
	}

	if p.IsPhishing {
		res.AddIssue(model.KindLocalAI, fmt.Sprintf("Local AI: Threat detected (%d%% confidence)", p.Score))
		switch {
		case p.Score >= localDangerScore:
			res.Raise(model.Danger)
		case p.Score >= localWarningScore:
			res.Raise(model.Warning)
		}
		return
	}
	res.AddIssue(model.KindLocalAI, fmt.Sprintf("Local AI: Appears safe (%d%% confidence)", 100-p.Score))
}

func (e *Engine) applyRemote(ctx context.Context, res *model.ScanResult, opts Options) {
	if !opts.Remote || e.remote == nil || res.Risk == model.Safe {
		return
	}

	s, err := e.remote.Classify(ctx, res.Tab.URL)
	if err != nil {
		e.logger.Warn("remote classifier failed", "url", res.Tab.URL, "error", err)
		return
	}
	res.Remote = &model.RemoteVerdict{Label: s.Label, ScorePercent: s.ScorePercent}
	res.AddIssue(model.KindCloudAI, fmt.Sprintf("Cloud AI: %s (%d%% confidence)", strings.ToUpper(s.Label), s.ScorePercent))
	if strings.EqualFold(s.Label, "phishing") && s.ScorePercent >= remoteDangerScore {
		res.Raise(model.Danger)
	}
}

// registrableDomain returns the eTLD+1 of host, or host itself when it has
// none (IP literals, single labels, bare public suffixes).
func registrableDomain(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}
