package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/tabguard/internal/engine/classifier"
	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/remote"
)

type fakeLocal struct {
	ready bool
	score float64
	err   error
	calls int
}

func (f *fakeLocal) Ready() bool { return f.ready }

func (f *fakeLocal) Predict(_ context.Context, _ string) (classifier.Prediction, error) {
	f.calls++
	if f.err != nil {
		return classifier.Prediction{}, f.err
	}
	return classifier.NewPrediction(f.score), nil
}

type fakeRemote struct {
	s     remote.Suggestion
	err   error
	calls int
}

func (f *fakeRemote) Classify(_ context.Context, _ string) (remote.Suggestion, error) {
	f.calls++
	return f.s, f.err
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(opts ...Option) *Engine {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return fixedTime }),
	}
	return New(append(base, opts...)...)
}

func issueMessages(r model.ScanResult) []string {
	out := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		out[i] = is.Message
	}
	return out
}

func hasIssue(r model.ScanResult, prefix string) bool {
	for _, is := range r.Issues {
		if strings.HasPrefix(is.Message, prefix) {
			return true
		}
	}
	return false
}

func TestScanTabRulesOnly(t *testing.T) {
	e := newTestEngine()
	res := e.ScanTab(context.Background(), model.Tab{URL: "http://login.paypal-secure-verify.tk/account@evil.com", Title: "Login"}, Options{Local: true, Remote: true})

	if res.Risk != model.Danger {
		t.Fatalf("Risk = %v, want danger", res.Risk)
	}
	if len(res.Issues) < 4 {
		t.Fatalf("expected at least 4 issues, got %v", issueMessages(res))
	}
	if res.ID == "" || !res.ScannedAt.Equal(fixedTime) {
		t.Fatalf("ID=%q ScannedAt=%v", res.ID, res.ScannedAt)
	}
	if res.Domain != "paypal-secure-verify.tk" {
		t.Fatalf("Domain = %q", res.Domain)
	}
	if res.Tab.Title != "Login" {
		t.Fatalf("Tab = %+v", res.Tab)
	}
}

func TestScanTabCleanURL(t *testing.T) {
	e := newTestEngine()
	res := e.ScanTab(context.Background(), model.Tab{URL: "https://www.example.co.uk/"}, Options{})
	if res.Risk != model.Safe {
		t.Fatalf("Risk = %v", res.Risk)
	}
	if len(res.Issues) != 1 || res.Issues[0].Message != model.NoIssuesMessage {
		t.Fatalf("Issues = %v", issueMessages(res))
	}
	if res.Domain != "example.co.uk" {
		t.Fatalf("Domain = %q", res.Domain)
	}
}

func TestScanTabInternalSkipsClassifiers(t *testing.T) {
	local := &fakeLocal{ready: true, score: 0.99}
	rem := &fakeRemote{s: remote.Suggestion{Label: "phishing", ScorePercent: 99}}
	e := newTestEngine(WithLocal(local), WithRemote(rem))

	for _, u := range []string{"chrome://settings", "", "http://[::1"} {
		res := e.ScanTab(context.Background(), model.Tab{URL: u}, Options{Local: true, Remote: true})
		if res.Risk != model.Safe || len(res.Issues) != 1 {
			t.Fatalf("%q: Risk=%v Issues=%v", u, res.Risk, issueMessages(res))
		}
		if res.Local != nil || res.Remote != nil {
			t.Fatalf("%q: classifiers contributed", u)
		}
	}
	if local.calls != 0 || rem.calls != 0 {
		t.Fatalf("classifiers called: local=%d remote=%d", local.calls, rem.calls)
	}
}

func TestScanTabLocalThresholds(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		score    float64
		wantRisk model.RiskLevel
		wantMsg  string
	}{
		{"threat danger", "https://example.com/", 0.85, model.Danger, "Local AI: Threat detected (85% confidence)"},
		{"scenario D", "https://example.com/", 0.75, model.Warning, "Local AI: Threat detected (75% confidence)"},
		{"threat below warning", "https://example.com/", 0.55, model.Safe, "Local AI: Threat detected (55% confidence)"},
		{"appears safe", "https://example.com/", 0.12, model.Safe, "Local AI: Appears safe (88% confidence)"},
		{"does not lower rules", "https://example.com/@x", 0.01, model.Danger, "Local AI: Appears safe (99% confidence)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(WithLocal(&fakeLocal{ready: true, score: tt.score}))
			res := e.ScanTab(context.Background(), model.Tab{URL: tt.url}, Options{Local: true})
			if res.Risk != tt.wantRisk {
				t.Fatalf("Risk = %v, want %v", res.Risk, tt.wantRisk)
			}
			if !hasIssue(res, tt.wantMsg) {
				t.Fatalf("missing %q in %v", tt.wantMsg, issueMessages(res))
			}
			if hasIssue(res, model.NoIssuesMessage) {
				t.Fatalf("placeholder kept alongside local issue: %v", issueMessages(res))
			}
			if res.Local == nil {
				t.Fatal("Local verdict missing")
			}
		})
	}
}

func TestScanTabLocalScenarioDVerdict(t *testing.T) {
	e := newTestEngine(WithLocal(&fakeLocal{ready: true, score: 0.75}))
	res := e.ScanTab(context.Background(), model.Tab{URL: "https://example.com/"}, Options{Local: true})
	want := model.LocalVerdict{IsPhishing: true, Confidence: 0.75, Risk: model.Danger, Score: 75}
	if res.Local == nil || *res.Local != want {
		t.Fatalf("Local = %+v, want %+v", res.Local, want)
	}
}

func TestScanTabLocalDisabled(t *testing.T) {
	local := &fakeLocal{ready: true, score: 0.99}
	e := newTestEngine(WithLocal(local))
	res := e.ScanTab(context.Background(), model.Tab{URL: "https://example.com/"}, Options{Local: false})
	if local.calls != 0 {
		t.Fatal("local classifier ran while disabled")
	}
	if len(res.Issues) != 1 || res.Issues[0].Message != "Local AI is turned off (rules only)" {
		t.Fatalf("Issues = %v", issueMessages(res))
	}
}

func TestScanTabLocalNotReady(t *testing.T) {
	local := &fakeLocal{ready: false}
	e := newTestEngine(WithLocal(local))
	res := e.ScanTab(context.Background(), model.Tab{URL: "https://example.com/"}, Options{Local: true})
	if local.calls != 0 || res.Local != nil {
		t.Fatal("not-ready classifier used")
	}
	if len(res.Issues) != 1 || res.Issues[0].Message != model.NoIssuesMessage {
		t.Fatalf("Issues = %v", issueMessages(res))
	}
}

func TestScanTabLocalFailureContributesNothing(t *testing.T) {
	e := newTestEngine(WithLocal(&fakeLocal{ready: true, err: classifier.ErrInference}))
	res := e.ScanTab(context.Background(), model.Tab{URL: "http://example.com/"}, Options{Local: true})
	if res.Local != nil {
		t.Fatal("failed prediction recorded")
	}
	if res.Risk != model.Warning || len(res.Issues) != 1 {
		t.Fatalf("Risk=%v Issues=%v", res.Risk, issueMessages(res))
	}
}

func TestScanTabRemoteGating(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		opts      Options
		wantCalls int
	}{
		{"safe tab skipped", "https://example.com/", Options{Remote: true}, 0},
		{"disabled", "http://example.com/", Options{Remote: false}, 0},
		{"warning tab scored", "http://example.com/", Options{Remote: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rem := &fakeRemote{s: remote.Suggestion{Label: "suspicious", ScorePercent: 61}}
			e := newTestEngine(WithRemote(rem))
			res := e.ScanTab(context.Background(), model.Tab{URL: tt.url}, tt.opts)
			if rem.calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", rem.calls, tt.wantCalls)
			}
			if tt.wantCalls == 1 && !hasIssue(res, "Cloud AI: SUSPICIOUS (61% confidence)") {
				t.Fatalf("missing cloud issue: %v", issueMessages(res))
			}
		})
	}
}

func TestScanTabRemoteEscalation(t *testing.T) {
	tests := []struct {
		s    remote.Suggestion
		want model.RiskLevel
	}{
		{remote.Suggestion{Label: "phishing", ScorePercent: 80}, model.Danger},
		{remote.Suggestion{Label: "phishing", ScorePercent: 79}, model.Warning},
		{remote.Suggestion{Label: "suspicious", ScorePercent: 95}, model.Warning},
		{remote.Suggestion{Label: "safe", ScorePercent: 99}, model.Warning},
		{remote.Suggestion{Label: "Phishing", ScorePercent: 95}, model.Danger},
		{remote.Suggestion{Label: "PHISHING", ScorePercent: 80}, model.Danger},
	}
	for _, tt := range tests {
		e := newTestEngine(WithRemote(&fakeRemote{s: tt.s}))
		res := e.ScanTab(context.Background(), model.Tab{URL: "http://example.com/"}, Options{Remote: true})
		if res.Risk != tt.want {
			t.Errorf("%+v: Risk = %v, want %v", tt.s, res.Risk, tt.want)
		}
		if res.Remote == nil || res.Remote.Label != tt.s.Label {
			t.Errorf("%+v: Remote = %+v", tt.s, res.Remote)
		}
	}
}

func TestScanTabRemoteLabelUpperCased(t *testing.T) {
	e := newTestEngine(WithRemote(&fakeRemote{s: remote.Suggestion{Label: "Phishing", ScorePercent: 95}}))
	res := e.ScanTab(context.Background(), model.Tab{URL: "http://example.com/"}, Options{Remote: true})
	if res.Risk != model.Danger {
		t.Fatalf("Risk = %v, want danger", res.Risk)
	}
	want := []string{"Insecure HTTP connection", "Cloud AI: PHISHING (95% confidence)"}
	if got := issueMessages(res); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("issues = %q, want %q", got, want)
	}
	if res.Remote.Label != "Phishing" {
		t.Fatalf("Remote.Label = %q, want the label as received", res.Remote.Label)
	}
}

func TestScanTabRemoteFailureContributesNothing(t *testing.T) {
	e := newTestEngine(WithRemote(&fakeRemote{err: remote.ErrUnavailable}))
	res := e.ScanTab(context.Background(), model.Tab{URL: "http://example.com/"}, Options{Remote: true})
	if res.Remote != nil || res.Risk != model.Warning || len(res.Issues) != 1 {
		t.Fatalf("Remote=%+v Risk=%v Issues=%v", res.Remote, res.Risk, issueMessages(res))
	}
}

// Local escalation to warning makes an otherwise safe tab eligible for remote scoring.
func TestScanTabLocalFeedsRemoteGate(t *testing.T) {
	rem := &fakeRemote{s: remote.Suggestion{Label: "phishing", ScorePercent: 90}}
	e := newTestEngine(WithLocal(&fakeLocal{ready: true, score: 0.65}), WithRemote(rem))
	res := e.ScanTab(context.Background(), model.Tab{URL: "https://example.com/"}, Options{Local: true, Remote: true})
	if rem.calls != 1 || res.Risk != model.Danger {
		t.Fatalf("calls=%d Risk=%v", rem.calls, res.Risk)
	}
}

func TestScanAllSequentialOrder(t *testing.T) {
	e := newTestEngine()
	tabs := []model.Tab{
		{URL: "https://a.com/"},
		{URL: "http://b.com/"},
		{URL: "chrome://newtab"},
	}
	results := e.ScanAll(context.Background(), tabs, Options{})
	if len(results) != len(tabs) {
		t.Fatalf("got %d results", len(results))
	}
	for i := range tabs {
		if results[i].Tab.URL != tabs[i].URL {
			t.Fatalf("result %d is for %q", i, results[i].Tab.URL)
		}
	}
	if len(e.ScanAll(context.Background(), nil, Options{})) != 0 {
		t.Fatal("expected no results for no tabs")
	}
}

func TestMode(t *testing.T) {
	local := &fakeLocal{ready: true}
	e := newTestEngine(WithLocal(local), WithRemote(&fakeRemote{}))
	if got := e.Mode(Options{Local: true, Remote: true}); got != "Rules + Local AI + Cloud AI" {
		t.Fatalf("Mode = %q", got)
	}
	if got := e.Mode(Options{}); got != "Rules" {
		t.Fatalf("Mode = %q", got)
	}
	local.ready = false
	if got := e.Mode(Options{Local: true}); got != "Rules" {
		t.Fatalf("Mode = %q", got)
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := map[string]string{
		"www.example.com":  "example.com",
		"a.b.example.co.uk": "example.co.uk",
		"192.168.0.1":      "192.168.0.1",
		"localhost":        "localhost",
		"":                 "",
	}
	for host, want := range tests {
		if got := registrableDomain(host); got != want {
			t.Errorf("registrableDomain(%q) = %q, want %q", host, got, want)
		}
	}
}
