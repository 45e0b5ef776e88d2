package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crimson-sun/tabguard/internal/httpclient"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *HuggingFace {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	base := []Option{
		WithRateLimit(0, 0),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHTTPOptions(httpclient.WithBackoff(time.Millisecond)),
	}
	return New(srv.URL, "hf_test", append(base, opts...)...)
}

func TestClassifyRequestShape(t *testing.T) {
	var (
		gotPath, gotQuery, gotAuth string
		gotBody                    request
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"labels":["safe","suspicious","phishing"],"scores":[0.7,0.2,0.1]}`))
	})

	if _, err := c.Classify(context.Background(), "https://example.com/"); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if gotPath != "/models/facebook/bart-large-mnli" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "wait_for_model=true" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAuth != "Bearer hf_test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.Inputs != "Classify the security risk of this URL: https://example.com/" {
		t.Errorf("inputs = %q", gotBody.Inputs)
	}
	if len(gotBody.Parameters.CandidateLabels) != 3 || gotBody.Parameters.MultiLabel {
		t.Errorf("parameters = %+v", gotBody.Parameters)
	}
}

func TestClassifyResponseShapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLabel string
		wantPct   int
	}{
		{"object", `{"labels":["phishing","suspicious","safe"],"scores":[0.854,0.1,0.046]}`, "phishing", 85},
		{"array", `[{"labels":["suspicious","safe","phishing"],"scores":[0.616,0.3,0.084]}]`, "suspicious", 62},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			s, err := c.Classify(context.Background(), "http://x.tk/")
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if s.Label != tt.wantLabel || s.ScorePercent != tt.wantPct {
				t.Fatalf("got %+v, want %s %d", s, tt.wantLabel, tt.wantPct)
			}
		})
	}
}

func TestClassifyUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad token"}`},
		{"server error", http.StatusServiceUnavailable, `{"error":"loading"}`},
		{"malformed", http.StatusOK, `not json`},
		{"empty array", http.StatusOK, `[]`},
		{"no labels", http.StatusOK, `{"labels":[],"scores":[]}`},
		{"bad score", http.StatusOK, `{"labels":["safe"],"scores":[3]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Classify(context.Background(), "http://x.tk/")
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestClassifyNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := New(addr, "tok", WithRateLimit(0, 0))
	if _, err := c.Classify(context.Background(), "http://x.tk/"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClassifyRateLimitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"labels":["safe"],"scores":[0.9]}`))
	}, WithRateLimit(0.001, 1))

	if _, err := c.Classify(context.Background(), "https://a.com/"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	// The bucket is now empty; the next token is far away.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Classify(ctx, "https://b.com/")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestWithModel(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"labels":["safe"],"scores":[1]}`))
	}, WithModel("org/other"))

	if c.Model() != "org/other" {
		t.Fatalf("Model() = %q", c.Model())
	}
	if _, err := c.Classify(context.Background(), "https://a.com/"); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if gotPath != "/models/org/other" {
		t.Fatalf("path = %q", gotPath)
	}
}
