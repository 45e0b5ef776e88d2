// Package remote talks to a hosted zero-shot text classifier for a second
// opinion on suspicious URLs.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/crimson-sun/tabguard/internal/httpclient"
)

const (
	DefaultEndpoint = "https://api-inference.huggingface.co"
	DefaultModel    = "facebook/bart-large-mnli"
	DefaultTimeout  = 20 * time.Second

	promptPrefix = "Classify the security risk of this URL: "
)

// CandidateLabels are the zero-shot labels offered to the model.
var CandidateLabels = []string{"safe", "suspicious", "phishing"}

// ErrUnavailable is returned when the remote scorer cannot produce a
// suggestion: network failure, non-2xx status, or an unusable payload.
var ErrUnavailable = errors.New("remote: classifier unavailable")

// Suggestion is the remote scorer's top label.
type Suggestion struct {
	Label        string
	ScorePercent int
}

// Classifier scores a URL remotely.
type Classifier interface {
	Classify(ctx context.Context, rawURL string) (Suggestion, error)
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type response struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// HuggingFace classifies URLs with the Hugging Face inference API.
type HuggingFace struct {
	client   *httpclient.Client
	model    string
	limiter  *rate.Limiter
	logger   *slog.Logger
	httpOpts []httpclient.Option
}

// Option configures a HuggingFace client.
type Option func(*HuggingFace)

// WithModel selects the hosted model.
func WithModel(name string) Option {
	return func(h *HuggingFace) {
		if name != "" {
			h.model = name
		}
	}
}

// WithRateLimit throttles outgoing requests. A non-positive limit disables throttling.
func WithRateLimit(perSec float64, burst int) Option {
	return func(h *HuggingFace) {
		if perSec <= 0 {
			h.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithHTTPOptions passes options through to the underlying HTTP client.
func WithHTTPOptions(opts ...httpclient.Option) Option {
	return func(h *HuggingFace) {
		h.httpOpts = append(h.httpOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *HuggingFace) {
		h.logger = l
	}
}

// New creates a client for endpoint authenticated with token.
// An empty endpoint means DefaultEndpoint.
func New(endpoint, token string, opts ...Option) *HuggingFace {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	h := &HuggingFace{
		model:   DefaultModel,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	base := []httpclient.Option{httpclient.WithTimeout(DefaultTimeout), httpclient.WithMaxRetries(1)}
	h.client = httpclient.New(endpoint, token, append(base, h.httpOpts...)...)
	return h
}

// Model returns the hosted model name.
func (h *HuggingFace) Model() string { return h.model }

// Classify asks the model which candidate label best fits rawURL.
func (h *HuggingFace) Classify(ctx context.Context, rawURL string) (Suggestion, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return Suggestion{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}

	req := request{
		Inputs: promptPrefix + rawURL,
		Parameters: parameters{
			CandidateLabels: CandidateLabels,
			MultiLabel:      false,
		},
	}
	q := url.Values{"wait_for_model": []string{"true"}}

	var raw json.RawMessage
	if err := h.client.PostJSON(ctx, "/models/"+h.model, q, req, &raw); err != nil {
		h.logger.Debug("remote classify failed", "model", h.model, "error", err)
		return Suggestion{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	resp, err := decode(raw)
	if err != nil {
		return Suggestion{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return Suggestion{
		Label:        resp.Labels[0],
		ScorePercent: int(math.Round(resp.Scores[0] * 100)),
	}, nil
}

// decode accepts either a single result object or an array whose first
// element is the result.
func decode(raw json.RawMessage) (response, error) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		var list []response
		if err2 := json.Unmarshal(raw, &list); err2 != nil {
			return response{}, fmt.Errorf("malformed payload: %w", err)
		}
		if len(list) == 0 {
			return response{}, errors.New("empty result array")
		}
		resp = list[0]
	}
	if len(resp.Labels) == 0 || len(resp.Scores) == 0 {
		return response{}, errors.New("no labels in payload")
	}
	s := resp.Scores[0]
	if math.IsNaN(s) || s < 0 || s > 1 {
		return response{}, fmt.Errorf("score %v out of range", s)
	}
	return resp, nil
}
