// Package classifier owns the local phishing model and turns a URL into a
// risk prediction: extract features, resolve order and scaling, reconcile
// the vector width, run inference, map the score.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crimson-sun/tabguard/internal/artifacts"
	"github.com/crimson-sun/tabguard/internal/engine/features"
	"github.com/crimson-sun/tabguard/internal/engine/resolver"
	"github.com/crimson-sun/tabguard/internal/model"
)

// DefaultSettleDelay is waited before each load.
const DefaultSettleDelay = 200 * time.Millisecond

var (
	// ErrNotReady is returned by Predict when no model is loaded.
	ErrNotReady = errors.New("classifier: model not loaded")
	// ErrInference is returned when the model fails or yields an unusable score.
	ErrInference = errors.New("classifier: inference failed")
)

// Prediction is the classifier's verdict for one URL.
type Prediction struct {
	IsPhishing bool
	Confidence float64 // raw score in [0,1]
	Risk       model.RiskLevel
	Score      int // Confidence as a rounded percentage
}

// NewPrediction maps a phishing probability to a Prediction.
func NewPrediction(score float64) Prediction {
	risk := model.Safe
	if score > 0.6 {
		risk = model.Danger
	} else if score > 0.3 {
		risk = model.Warning
	}
	return Prediction{
		IsPhishing: score > 0.5,
		Confidence: score,
		Risk:       risk,
		Score:      int(math.Round(score * 100)),
	}
}

// state bundles everything a prediction depends on. It is never mutated
// after construction; reloads replace it whole.
type state struct {
	model Model
	aux   resolver.Aux
	width int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLoader sets how the model artifact becomes a Model. Default: ONNX
// Runtime with the system library search path.
func WithLoader(l Loader) Option {
	return func(a *Adapter) { a.load = l }
}

// WithSettleDelay sets the delay waited before each load. Default: 200ms.
func WithSettleDelay(d time.Duration) Option {
	return func(a *Adapter) { a.settle = d }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// Adapter runs the local classifier. Safe for concurrent use.
type Adapter struct {
	store  artifacts.Store
	load   Loader
	settle time.Duration
	logger *slog.Logger

	cur    atomic.Pointer[state]
	inUse  sync.RWMutex // held for reading while a state's model runs
	flight singleflight.Group
}

// New creates an Adapter reading artifacts from store. No model is loaded
// until Reload is called.
func New(store artifacts.Store, opts ...Option) *Adapter {
	a := &Adapter{
		store:  store,
		load:   ONNXLoader(""),
		settle: DefaultSettleDelay,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "classifier")
	return a
}

// Ready reports whether a model is loaded.
func (a *Adapter) Ready() bool {
	return a.cur.Load() != nil
}

// InputWidth returns the loaded model's expected input width, 0 when unknown
// or when no model is loaded.
func (a *Adapter) InputWidth() int {
	st := a.cur.Load()
	if st == nil {
		return 0
	}
	return st.inputWidth()
}

// Scaled reports whether the loaded state uses external order and scaling.
func (a *Adapter) Scaled() bool {
	st := a.cur.Load()
	return st != nil && st.aux.Scaled()
}

// Load performs the initial load. It is Reload under another name.
func (a *Adapter) Load(ctx context.Context) error {
	return a.Reload(ctx)
}

// Reload tears down the current state and loads model, normalization
// params, feature order and input width again as one unit. Concurrent
// calls share a single load. On failure the adapter is left not ready.
func (a *Adapter) Reload(ctx context.Context) error {
	_, err, _ := a.flight.Do("reload", func() (any, error) {
		return nil, a.reload(ctx)
	})
	return err
}

func (a *Adapter) reload(ctx context.Context) error {
	if a.settle > 0 {
		t := time.NewTimer(a.settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	st, err := a.loadState()
	if err != nil {
		a.logger.Error("model load failed", "error", err)
		a.replace(nil)
		return err
	}
	a.replace(st)
	a.logger.Info("model loaded",
		"input_width", st.width,
		"scaled", st.aux.Scaled(),
		"features", st.aux.Width(),
	)
	return nil
}

func (a *Adapter) loadState() (*state, error) {
	data, err := a.store.Read(artifacts.Model)
	if err != nil {
		return nil, fmt.Errorf("classifier: load model: %w", err)
	}
	m, err := a.load(data)
	if err != nil {
		return nil, fmt.Errorf("classifier: load model: %w", err)
	}
	return &state{
		model: m,
		aux:   a.loadAux(),
		width: m.InputWidth(),
	}, nil
}

// replace swaps in st and closes the previous model once no prediction is
// using it.
func (a *Adapter) replace(st *state) {
	old := a.cur.Swap(st)
	if old == nil {
		return
	}
	a.inUse.Lock()
	defer a.inUse.Unlock()
	if err := old.model.Close(); err != nil {
		a.logger.Warn("failed to close previous model", "error", err)
	}
}

// Close unloads the model.
func (a *Adapter) Close() error {
	old := a.cur.Swap(nil)
	if old == nil {
		return nil
	}
	a.inUse.Lock()
	defer a.inUse.Unlock()
	return old.model.Close()
}

// inputWidth resolves the width lazily from the model when it was unknown
// at load time.
func (s *state) inputWidth() int {
	if s.width > 0 {
		return s.width
	}
	return s.model.InputWidth()
}

// Predict scores rawURL. It returns ErrNotReady without a model, an error
// wrapping features.ErrInvalidURL when the URL cannot be parsed, and an
// error wrapping ErrInference when the model fails.
func (a *Adapter) Predict(ctx context.Context, rawURL string) (p Prediction, err error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	a.inUse.RLock()
	defer a.inUse.RUnlock()

	st := a.cur.Load()
	if st == nil {
		return Prediction{}, ErrNotReady
	}

	vec, err := features.Extract(rawURL)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier: %w", err)
	}

	input := resolver.Resolve(vec, st.aux)
	width := st.inputWidth()
	if width > 0 && len(input) != width {
		a.logger.Debug("adjusting feature vector to model input width",
			"from", len(input), "to", width)
	}
	input = Fit(input, width)

	defer func() {
		if r := recover(); r != nil {
			p, err = Prediction{}, fmt.Errorf("%w: panic: %v", ErrInference, r)
		}
	}()

	score, err := st.model.Predict(toFloat32(input))
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return Prediction{}, fmt.Errorf("%w: score %v outside [0,1]", ErrInference, score)
	}
	return NewPrediction(score), nil
}

// Fit right-pads vec with zeros or truncates it so its length is width.
// A width of 0 or less leaves vec unchanged.
func Fit(vec []float64, width int) []float64 {
	if width <= 0 || len(vec) == width {
		return vec
	}
	out := make([]float64, width)
	copy(out, vec)
	return out
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
