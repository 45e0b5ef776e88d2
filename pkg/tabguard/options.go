package tabguard

import (
	"log/slog"
	"time"

	"github.com/crimson-sun/tabguard/internal/engine/classifier"
	"github.com/crimson-sun/tabguard/internal/remote"
)

type options struct {
	modelDir    string
	onnxLibrary string
	settleDelay time.Duration
	loader      classifier.Loader

	hfToken        string
	remoteEndpoint string
	remoteModel    string
	remoteRate     float64

	historyPath string
	logger      *slog.Logger
}

// Option configures a Guard.
type Option func(*options)

// WithModelDir enables the local classifier, loading model.onnx and the
// optional scaler.json and config.json from dir.
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithONNXLibrary sets the path of the ONNX Runtime shared library.
// Default: the platform's default library name.
func WithONNXLibrary(path string) Option {
	return func(o *options) {
		o.onnxLibrary = path
	}
}

// WithSettleDelay sets the pause before each model load. Default: 200ms.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		o.settleDelay = d
	}
}

// WithHuggingFaceToken enables the remote classifier. Without a token it
// stays off.
func WithHuggingFaceToken(token string) Option {
	return func(o *options) {
		o.hfToken = token
	}
}

// WithRemoteEndpoint overrides the inference API base URL.
func WithRemoteEndpoint(url string) Option {
	return func(o *options) {
		o.remoteEndpoint = url
	}
}

// WithRemoteModel overrides the zero-shot model name.
func WithRemoteModel(name string) Option {
	return func(o *options) {
		o.remoteModel = name
	}
}

// WithRemoteRate caps remote requests per second. Zero or less disables
// throttling. Default: 1.
func WithRemoteRate(perSec float64) Option {
	return func(o *options) {
		o.remoteRate = perSec
	}
}

// WithHistoryPath keeps the recent-scan log in a SQLite database at path
// instead of in memory.
func WithHistoryPath(path string) Option {
	return func(o *options) {
		o.historyPath = path
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// withLoader swaps the model runtime; tests use it to avoid ONNX Runtime.
func withLoader(l classifier.Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

func defaultOptions() options {
	return options{
		settleDelay:    classifier.DefaultSettleDelay,
		remoteEndpoint: remote.DefaultEndpoint,
		remoteModel:    remote.DefaultModel,
		remoteRate:     1,
		logger:         slog.Default(),
	}
}

// ScanOption adjusts a single scan.
type ScanOption func(*scanOptions)

type scanOptions struct {
	local  bool
	remote bool
}

// WithoutLocalAI skips the local classifier for this scan.
func WithoutLocalAI() ScanOption {
	return func(o *scanOptions) { o.local = false }
}

// WithoutCloudAI skips the remote classifier for this scan.
func WithoutCloudAI() ScanOption {
	return func(o *scanOptions) { o.remote = false }
}
