package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/output"
)

// Version is the current TabGuard release version.
const Version = "0.4.0"

// Config holds all TabGuard configuration.
type Config struct {
	Tabs     TabsConfig    `yaml:"tabs"`
	Engine   EngineConfig  `yaml:"engine"`
	Remote   RemoteConfig  `yaml:"remote"`
	Output   OutputConfig  `yaml:"output"`
	ScanLog  ScanLogConfig `yaml:"scanlog"`
	LogLevel string        `yaml:"log_level"` // "debug", "info", "warn", "error"
}

// TabsConfig selects where tabs come from.
type TabsConfig struct {
	Provider string `yaml:"provider"` // "devtools", "file"
	Path     string `yaml:"path"`     // file provider; "-" is stdin
	Endpoint string `yaml:"endpoint"` // devtools provider
}

// EngineConfig holds local classifier settings.
type EngineConfig struct {
	ModelDir     string        `yaml:"model_dir"`
	ONNXLibrary  string        `yaml:"onnx_library"` // empty: platform default
	LocalEnabled bool          `yaml:"local_enabled"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

// RemoteConfig holds remote classifier settings. The token is never given a
// default; without one the remote classifier stays off.
type RemoteConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Endpoint   string        `yaml:"endpoint"`
	Model      string        `yaml:"model"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Burst      int           `yaml:"burst"`
}

// Active reports whether remote scoring can run.
func (r RemoteConfig) Active() bool {
	return r.Enabled && r.Token != ""
}

// OutputConfig holds output destination settings.
type OutputConfig struct {
	Format     string `yaml:"format"` // comma-separated: "text", "stdout", "file", "webhook"
	Path       string `yaml:"path"`
	MaxSize    int64  `yaml:"max_size"`    // file rotation threshold in bytes; 0 disables
	MaxBackups int    `yaml:"max_backups"` // rotated files kept; 0 uses the default
	Pretty     bool   `yaml:"pretty"`
	Verbosity  string `yaml:"verbosity"` // "minimal", "standard", "full"
	WebhookURL string `yaml:"webhook_url"`
	MinRisk    string `yaml:"min_risk"` // webhook filter
}

// Formats returns the configured output formats.
func (o OutputConfig) Formats() []string {
	var out []string
	for _, f := range strings.Split(o.Format, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ScanLogConfig locates the recent-scan database. Empty keeps it in memory.
type ScanLogConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Tabs: TabsConfig{
			Provider: "devtools",
			Endpoint: "http://127.0.0.1:9222",
		},
		Engine: EngineConfig{
			ModelDir:     "models",
			LocalEnabled: true,
			SettleDelay:  200 * time.Millisecond,
		},
		Remote: RemoteConfig{
			Enabled:    true,
			Endpoint:   "https://api-inference.huggingface.co",
			Model:      "facebook/bart-large-mnli",
			Timeout:    20 * time.Second,
			RatePerSec: 1,
			Burst:      2,
		},
		Output: OutputConfig{
			Format:    "text",
			Verbosity: "standard",
			MinRisk:   "safe",
		},
		ScanLog:  ScanLogConfig{Path: defaultScanLogPath()},
		LogLevel: "info",
	}
}

func defaultScanLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tabguard", "scans.db")
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then TABGUARD_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Tabs.Provider = getenv("TABGUARD_TABS", cfg.Tabs.Provider)
	cfg.Tabs.Path = getenv("TABGUARD_TABS_PATH", cfg.Tabs.Path)
	cfg.Tabs.Endpoint = getenv("TABGUARD_DEVTOOLS_ENDPOINT", cfg.Tabs.Endpoint)

	cfg.Engine.ModelDir = getenv("TABGUARD_MODEL_DIR", cfg.Engine.ModelDir)
	cfg.Engine.ONNXLibrary = getenv("TABGUARD_ONNX_LIBRARY", cfg.Engine.ONNXLibrary)
	cfg.Engine.LocalEnabled = getenvBool("TABGUARD_LOCAL_AI", cfg.Engine.LocalEnabled)
	cfg.Engine.SettleDelay = getenvDuration("TABGUARD_SETTLE_DELAY", cfg.Engine.SettleDelay)

	cfg.Remote.Enabled = getenvBool("TABGUARD_REMOTE_AI", cfg.Remote.Enabled)
	cfg.Remote.Endpoint = getenv("TABGUARD_REMOTE_ENDPOINT", cfg.Remote.Endpoint)
	cfg.Remote.Model = getenv("TABGUARD_REMOTE_MODEL", cfg.Remote.Model)
	cfg.Remote.Token = getenv("TABGUARD_HF_TOKEN", cfg.Remote.Token)
	cfg.Remote.Timeout = getenvDuration("TABGUARD_REMOTE_TIMEOUT", cfg.Remote.Timeout)
	cfg.Remote.RatePerSec = getenvFloat("TABGUARD_REMOTE_RATE", cfg.Remote.RatePerSec)
	cfg.Remote.Burst = getenvInt("TABGUARD_REMOTE_BURST", cfg.Remote.Burst)

	cfg.Output.Format = getenv("TABGUARD_OUTPUT", cfg.Output.Format)
	cfg.Output.Path = getenv("TABGUARD_OUTPUT_PATH", cfg.Output.Path)
	cfg.Output.Pretty = getenvBool("TABGUARD_OUTPUT_PRETTY", cfg.Output.Pretty)
	cfg.Output.Verbosity = getenv("TABGUARD_VERBOSITY", cfg.Output.Verbosity)
	cfg.Output.WebhookURL = getenv("TABGUARD_WEBHOOK_URL", cfg.Output.WebhookURL)
	cfg.Output.MinRisk = getenv("TABGUARD_WEBHOOK_MIN_RISK", cfg.Output.MinRisk)

	cfg.ScanLog.Path = getenv("TABGUARD_SCANLOG_PATH", cfg.ScanLog.Path)
	cfg.LogLevel = getenv("TABGUARD_LOG_LEVEL", cfg.LogLevel)
}

// Validate checks the configuration and returns every problem found.
func (c Config) Validate() error {
	var errs []error

	switch c.Tabs.Provider {
	case "devtools":
	case "file":
		if c.Tabs.Path == "" {
			errs = append(errs, errors.New("tabs: file provider needs a path (TABGUARD_TABS_PATH)"))
		}
	default:
		errs = append(errs, fmt.Errorf("tabs: unknown provider %q", c.Tabs.Provider))
	}

	if c.Engine.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("engine: settle delay must be >= 0, got %v", c.Engine.SettleDelay))
	}
	if c.Remote.RatePerSec < 0 {
		errs = append(errs, fmt.Errorf("remote: rate must be >= 0, got %v", c.Remote.RatePerSec))
	}
	if c.Remote.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("remote: timeout must be > 0, got %v", c.Remote.Timeout))
	}

	if _, err := output.ParseVerbosity(c.Output.Verbosity); err != nil {
		errs = append(errs, fmt.Errorf("output: verbosity: %w", err))
	}
	formats := c.Output.Formats()
	if len(formats) == 0 {
		errs = append(errs, errors.New("output: no format configured"))
	}
	for _, f := range formats {
		switch f {
		case "text", "stdout":
		case "file":
			if c.Output.Path == "" {
				errs = append(errs, errors.New("output: file format needs a path (TABGUARD_OUTPUT_PATH)"))
			}
		case "webhook":
			if c.Output.WebhookURL == "" {
				errs = append(errs, errors.New("output: webhook format needs a URL (TABGUARD_WEBHOOK_URL)"))
			}
			if _, err := model.ParseRiskLevel(c.Output.MinRisk); err != nil {
				errs = append(errs, fmt.Errorf("output: min_risk: %w", err))
			}
		default:
			errs = append(errs, fmt.Errorf("output: unknown format %q", f))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log level: unknown %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
