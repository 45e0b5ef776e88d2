package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/crimson-sun/tabguard/internal/artifacts"
	"github.com/crimson-sun/tabguard/internal/config"
	"github.com/crimson-sun/tabguard/internal/engine"
	"github.com/crimson-sun/tabguard/internal/engine/classifier"
	"github.com/crimson-sun/tabguard/internal/httpclient"
	"github.com/crimson-sun/tabguard/internal/logging"
	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/output"
	"github.com/crimson-sun/tabguard/internal/output/async"
	outfile "github.com/crimson-sun/tabguard/internal/output/file"
	"github.com/crimson-sun/tabguard/internal/output/multi"
	"github.com/crimson-sun/tabguard/internal/output/stdout"
	"github.com/crimson-sun/tabguard/internal/output/webhook"
	"github.com/crimson-sun/tabguard/internal/pipeline"
	"github.com/crimson-sun/tabguard/internal/remote"
	"github.com/crimson-sun/tabguard/internal/render"
	"github.com/crimson-sun/tabguard/internal/scanlog"
	"github.com/crimson-sun/tabguard/internal/tabs"

	// Register tab sources.
	_ "github.com/crimson-sun/tabguard/internal/tabs/devtools"
	_ "github.com/crimson-sun/tabguard/internal/tabs/file"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %v, stopping scan...\n", sig)
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the exit code.
func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	f, err := parseFlags(args, errOut)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	if f.version {
		fmt.Fprintf(out, "tabguard %s\n", config.Version)
		return 0
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(errOut, "tabguard: %v\n", err)
		return 1
	}
	f.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "tabguard: invalid configuration:\n%v\n", err)
		return 1
	}

	formats := cfg.Output.Formats()
	logger := logging.New(errOut, slices.Contains(formats, "stdout"), logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	history, closeHistory, err := openScanLog(cfg.ScanLog.Path, logger)
	if err != nil {
		logger.Error("scan log unavailable", "path", cfg.ScanLog.Path, "error", err)
		return 1
	}
	defer closeHistory()

	r := render.New(out)
	if f.history {
		recent, err := history.Recent(ctx)
		if err != nil {
			logger.Error("reading scan log failed", "error", err)
			return 1
		}
		if err := r.Recent(recent); err != nil {
			logger.Error("render failed", "error", err)
			return 1
		}
		return 0
	}

	src, err := openSource(cfg.Tabs, f.urls)
	if err != nil {
		logger.Error("tab source unavailable", "error", err)
		return 1
	}

	eng, closeEngine := buildEngine(ctx, cfg, logger)
	defer closeEngine()

	opts := engine.Options{Local: cfg.Engine.LocalEnabled, Remote: cfg.Remote.Active()}
	text := slices.Contains(formats, "text")
	if text {
		if err := r.Mode(eng.Mode(opts)); err != nil {
			logger.Error("render failed", "error", err)
			return 1
		}
	}

	sink, err := buildOutput(cfg, out, r, logger)
	if err != nil {
		logger.Error("output unavailable", "error", err)
		return 1
	}

	p := pipeline.New(src, eng, sink, pipeline.WithScanLog(history), pipeline.WithLogger(logger))
	rep, runErr := p.Run(ctx, opts)
	if err := p.Close(); err != nil {
		logger.Error("closing outputs failed", "error", err)
	}
	if runErr != nil {
		logger.Error("scan failed", "error", runErr)
		return 1
	}

	if text {
		if err := renderReport(r, rep); err != nil {
			logger.Error("render failed", "error", err)
			return 1
		}
	}
	return 0
}

// renderReport prints the closing sections of a text scan: the empty-list
// notice, or the summary table followed by recent scans.
func renderReport(r *render.Renderer, rep pipeline.Report) error {
	if len(rep.Results) == 0 {
		return r.Empty()
	}
	if err := r.Summary(rep.Summary); err != nil {
		return err
	}
	return r.Recent(rep.Recent)
}

// openScanLog opens the SQLite log at path, or an in-memory log when path is empty.
func openScanLog(path string, logger *slog.Logger) (*scanlog.Log, func(), error) {
	if path == "" {
		return scanlog.New(&scanlog.Memory{}), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	db, err := scanlog.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return scanlog.New(db), func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing scan log failed", "error", err)
		}
	}, nil
}

// openSource scans urls when any are given, otherwise the configured source.
func openSource(cfg config.TabsConfig, urls []string) (tabs.Source, error) {
	if len(urls) > 0 {
		list := make(tabs.Static, len(urls))
		for i, u := range urls {
			list[i] = model.Tab{URL: u}
		}
		return list, nil
	}
	return tabs.Open(tabs.Config{Provider: cfg.Provider, Path: cfg.Path, Endpoint: cfg.Endpoint})
}

// buildEngine wires the rules with whichever classifiers are available. A
// missing model directory leaves the engine on rules only.
func buildEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (*engine.Engine, func()) {
	opts := []engine.Option{engine.WithLogger(logger)}
	closeFn := func() {}

	modelPath := filepath.Join(cfg.Engine.ModelDir, artifacts.DefaultFiles[artifacts.Model])
	if _, err := os.Stat(modelPath); err != nil {
		logger.Info("no local model, local AI unavailable", "path", modelPath)
	} else {
		cls := classifier.New(artifacts.NewDir(cfg.Engine.ModelDir),
			classifier.WithLoader(classifier.ONNXLoader(cfg.Engine.ONNXLibrary)),
			classifier.WithSettleDelay(cfg.Engine.SettleDelay),
			classifier.WithLogger(logger),
		)
		if err := cls.Load(ctx); err != nil {
			logger.Warn("local AI unavailable, continuing with rules", "error", err)
		}
		opts = append(opts, engine.WithLocal(cls))
		closeFn = func() { cls.Close() }
	}

	switch {
	case cfg.Remote.Active():
		opts = append(opts, engine.WithRemote(remote.New(cfg.Remote.Endpoint, cfg.Remote.Token,
			remote.WithModel(cfg.Remote.Model),
			remote.WithRateLimit(cfg.Remote.RatePerSec, cfg.Remote.Burst),
			remote.WithHTTPOptions(httpclient.WithTimeout(cfg.Remote.Timeout)),
			remote.WithLogger(logger),
		)))
	case cfg.Remote.Enabled:
		logger.Debug("cloud AI off: no API token (TABGUARD_HF_TOKEN)")
	}

	return engine.New(opts...), closeFn
}

// buildOutput fans results out to every configured format.
func buildOutput(cfg config.Config, out io.Writer, r *render.Renderer, logger *slog.Logger) (output.Output, error) {
	verbosity, err := output.ParseVerbosity(cfg.Output.Verbosity)
	if err != nil {
		return nil, err
	}

	var outs []output.Output
	for _, format := range cfg.Output.Formats() {
		switch format {
		case "text":
			outs = append(outs, r)
		case "stdout":
			outs = append(outs, stdout.NewWriter(out, verbosity, cfg.Output.Pretty))
		case "file":
			fopts := []outfile.Option{outfile.WithMaxSize(cfg.Output.MaxSize)}
			if cfg.Output.MaxBackups > 0 {
				fopts = append(fopts, outfile.WithMaxBackups(cfg.Output.MaxBackups))
			}
			fo, err := outfile.New(cfg.Output.Path, verbosity, fopts...)
			if err != nil {
				multi.New(outs...).Close()
				return nil, err
			}
			outs = append(outs, fo)
		case "webhook":
			minRisk, err := model.ParseRiskLevel(cfg.Output.MinRisk)
			if err != nil {
				multi.New(outs...).Close()
				return nil, err
			}
			onErr := func(err error) { logger.Warn("webhook delivery failed", "error", err) }
			wh := webhook.New(cfg.Output.WebhookURL,
				webhook.WithVerbosity(verbosity),
				webhook.WithMinRisk(minRisk),
				webhook.WithOnError(onErr),
			)
			outs = append(outs, async.New(wh, async.WithOnError(onErr)))
		default:
			multi.New(outs...).Close()
			return nil, fmt.Errorf("unknown output format %q", format)
		}
	}
	return multi.New(outs...), nil
}
