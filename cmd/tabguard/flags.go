package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/crimson-sun/tabguard/internal/config"
)

// flags holds the command line. Only flags the user set override the
// loaded configuration.
type flags struct {
	fs *pflag.FlagSet

	configPath  string
	tabs        string
	tabsPath    string
	devtools    string
	modelDir    string
	onnxLibrary string
	local       bool
	remote      bool
	output      string
	outputPath  string
	pretty      bool
	verbosity   string
	webhook     string
	minRisk     string
	scanLogPath string
	logLevel    string

	history bool
	version bool
	urls    []string
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	fs := pflag.NewFlagSet("tabguard", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &flags{fs: fs}

	fs.StringVarP(&f.configPath, "config", "c", "", "Path to YAML configuration file")
	fs.StringVar(&f.tabs, "tabs", "", "Tab source: devtools or file")
	fs.StringVar(&f.tabsPath, "tabs-path", "", "Tab list for the file source (- for stdin); implies --tabs=file")
	fs.StringVar(&f.devtools, "devtools", "", "Chrome DevTools endpoint for the devtools source")
	fs.StringVar(&f.modelDir, "model-dir", "", "Directory holding model.onnx, scaler.json and config.json")
	fs.StringVar(&f.onnxLibrary, "onnx-library", "", "Path to the ONNX Runtime shared library")
	fs.BoolVar(&f.local, "local", true, "Use the local AI classifier")
	fs.BoolVar(&f.remote, "remote", true, "Use the cloud AI classifier (needs TABGUARD_HF_TOKEN)")
	fs.StringVarP(&f.output, "output", "o", "", "Comma-separated outputs: text, stdout, file, webhook")
	fs.StringVar(&f.outputPath, "output-path", "", "NDJSON file for the file output")
	fs.BoolVar(&f.pretty, "pretty", false, "Indent JSON on stdout")
	fs.StringVar(&f.verbosity, "verbosity", "", "JSON verbosity: minimal, standard, full")
	fs.StringVar(&f.webhook, "webhook", "", "Webhook URL for the webhook output")
	fs.StringVar(&f.minRisk, "min-risk", "", "Lowest risk sent to the webhook: safe, warning, danger")
	fs.StringVar(&f.scanLogPath, "scanlog", "", "Recent-scan database path (empty keeps it in memory)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.history, "history", false, "Show recent scans and exit")
	fs.BoolVarP(&f.version, "version", "v", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "TabGuard %s - phishing checks for open browser tabs\n\n", config.Version)
		fmt.Fprintf(stderr, "Usage: tabguard [flags] [URL...]\n\n")
		fmt.Fprintf(stderr, "URLs given as arguments are scanned instead of the tab source.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.urls = fs.Args()
	return f, nil
}

// apply overrides cfg with every flag set on the command line.
func (f *flags) apply(cfg *config.Config) {
	set := f.fs.Changed
	if set("tabs") {
		cfg.Tabs.Provider = f.tabs
	}
	if set("tabs-path") {
		cfg.Tabs.Path = f.tabsPath
		if !set("tabs") {
			cfg.Tabs.Provider = "file"
		}
	}
	if set("devtools") {
		cfg.Tabs.Endpoint = f.devtools
	}
	if set("model-dir") {
		cfg.Engine.ModelDir = f.modelDir
	}
	if set("onnx-library") {
		cfg.Engine.ONNXLibrary = f.onnxLibrary
	}
	if set("local") {
		cfg.Engine.LocalEnabled = f.local
	}
	if set("remote") {
		cfg.Remote.Enabled = f.remote
	}
	if set("output") {
		cfg.Output.Format = f.output
	}
	if set("output-path") {
		cfg.Output.Path = f.outputPath
	}
	if set("pretty") {
		cfg.Output.Pretty = f.pretty
	}
	if set("verbosity") {
		cfg.Output.Verbosity = f.verbosity
	}
	if set("webhook") {
		cfg.Output.WebhookURL = f.webhook
	}
	if set("min-risk") {
		cfg.Output.MinRisk = f.minRisk
	}
	if set("scanlog") {
		cfg.ScanLog.Path = f.scanLogPath
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
}
