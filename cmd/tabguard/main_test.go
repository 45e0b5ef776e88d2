package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"

	"github.com/crimson-sun/tabguard/internal/config"
	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/pipeline"
	"github.com/crimson-sun/tabguard/internal/render"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

// isolate points the scan log and model directory at temp paths and drops
// any token from the environment.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TABGUARD_SCANLOG_PATH", filepath.Join(dir, "scans.db"))
	t.Setenv("TABGUARD_MODEL_DIR", filepath.Join(dir, "models"))
	t.Setenv("TABGUARD_HF_TOKEN", "")
	t.Setenv("TABGUARD_OUTPUT", "")
	return dir
}

func TestParseFlags_OnlyChangedOverride(t *testing.T) {
	f, err := parseFlags([]string{"--tabs-path", "tabs.txt", "--no-such"}, io.Discard)
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}

	f, err = parseFlags([]string{"--tabs-path", "tabs.txt", "--local=false", "-o", "stdout", "https://a.com/"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg := config.Default()
	cfg.Remote.Enabled = false
	f.apply(&cfg)

	if cfg.Tabs.Provider != "file" || cfg.Tabs.Path != "tabs.txt" {
		t.Fatalf("Tabs = %+v", cfg.Tabs)
	}
	if cfg.Engine.LocalEnabled {
		t.Fatal("--local=false not applied")
	}
	if cfg.Remote.Enabled {
		t.Fatal("unset --remote must not override the config")
	}
	if cfg.Output.Format != "stdout" || cfg.Output.Verbosity != "standard" {
		t.Fatalf("Output = %+v", cfg.Output)
	}
	if len(f.urls) != 1 || f.urls[0] != "https://a.com/" {
		t.Fatalf("urls = %v", f.urls)
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), []string{"--version"}, &out, io.Discard); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out.String(), config.Version) {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRun_Help(t *testing.T) {
	var errOut bytes.Buffer
	if code := run(context.Background(), []string{"--help"}, io.Discard, &errOut); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(errOut.String(), "Usage: tabguard") {
		t.Fatalf("usage = %q", errOut.String())
	}
}

func TestRun_BadFlag(t *testing.T) {
	if code := run(context.Background(), []string{"--bogus"}, io.Discard, io.Discard); code != 2 {
		t.Fatalf("exit code %d, want 2", code)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	isolate(t)
	var errOut bytes.Buffer
	code := run(context.Background(), []string{"--verbosity", "loud", "https://a.com/"}, io.Discard, &errOut)
	if code != 1 || !strings.Contains(errOut.String(), "verbosity") {
		t.Fatalf("code=%d stderr=%q", code, errOut.String())
	}
}

func TestRun_TextURLs(t *testing.T) {
	isolate(t)
	var out bytes.Buffer
	code := run(context.Background(), []string{
		"--log-level", "error",
		"https://example.com/",
		"http://login.paypal-secure-verify.tk/account@evil.com",
	}, &out, io.Discard)
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}

	text := out.String()
	for _, want := range []string{
		"Mode: Rules",
		"SAFE https://example.com/",
		"No security issues detected",
		"DANGER",
		"http://login.paypal-secure-verify.tk/account@evil.com",
		"Insecure HTTP connection",
		"Summary",
		"Recent scans",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Cloud AI") {
		t.Errorf("cloud AI must be off without a token:\n%s", text)
	}
}

func TestRun_StdoutNDJSONFromFile(t *testing.T) {
	dir := isolate(t)
	tabsPath := filepath.Join(dir, "tabs.txt")
	body := "# exported tabs\nhttps://example.com/\tExample\nchrome://settings\tSettings\n"
	if err := os.WriteFile(tabsPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	code := run(context.Background(), []string{"--tabs-path", tabsPath, "-o", "stdout", "--log-level", "error"}, &out, io.Discard)
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 NDJSON lines, got %d:\n%s", len(lines), out.String())
	}
	var first struct {
		Tab  struct{ URL, Title string }
		Risk string
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first.Tab.Title != "Example" || first.Risk != "safe" {
		t.Fatalf("first = %+v", first)
	}
}

func TestRun_EmptyTabList(t *testing.T) {
	dir := isolate(t)
	tabsPath := filepath.Join(dir, "tabs.txt")
	if err := os.WriteFile(tabsPath, []byte("\n# nothing open\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if code := run(context.Background(), []string{"--tabs-path", tabsPath, "--log-level", "error"}, &out, io.Discard); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out.String(), "No open tabs to scan") {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	if code := run(context.Background(), []string{"--history"}, &out, io.Discard); code != 0 {
		t.Fatalf("history exit code %d", code)
	}
	if !strings.Contains(out.String(), "No recent scans") {
		t.Fatalf("an empty scan must not be recorded:\n%s", out.String())
	}
}

var timestampRE = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)

func TestRun_HistoryAfterScans(t *testing.T) {
	isolate(t)
	for i := 0; i < 3; i++ {
		if code := run(context.Background(), []string{"-o", "stdout", "--log-level", "error", "https://a.com/"}, io.Discard, io.Discard); code != 0 {
			t.Fatalf("scan %d exit code %d", i, code)
		}
	}

	var out bytes.Buffer
	if code := run(context.Background(), []string{"--history"}, &out, io.Discard); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	section := out.String()
	if strings.Contains(section, "No recent scans") {
		t.Fatalf("history empty after scans:\n%s", section)
	}
	if n := len(timestampRE.FindAllString(section, -1)); n != 3 {
		t.Fatalf("expected 3 timestamps, got %d:\n%s", n, section)
	}
}

func TestRun_FileOutput(t *testing.T) {
	dir := isolate(t)
	outPath := filepath.Join(dir, "results.jsonl")
	code := run(context.Background(), []string{
		"-o", "file", "--output-path", outPath, "--verbosity", "minimal", "--log-level", "error",
		"http://192.168.0.1/login",
	}, io.Discard, io.Discard)
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var res map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &res); err != nil {
		t.Fatalf("invalid NDJSON: %v\n%s", err, data)
	}
	if res["risk"] != "danger" {
		t.Fatalf("risk = %v", res["risk"])
	}
	if _, ok := res["issues"]; ok {
		t.Fatalf("minimal verbosity must drop issues: %s", data)
	}
}

var errClosedPipe = errors.New("closed pipe")

// failingWriter accepts okWrites writes and fails every one after that.
type failingWriter struct {
	okWrites int
	writes   int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.okWrites {
		return 0, errClosedPipe
	}
	return len(p), nil
}

func TestRenderReport_WriteErrors(t *testing.T) {
	full := pipeline.Report{
		Results: []model.ScanResult{{Risk: model.Safe}},
		Summary: model.Summary{Safe: 1},
		Recent:  []time.Time{time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	tests := []struct {
		name     string
		rep      pipeline.Report
		okWrites int
		wantErr  bool
	}{
		{"empty notice fails", pipeline.Report{}, 0, true},
		{"summary fails", full, 0, true},
		{"recent fails", full, 1, true},
		{"all written", full, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := renderReport(render.New(&failingWriter{okWrites: tt.okWrites}), tt.rep)
			if tt.wantErr && !errors.Is(err, errClosedPipe) {
				t.Fatalf("err = %v, want %v", err, errClosedPipe)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRun_RenderFailureExitsNonZero(t *testing.T) {
	dir := isolate(t)
	tabsPath := filepath.Join(dir, "tabs.txt")
	if err := os.WriteFile(tabsPath, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		okWrites int
	}{
		{"mode line", 0},
		{"empty notice", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errOut bytes.Buffer
			code := run(context.Background(), []string{"--tabs-path", tabsPath, "--log-level", "error"},
				&failingWriter{okWrites: tt.okWrites}, &errOut)
			if code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if !strings.Contains(errOut.String(), "render failed") {
				t.Fatalf("stderr = %q, want render failure logged", errOut.String())
			}
		})
	}
}
