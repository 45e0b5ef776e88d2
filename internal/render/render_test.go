package render

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"

	"github.com/crimson-sun/tabguard/internal/model"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

func TestCardContainsIssues(t *testing.T) {
	res := model.ScanResult{
		Tab:  model.Tab{URL: "http://x.tk/", Title: "Login"},
		Risk: model.Danger,
		Issues: []model.Issue{
			{Kind: model.KindWarning, Message: "Insecure HTTP connection"},
			{Kind: model.KindDanger, Message: "URL contains @ symbol"},
		},
	}
	card := Card(res)
	for _, want := range []string{"DANGER", "Login", "http://x.tk/", "Insecure HTTP connection", "URL contains @ symbol", "🚨"} {
		if !strings.Contains(card, want) {
			t.Errorf("card missing %q:\n%s", want, card)
		}
	}
}

func TestCardFallsBackToURLTitle(t *testing.T) {
	card := Card(model.ScanResult{Tab: model.Tab{URL: "https://a.com/"}, Issues: []model.Issue{{Kind: model.KindClear, Message: model.NoIssuesMessage}}})
	if !strings.Contains(card, "SAFE https://a.com/") {
		t.Fatalf("card title should fall back to URL:\n%s", card)
	}
}

func TestWriteAndMode(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	if err := r.Mode("Rules + Local AI"); err != nil {
		t.Fatal(err)
	}
	if err := r.Write(context.Background(), model.ScanResult{Tab: model.Tab{URL: "https://a.com/"}, Risk: model.Warning}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Mode: Rules + Local AI") || !strings.Contains(out, "WARNING") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf).Summary(model.Summary{Safe: 3, Warning: 2, Danger: 1}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Summary", "Safe", "Danger", "3", "2", "1", "6"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRecent(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.Local)
	if err := New(&buf).Recent([]time.Time{ts}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "2026-03-01 12:30:00") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	New(&buf).Recent(nil)
	if !strings.Contains(buf.String(), "No recent scans") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Empty()
	if !strings.Contains(buf.String(), "No open tabs to scan") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
