// Package render draws scan results for a terminal: one card per tab, a
// summary table, the active-engine line and the recent-scan list.
package render

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/crimson-sun/tabguard/internal/model"
)

// TimeLayout formats recent-scan timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Renderer writes human-readable output to w. It also satisfies
// output.Output so the pipeline can stream cards as tabs are scanned.
type Renderer struct {
	mu sync.Mutex
	w  io.Writer
}

// New creates a Renderer writing to w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func riskStyle(r model.RiskLevel) *pterm.Style {
	switch r {
	case model.Danger:
		return pterm.NewStyle(pterm.FgRed, pterm.Bold)
	case model.Warning:
		return pterm.NewStyle(pterm.FgYellow, pterm.Bold)
	default:
		return pterm.NewStyle(pterm.FgGreen)
	}
}

func riskBadge(r model.RiskLevel) string {
	label := map[model.RiskLevel]string{
		model.Safe:    "SAFE",
		model.Warning: "WARNING",
		model.Danger:  "DANGER",
	}[r]
	return riskStyle(r).Sprint(label)
}

// Card returns the rendered card for one result.
func Card(res model.ScanResult) string {
	title := res.Tab.Title
	if title == "" {
		title = res.Tab.URL
	}
	body := pterm.Gray(res.Tab.URL)
	for _, is := range res.Issues {
		body += "\n" + is.Kind.Icon() + " " + is.Message
	}
	return pterm.DefaultBox.
		WithTitle(riskBadge(res.Risk) + " " + title).
		WithTitleTopLeft().
		WithBoxStyle(riskStyle(res.Risk)).
		Sprint(body)
}

// Write prints the card for res.
func (r *Renderer) Write(_ context.Context, res model.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintln(r.w, Card(res))
	return err
}

// Close is a no-op.
func (r *Renderer) Close() error { return nil }

// Mode prints which engines are active, e.g. "Rules + Local AI".
func (r *Renderer) Mode(mode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintln(r.w, pterm.Cyan("Mode: ")+mode)
	return err
}

// Empty prints the message shown when there are no tabs.
func (r *Renderer) Empty() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintln(r.w, pterm.Gray("No open tabs to scan"))
	return err
}

// Summary prints per-level counts.
func (r *Renderer) Summary(s model.Summary) error {
	table, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithData(pterm.TableData{
			{"Safe", "Warning", "Danger", "Total"},
			{
				strconv.Itoa(s.Safe),
				strconv.Itoa(s.Warning),
				strconv.Itoa(s.Danger),
				strconv.Itoa(s.Total()),
			},
		}).
		Srender()
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = fmt.Fprintln(r.w, pterm.DefaultSection.Sprint("Summary")+table)
	return err
}

// Recent prints the recent-scan timestamps, most recent first.
func (r *Renderer) Recent(recent []time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := pterm.DefaultSection.Sprint("Recent scans")
	if len(recent) == 0 {
		out += pterm.Gray("No recent scans") + "\n"
	}
	for _, ts := range recent {
		out += "  " + ts.Local().Format(TimeLayout) + "\n"
	}
	_, err := io.WriteString(r.w, out)
	return err
}
