package tabguard

import (
	"time"

	"github.com/crimson-sun/tabguard/internal/model"
)

// Tab is a URL to scan, with an optional page title.
type Tab struct {
	URL   string
	Title string
}

// Result is the verdict for one tab.
type Result struct {
	ID        string
	ScannedAt time.Time
	URL       string
	Title     string
	Domain    string // registrable domain, empty for internal or unparsable URLs
	Risk      string // "safe", "warning", "danger"
	Issues    []Issue
	Local     *LocalVerdict  // nil when the local classifier did not run
	Remote    *RemoteVerdict // nil when the remote classifier did not run
}

// Issue is one finding, in the order it was raised.
type Issue struct {
	Kind    string // "info", "warning", "danger", "local_ai", "cloud_ai", "clear"
	Message string
}

// LocalVerdict is the local classifier's opinion.
type LocalVerdict struct {
	IsPhishing bool
	Confidence float64 // phishing probability in [0,1]
	Score      int     // Confidence as a percentage
}

// RemoteVerdict is the remote classifier's top label.
type RemoteVerdict struct {
	Label string
	Score int // percentage
}

// Summary counts results per risk level.
type Summary struct {
	Safe    int
	Warning int
	Danger  int
}

func resultFromScan(r model.ScanResult) Result {
	out := Result{
		ID:        r.ID,
		ScannedAt: r.ScannedAt,
		URL:       r.Tab.URL,
		Title:     r.Tab.Title,
		Domain:    r.Domain,
		Risk:      r.Risk.String(),
		Issues:    make([]Issue, len(r.Issues)),
	}
	for i, is := range r.Issues {
		out.Issues[i] = Issue{Kind: string(is.Kind), Message: is.Message}
	}
	if r.Local != nil {
		out.Local = &LocalVerdict{
			IsPhishing: r.Local.IsPhishing,
			Confidence: r.Local.Confidence,
			Score:      r.Local.Score,
		}
	}
	if r.Remote != nil {
		out.Remote = &RemoteVerdict{Label: r.Remote.Label, Score: r.Remote.ScorePercent}
	}
	return out
}

// Summarize counts results per risk level.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Risk {
		case "safe":
			s.Safe++
		case "warning":
			s.Warning++
		default:
			s.Danger++
		}
	}
	return s
}
