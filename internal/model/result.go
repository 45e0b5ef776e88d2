package model

import "time"

// LocalVerdict is the local classifier's contribution to a scan.
type LocalVerdict struct {
	IsPhishing bool      `json:"is_phishing"`
	Confidence float64   `json:"confidence"`
	Risk       RiskLevel `json:"risk"`
	Score      int       `json:"score"`
}

// RemoteVerdict is the remote classifier's contribution to a scan.
type RemoteVerdict struct {
	Label        string `json:"label"`
	ScorePercent int    `json:"score_percent"`
}

// ScanResult is the per-tab verdict produced by the engine.
type ScanResult struct {
	ID        string         `json:"id"`
	ScannedAt time.Time      `json:"scanned_at"`
	Tab       Tab            `json:"tab"`
	Domain    string         `json:"domain,omitempty"` // registrable domain (eTLD+1)
	Risk      RiskLevel      `json:"risk"`
	Issues    []Issue        `json:"issues,omitempty"`
	Local     *LocalVerdict  `json:"local,omitempty"`
	Remote    *RemoteVerdict `json:"remote,omitempty"`
}

// Raise escalates the result's risk; it never lowers it.
func (r *ScanResult) Raise(level RiskLevel) {
	r.Risk = r.Risk.Escalate(level)
}

// AddIssue appends an issue. A lone "no issues" placeholder is replaced,
// since it no longer describes the result.
func (r *ScanResult) AddIssue(kind IssueKind, msg string) {
	if len(r.Issues) == 1 && r.Issues[0].Kind == KindClear {
		r.Issues = r.Issues[:0]
	}
	r.Issues = append(r.Issues, Issue{Kind: kind, Message: msg})
}

// Summary counts results per risk level.
type Summary struct {
	Safe    int `json:"safe"`
	Warning int `json:"warning"`
	Danger  int `json:"danger"`
}

// Add counts one result.
func (s *Summary) Add(r ScanResult) {
	switch r.Risk {
	case Safe:
		s.Safe++
	case Warning:
		s.Warning++
	default:
		s.Danger++
	}
}

// Total returns the number of counted results.
func (s Summary) Total() int {
	return s.Safe + s.Warning + s.Danger
}
