package output

import (
	"fmt"
	"strings"

	"github.com/crimson-sun/tabguard/internal/model"
)

// Verbosity controls how much of a result is emitted.
type Verbosity int

const (
	// Minimal keeps the verdict only: id, time, URL, domain, risk.
	Minimal Verbosity = iota
	// Standard adds the tab title and the issue list.
	Standard
	// Full adds the raw classifier verdicts.
	Full
)

func (v Verbosity) String() string {
	switch v {
	case Minimal:
		return "minimal"
	case Full:
		return "full"
	default:
		return "standard"
	}
}

// ParseVerbosity converts "minimal", "standard" or "full" to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return Minimal, nil
	case "", "standard":
		return Standard, nil
	case "full":
		return Full, nil
	}
	return Standard, fmt.Errorf("unknown verbosity %q", s)
}

// FormatResult returns a copy of the result with fields stripped according to verbosity.
func FormatResult(r model.ScanResult, verbosity Verbosity) model.ScanResult {
	if verbosity < Full {
		r.Local = nil
		r.Remote = nil
	}
	if verbosity == Minimal {
		r.Tab.Title = ""
		r.Issues = nil
	}
	return r
}
