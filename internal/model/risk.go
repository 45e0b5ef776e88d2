package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RiskLevel is the ordinal severity assigned to a scanned tab.
// The zero value is Safe.
type RiskLevel int

const (
	Safe RiskLevel = iota
	Warning
	Danger
)

func (r RiskLevel) String() string {
	switch r {
	case Safe:
		return "safe"
	case Warning:
		return "warning"
	case Danger:
		return "danger"
	default:
		return "unknown"
	}
}

// Escalate returns the more severe of r and other. Risk never decreases.
func (r RiskLevel) Escalate(other RiskLevel) RiskLevel {
	if other > r {
		return other
	}
	return r
}

// ParseRiskLevel converts "safe", "warning" or "danger" to a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return Safe, nil
	case "warning", "warn":
		return Warning, nil
	case "danger":
		return Danger, nil
	default:
		return Safe, fmt.Errorf("unknown risk level %q", s)
	}
}

func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	lvl, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*r = lvl
	return nil
}
