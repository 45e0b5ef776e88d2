package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is a labeled URL for rule validation.
type CorpusEntry struct {
	URL            string   `json:"url"`
	ExpectedRisk   string   `json:"expected_risk"`
	ExpectedIssues []string `json:"expected_issues"` // empty: message not pinned
	Unscannable    bool     `json:"unscannable,omitempty"`
	Description    string   `json:"description"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}
