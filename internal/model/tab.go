package model

// Tab is the intermediate type produced by tab sources and consumed by the engine.
type Tab struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}
