// Package devtools lists the open pages of a Chromium browser started with
// --remote-debugging-port, via its /json/list endpoint.
package devtools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crimson-sun/tabguard/internal/httpclient"
	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/tabs"
)

// DefaultEndpoint is Chrome's default remote debugging address.
const DefaultEndpoint = "http://127.0.0.1:9222"

func init() {
	tabs.Register("devtools", func(cfg tabs.Config) (tabs.Source, error) {
		return New(cfg.Endpoint), nil
	})
}

// target is one entry of /json/list.
type target struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Source queries a DevTools endpoint.
type Source struct {
	client *httpclient.Client
}

// New creates a Source for endpoint; empty means DefaultEndpoint.
func New(endpoint string, opts ...httpclient.Option) *Source {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	base := []httpclient.Option{httpclient.WithTimeout(5 * time.Second), httpclient.WithMaxRetries(0)}
	return &Source{
		client: httpclient.New(strings.TrimRight(endpoint, "/"), "", append(base, opts...)...),
	}
}

// List returns the browser's page targets in the order reported.
func (s *Source) List(ctx context.Context) ([]model.Tab, error) {
	var targets []target
	if err := s.client.GetJSON(ctx, "/json/list", nil, &targets); err != nil {
		return nil, fmt.Errorf("devtools source: %w", err)
	}
	out := make([]model.Tab, 0, len(targets))
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		out = append(out, model.Tab{URL: t.URL, Title: t.Title})
	}
	return out, nil
}
