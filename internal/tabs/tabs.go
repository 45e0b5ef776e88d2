package tabs

import (
	"context"

	"github.com/crimson-sun/tabguard/internal/model"
)

// Source enumerates the tabs to scan. An empty list is valid.
type Source interface {
	List(ctx context.Context) ([]model.Tab, error)
}

// Config holds provider-specific settings.
type Config struct {
	Provider string
	Path     string // file sources
	Endpoint string // network sources
	Extra    map[string]string
}

// Static is a fixed list of tabs.
type Static []model.Tab

// List returns a copy of the tabs.
func (s Static) List(context.Context) ([]model.Tab, error) {
	out := make([]model.Tab, len(s))
	copy(out, s)
	return out, nil
}
