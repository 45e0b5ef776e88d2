package output

import (
	"context"

	"github.com/crimson-sun/tabguard/internal/model"
)

// Output defines the interface for scan result destinations.
type Output interface {
	Write(ctx context.Context, result model.ScanResult) error
	Close() error
}
