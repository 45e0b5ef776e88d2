package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/output"
)

// Multi fans out results to several outputs in order. A failing output
// does not stop delivery to the rest.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi. Nil outputs are skipped.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len returns the number of wrapped outputs.
func (m *Multi) Len() int { return len(m.outputs) }

// Write delivers the result to every wrapped output and joins the errors.
func (m *Multi) Write(ctx context.Context, result model.ScanResult) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every wrapped output and joins the errors.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
