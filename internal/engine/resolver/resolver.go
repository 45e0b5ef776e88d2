// Package resolver decides the exact ordered input vector fed to the
// classifier: either an externally supplied feature order with matching
// normalization parameters, or the built-in fallback order with raw values.
package resolver

import (
	"errors"
	"fmt"
	"math"

	"github.com/crimson-sun/tabguard/internal/engine/features"
)

// ErrConfigMismatch reports that order or normalization config was present
// but could not be used as a pair.
var ErrConfigMismatch = errors.New("feature config mismatch")

// Order is the source of the feature ordering: Default or External.
type Order struct {
	names []string
}

// DefaultOrder selects the built-in fallback ordering.
func DefaultOrder() Order { return Order{} }

// ExternalOrder selects an externally supplied ordering. An empty list is
// treated as Default.
func ExternalOrder(names []string) Order {
	if len(names) == 0 {
		return Order{}
	}
	return Order{names: append([]string(nil), names...)}
}

// IsExternal reports whether the order came from external config.
func (o Order) IsExternal() bool { return o.names != nil }

// Len returns the number of positions the order defines.
func (o Order) Len() int {
	if o.names == nil {
		return features.Count
	}
	return len(o.names)
}

// Normalization is the source of scaling parameters: None or Params.
type Normalization struct {
	mean, scale []float64
	present     bool
}

// NoNormalization means raw values are used.
func NoNormalization() Normalization { return Normalization{} }

// Params carries per-position (mean, scale) statistics.
func Params(mean, scale []float64) Normalization {
	return Normalization{
		mean:    append([]float64(nil), mean...),
		scale:   append([]float64(nil), scale...),
		present: true,
	}
}

// IsPresent reports whether parameters were supplied.
func (n Normalization) IsPresent() bool { return n.present }

// Aux is a validated (order, normalization) pair. The zero value is the
// fallback: default order, unscaled.
type Aux struct {
	names       []string
	mean, scale []float64
}

// Scaled reports whether the external order and normalization are in use.
func (a Aux) Scaled() bool { return a.names != nil }

// Width returns the length of the vectors Resolve produces.
func (a Aux) Width() int {
	if a.names == nil {
		return features.Count
	}
	return len(a.names)
}

// NewAux validates order and norm as a single unit. When both are present
// and consistent it returns the scaled pair; otherwise it returns the
// fallback Aux. The error is non-nil, wrapping ErrConfigMismatch, only when
// some config was supplied but had to be abandoned.
func NewAux(order Order, norm Normalization) (Aux, error) {
	if !order.IsExternal() && !norm.IsPresent() {
		return Aux{}, nil
	}
	if !order.IsExternal() {
		return Aux{}, fmt.Errorf("%w: normalization params without feature order", ErrConfigMismatch)
	}
	if !norm.IsPresent() {
		return Aux{}, fmt.Errorf("%w: feature order without normalization params", ErrConfigMismatch)
	}
	n := len(order.names)
	if len(norm.mean) != n || len(norm.scale) != n {
		return Aux{}, fmt.Errorf("%w: order has %d names, mean has %d, scale has %d",
			ErrConfigMismatch, n, len(norm.mean), len(norm.scale))
	}
	for i := range n {
		m, s := norm.mean[i], norm.scale[i]
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return Aux{}, fmt.Errorf("%w: mean[%d] is not finite", ErrConfigMismatch, i)
		}
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return Aux{}, fmt.Errorf("%w: scale[%d]=%v is unusable", ErrConfigMismatch, i, s)
		}
	}
	return Aux{names: order.names, mean: norm.mean, scale: norm.scale}, nil
}

// Resolve returns the ordered input vector for v under aux.
func Resolve(v features.Vector, aux Aux) []float64 {
	if !aux.Scaled() {
		return v.Ordered()
	}
	out := make([]float64, len(aux.names))
	for i, name := range aux.names {
		out[i] = (v.Value(name) - aux.mean[i]) / aux.scale[i]
	}
	return out
}
