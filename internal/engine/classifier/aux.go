package classifier

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crimson-sun/tabguard/internal/artifacts"
	"github.com/crimson-sun/tabguard/internal/engine/resolver"
)

// scalerFile is the normalization artifact written by the training pipeline.
type scalerFile struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// configFile accepts both layouts the training pipeline has produced:
// {"features":{"names":[...]}} and {"feature_names":[...]}.
type configFile struct {
	Features *struct {
		Names []string `json:"names"`
	} `json:"features"`
	FeatureNames []string `json:"feature_names"`
}

// parseScaler decodes a scaler artifact into a Normalization.
func parseScaler(data []byte) (resolver.Normalization, error) {
	var s scalerFile
	if err := json.Unmarshal(data, &s); err != nil {
		return resolver.NoNormalization(), fmt.Errorf("scaler: %w", err)
	}
	if s.Mean == nil || s.Scale == nil {
		return resolver.NoNormalization(), errors.New("scaler: missing mean/scale arrays")
	}
	return resolver.Params(s.Mean, s.Scale), nil
}

// parseFeatureOrder decodes a config artifact into an Order.
func parseFeatureOrder(data []byte) (resolver.Order, error) {
	var c configFile
	if err := json.Unmarshal(data, &c); err != nil {
		return resolver.DefaultOrder(), fmt.Errorf("config: %w", err)
	}
	switch {
	case c.Features != nil && len(c.Features.Names) > 0:
		return resolver.ExternalOrder(c.Features.Names), nil
	case len(c.FeatureNames) > 0:
		return resolver.ExternalOrder(c.FeatureNames), nil
	default:
		return resolver.DefaultOrder(), errors.New("config: no feature names array found")
	}
}

// loadAux reads the optional scaler and config artifacts and validates them
// as one pair. Absent or malformed artifacts yield the fallback Aux; only
// problems with artifacts that exist are logged.
func (a *Adapter) loadAux() resolver.Aux {
	norm := resolver.NoNormalization()
	if data, err := a.store.Read(artifacts.Scaler); err == nil {
		if norm, err = parseScaler(data); err != nil {
			a.logger.Warn("could not load normalization params", "error", err)
		}
	} else if !errors.Is(err, artifacts.ErrNotFound) {
		a.logger.Warn("could not read scaler artifact", "error", err)
	}

	order := resolver.DefaultOrder()
	if data, err := a.store.Read(artifacts.Config); err == nil {
		if order, err = parseFeatureOrder(data); err != nil {
			a.logger.Warn("could not load feature order", "error", err)
		}
	} else if !errors.Is(err, artifacts.ErrNotFound) {
		a.logger.Warn("could not read config artifact", "error", err)
	}

	aux, err := resolver.NewAux(order, norm)
	if err != nil {
		a.logger.Warn("feature config unusable, using fallback order (unscaled)", "error", err)
	}
	return aux
}
