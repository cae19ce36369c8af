// Package enrich augments raw listings with derived attributes from
// external providers. Providers may fail; the Enricher wrapper converts
// every failure into a configured fallback value plus a degradation flag,
// so enrichment never blocks or fails an ingestion run.
package enrich

import (
	"context"

	"github.com/nyonlabs/showsync/model"
)

// Geocoder resolves a free-text address into coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (lat float64, lng float64, err error)
}

// TravelEstimator estimates travel metrics from the configured origin to
// the given coordinates.
type TravelEstimator interface {
	Estimate(ctx context.Context, lat float64, lng float64) (model.TravelInfo, error)
}

// Embedder generates a fixed-length vector for a descriptive text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
