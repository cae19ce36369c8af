package model

import "time"

// IngestConfig holds the tunables of one ingestion pipeline.
type IngestConfig struct {
	// EmbeddingDim is the fixed dimensionality of all embeddings. It must
	// match the vector column of the relational store.
	EmbeddingDim int `json:"embedding_dim"`

	// Workers bounds how many records are reconciled concurrently.
	Workers int `json:"workers"`

	// Per-provider concurrency ceilings. External providers throttle, so
	// each enrichment service enforces its own bound independently.
	GeocodeWorkers int `json:"geocode_workers"`
	TravelWorkers  int `json:"travel_workers"`
	EmbedWorkers   int `json:"embed_workers"`

	// ProviderTimeout applies to every outbound enrichment call. A timed
	// out call is treated as a provider failure and falls back.
	ProviderTimeout time.Duration `json:"provider_timeout"`

	// SourceTimeout applies to the source fetch per locality.
	SourceTimeout time.Duration `json:"source_timeout"`

	// StoreTimeout applies to each store write. A write keeps its timeout
	// even when the run is cancelled, so no upsert is aborted midway.
	StoreTimeout time.Duration `json:"store_timeout"`

	// TravelOrigin is the fixed origin for travel time estimation.
	TravelOrigin string `json:"travel_origin"`

	// GeocodeSuffix is appended to the address before geocoding to
	// disambiguate locality names across countries. Empty disables it.
	GeocodeSuffix string `json:"geocode_suffix"`

	// Fallback values substituted when a provider is unavailable.
	FallbackLatitude      float64 `json:"fallback_latitude"`
	FallbackLongitude     float64 `json:"fallback_longitude"`
	FallbackTravelMinutes int     `json:"fallback_travel_minutes"`
	FallbackEmbeddingFill float32 `json:"fallback_embedding_fill"`
}

// DefaultIngestConfig returns the default pipeline configuration.
// The fallback coordinate is central Geneva, matching the locality focus of
// the default source.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		EmbeddingDim:          768,
		Workers:               4,
		GeocodeWorkers:        4,
		TravelWorkers:         4,
		EmbedWorkers:          4,
		ProviderTimeout:       10 * time.Second,
		SourceTimeout:         30 * time.Second,
		StoreTimeout:          15 * time.Second,
		TravelOrigin:          "Nyon, Switzerland",
		GeocodeSuffix:         "Switzerland",
		FallbackLatitude:      46.2044,
		FallbackLongitude:     6.1432,
		FallbackTravelMinutes: 25,
		FallbackEmbeddingFill: 0.1,
	}
}

// FallbackEmbedding builds the configured default vector.
func (c IngestConfig) FallbackEmbedding() []float32 {
	embedding := make([]float32, c.EmbeddingDim)
	for i := range embedding {
		embedding[i] = c.FallbackEmbeddingFill
	}
	return embedding
}
