package model

// Fallback flags recorded when an enrichment provider degraded.
const (
	FallbackGeocode   = "geocode"
	FallbackTravel    = "travel"
	FallbackEmbedding = "embedding"
)

// Enrichment is the combined result of the three enrichment providers for
// one listing. Fallbacks lists which providers substituted their configured
// default; an empty list means the record is fully enriched.
type Enrichment struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	TravelInfo TravelInfo `json:"travel_info"`
	Embedding  []float32  `json:"embedding"`
	Fallbacks  []string   `json:"fallbacks,omitempty"`
}
