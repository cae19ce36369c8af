package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Venue represents the canonical persisted record for one venue.
// It is rebuilt from a Listing plus enrichment results on every run and
// upserted by (name, locality); it is never read back and mutated in place.
type Venue struct {
	ID         int        `json:"id"`
	RID        uuid.UUID  `json:"rid"`
	Name       string     `json:"name"`
	Locality   string     `json:"locality"`
	Address    string     `json:"address"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	TravelInfo TravelInfo `json:"travel_info"`
	SourceData SourceData `json:"source_data"`
	Embedding  []float32  `json:"embedding,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Identity returns the natural key of the venue.
func (v *Venue) Identity() Identity {
	return Identity{Name: v.Name, Locality: v.Locality}
}

// SummaryText builds the descriptive text used as embedding input.
// The concatenation is deterministic so identical inputs always produce
// identical text (and therefore identical embeddings).
func SummaryText(name, locality, address string, titles []string) string {
	return fmt.Sprintf("%s, located in %s, address: %s. Offers movies: %s",
		name, locality, address, strings.Join(titles, ", "))
}
