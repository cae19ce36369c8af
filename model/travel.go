package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/nyonlabs/showsync/helper"
)

// TravelInfo holds travel metrics from the configured origin to a venue.
// It is stored as JSONB; unknown keys survive the round trip in Extra so
// the column stays extensible without schema migration.
type TravelInfo struct {
	TravelTimeMinutes int                    `json:"travel_time_minutes"`
	DistanceMeters    float64                `json:"distance_meters"`
	Extra             map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object.
func (t TravelInfo) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"travel_time_minutes": t.TravelTimeMinutes,
		"distance_meters":     t.DistanceMeters,
	}
	for k, v := range t.Extra {
		if k == "travel_time_minutes" || k == "distance_meters" {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON pulls the known keys and keeps the rest in Extra.
func (t *TravelInfo) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["travel_time_minutes"].(float64); ok {
		t.TravelTimeMinutes = int(v)
	}
	if v, ok := raw["distance_meters"].(float64); ok {
		t.DistanceMeters = v
	}
	delete(raw, "travel_time_minutes")
	delete(raw, "distance_meters")
	if len(raw) > 0 {
		t.Extra = raw
	}
	return nil
}

// Value implements the driver.Valuer interface for database storage
func (t TravelInfo) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for database retrieval
func (t *TravelInfo) Scan(value interface{}) error {
	if value == nil {
		*t = TravelInfo{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, t)
}
