package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/nyonlabs/showsync/helper"
)

// SourceData represents the JSONB column holding the raw schedule and any
// other semi-structured source attributes (reviews, opening hours, ...).
type SourceData map[string]interface{}

// NewSourceData wraps a schedule in a fresh SourceData map.
func NewSourceData(schedule []ItemSchedule) SourceData {
	return SourceData{"schedule": schedule}
}

// Schedule decodes the schedule entry back into typed form.
// Returns an empty slice when no schedule is present.
func (s SourceData) Schedule() ([]ItemSchedule, error) {
	raw, ok := s["schedule"]
	if !ok || raw == nil {
		return []ItemSchedule{}, nil
	}

	// The value is either still typed (freshly built) or a decoded JSON tree
	// (read back from the database).
	if typed, ok := raw.([]ItemSchedule); ok {
		return typed, nil
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, helper.NewError("marshal schedule", err)
	}
	var schedule []ItemSchedule
	if err := json.Unmarshal(b, &schedule); err != nil {
		return nil, helper.NewError("unmarshal schedule", err)
	}
	return schedule, nil
}

// Titles returns the distinct item titles of the stored schedule.
func (s SourceData) Titles() ([]string, error) {
	schedule, err := s.Schedule()
	if err != nil {
		return nil, err
	}
	listing := Listing{Schedule: schedule}
	return listing.Titles(), nil
}

// Value implements the driver.Valuer interface for database storage
func (s SourceData) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for database retrieval
func (s *SourceData) Scan(value interface{}) error {
	if value == nil {
		*s = SourceData{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, s)
}
