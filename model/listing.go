package model

import "fmt"

// Identity is the natural key of a venue, unique across both stores.
type Identity struct {
	Name     string `json:"name"`
	Locality string `json:"locality"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s (%s)", i.Name, i.Locality)
}

// ItemSchedule represents one item shown at a venue with its showtimes.
// Genre is optional; most sources do not expose it.
type ItemSchedule struct {
	Title     string   `json:"title"`
	Genre     string   `json:"genre,omitempty"`
	Showtimes []string `json:"showtimes"`
}

// Listing is the normalized output of a source adapter for one venue.
// It is transient and only exists within one ingestion run.
type Listing struct {
	Locality string         `json:"locality"`
	Name     string         `json:"name"`
	Address  string         `json:"address"`
	Schedule []ItemSchedule `json:"schedule"`
}

// Identity returns the natural key of the listing.
func (l *Listing) Identity() Identity {
	return Identity{Name: l.Name, Locality: l.Locality}
}

// Titles returns the distinct item titles in source order.
func (l *Listing) Titles() []string {
	seen := map[string]bool{}
	var titles []string
	for _, item := range l.Schedule {
		if item.Title == "" || seen[item.Title] {
			continue
		}
		seen[item.Title] = true
		titles = append(titles, item.Title)
	}
	return titles
}
