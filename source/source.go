// Package source retrieves raw venue listings from an upstream site and
// normalizes them into neutral schedule records. Failures are per venue
// card: one malformed card is skipped and logged, it never aborts the rest
// of the locality.
package source

import (
	"context"
	"errors"

	"github.com/nyonlabs/showsync/model"
)

// ErrSourceUnavailable is returned when the upstream cannot be reached or
// answers with a non-success status.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrSourceFormat is returned when the expected structural markers are
// absent from the upstream document, meaning its shape changed.
var ErrSourceFormat = errors.New("source format changed")

// Adapter produces normalized listings for a locality.
type Adapter interface {
	Fetch(ctx context.Context, locality string) ([]model.Listing, error)
}
