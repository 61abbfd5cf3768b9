// Package geocode turns free-text addresses into coordinates.
package geocode

import (
	"context"
	"errors"

	"cellfinder/internal/geo"
)

// ErrNotFound is returned when the provider has no match for the query.
var ErrNotFound = errors.New("address not found")

// Result is a geocoded address.
type Result struct {
	Point       geo.GeoPoint `json:"point"`
	DisplayName string       `json:"displayName"`
}

// Geocoder resolves a free-text query to a single best match.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Func adapts a plain function to the Geocoder interface.
type Func func(ctx context.Context, query string) (*Result, error)

// Geocode calls f.
func (f Func) Geocode(ctx context.Context, query string) (*Result, error) {
	return f(ctx, query)
}
