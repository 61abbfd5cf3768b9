// Package geo implements the great-circle distance math used to resolve the
// closest cell to a geocoded address.
package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// ErrNoCandidates is returned by Nearest when the candidate list is empty.
var ErrNoCandidates = errors.New("no candidates to compare")

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Candidate is a stored location that can win a nearest lookup.
type Candidate struct {
	ID    string
	Point GeoPoint
}

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b GeoPoint) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*sinLng*sinLng
	// Rounding can push h just past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Nearest scans candidates in order and returns the one closest to origin
// together with its unrounded distance in kilometers.
//
// A candidate only replaces the current best when it is strictly closer, so on
// exact ties the earliest candidate wins.
func Nearest[T any](origin GeoPoint, candidates []T, point func(T) GeoPoint) (T, float64, error) {
	var best T
	if len(candidates) == 0 {
		return best, 0, ErrNoCandidates
	}

	bestDist := math.Inf(1)
	for i, c := range candidates {
		d := Haversine(origin, point(c))
		if i == 0 || d < bestDist {
			best = c
			bestDist = d
		}
	}

	return best, bestDist, nil
}

// NearestCandidate is Nearest specialised for Candidate values.
func NearestCandidate(origin GeoPoint, candidates []Candidate) (Candidate, float64, error) {
	return Nearest(origin, candidates, func(c Candidate) GeoPoint { return c.Point })
}

// RoundKm rounds a distance to two decimal places for display.
func RoundKm(d float64) float64 {
	return math.Round(d*100) / 100
}

// EmbedBounds returns the box around p padded by pad degrees on every side.
func EmbedBounds(p GeoPoint, pad float64) orb.Bound {
	return orb.Point{p.Lng, p.Lat}.Bound().Pad(pad)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
