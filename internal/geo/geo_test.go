package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine_SamePointIsZero(t *testing.T) {
	points := []GeoPoint{
		{Lat: 0, Lng: 0},
		{Lat: -22.99369, Lng: -44.2405},
		{Lat: 89.9, Lng: 179.9},
		{Lat: -90, Lng: -180},
	}

	for _, p := range points {
		assert.Equal(t, 0.0, Haversine(p, p), "point %+v", p)
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	a := GeoPoint{Lat: -22.9900, Lng: -44.2350}
	b := GeoPoint{Lat: -23.0057347, Lng: -44.3157591}

	assert.Equal(t, Haversine(a, b), Haversine(b, a))
}

func TestHaversine_OneDegreeOfLongitudeAtEquator(t *testing.T) {
	d := Haversine(GeoPoint{Lat: 0, Lng: 0}, GeoPoint{Lat: 0, Lng: 1})

	assert.InDelta(t, 111.195, d, 0.001)
}

func TestHaversine_AntipodalIsHalfCircumference(t *testing.T) {
	a := GeoPoint{Lat: -15.469046575368495, Lng: -35.61660609430015}
	b := GeoPoint{Lat: 15.469046575368495, Lng: 144.38339390569985}

	d := Haversine(a, b)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 0.001)

	for lat := -89.5; lat < 90; lat += 0.37 {
		for lng := -180.0; lng < 0; lng += 7.13 {
			d := Haversine(GeoPoint{Lat: lat, Lng: lng}, GeoPoint{Lat: -lat, Lng: lng + 180})
			require.False(t, math.IsNaN(d), "lat=%v lng=%v", lat, lng)
		}
	}
}

func TestNearestCandidate_AntipodeDoesNotBeatOrigin(t *testing.T) {
	origin := GeoPoint{Lat: -15.469046575368495, Lng: -35.61660609430015}
	candidates := []Candidate{
		{ID: "antipode", Point: GeoPoint{Lat: 15.469046575368495, Lng: 144.38339390569985}},
		{ID: "here", Point: origin},
	}

	winner, dist, err := NearestCandidate(origin, candidates)
	require.NoError(t, err)
	assert.Equal(t, "here", winner.ID)
	assert.Equal(t, 0.0, dist)
}

func TestNearestCandidate_AngraScenario(t *testing.T) {
	origin := GeoPoint{Lat: -22.9900, Lng: -44.2350}
	candidates := []Candidate{
		{ID: "A", Point: GeoPoint{Lat: -22.99369, Lng: -44.2405}},
		{ID: "B", Point: GeoPoint{Lat: -23.0057347, Lng: -44.3157591}},
	}

	best, dist, err := NearestCandidate(origin, candidates)
	require.NoError(t, err)

	assert.Equal(t, "A", best.ID)
	assert.InDelta(t, 0.71, RoundKm(dist), 0.02)
	assert.Equal(t, 0.70, RoundKm(dist))
	assert.InDelta(t, 8.4, Haversine(origin, candidates[1].Point), 0.1)
}

func TestNearestCandidate_FirstWinsOnTie(t *testing.T) {
	origin := GeoPoint{Lat: -22.9900, Lng: -44.2350}
	same := GeoPoint{Lat: -22.9918498, Lng: -44.2340687}
	candidates := []Candidate{
		{ID: "far", Point: GeoPoint{Lat: -23.0057347, Lng: -44.3157591}},
		{ID: "first", Point: same},
		{ID: "second", Point: same},
	}

	best, _, err := NearestCandidate(origin, candidates)
	require.NoError(t, err)
	assert.Equal(t, "first", best.ID)

	// Swapping the tied pair must swap the winner.
	candidates[1], candidates[2] = candidates[2], candidates[1]
	best, _, err = NearestCandidate(origin, candidates)
	require.NoError(t, err)
	assert.Equal(t, "second", best.ID)
}

func TestNearestCandidate_Empty(t *testing.T) {
	_, _, err := NearestCandidate(GeoPoint{}, nil)

	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestNearestCandidate_NoCloserCandidateExists(t *testing.T) {
	origin := GeoPoint{Lat: -22.98, Lng: -44.24}
	candidates := []Candidate{
		{ID: "1", Point: GeoPoint{Lat: -22.99369, Lng: -44.2405}},
		{ID: "2", Point: GeoPoint{Lat: -22.98509, Lng: -44.23265}},
		{ID: "3", Point: GeoPoint{Lat: -22.9908, Lng: -44.23538}},
		{ID: "4", Point: GeoPoint{Lat: -22.9918498, Lng: -44.2340687}},
		{ID: "5", Point: GeoPoint{Lat: -23.0057347, Lng: -44.3157591}},
		{ID: "6", Point: GeoPoint{Lat: -22.9884737, Lng: -44.2347172}},
	}

	best, dist, err := NearestCandidate(origin, candidates)
	require.NoError(t, err)

	found := false
	for _, c := range candidates {
		if c.ID == best.ID {
			found = true
		}
		assert.GreaterOrEqual(t, Haversine(origin, c.Point), dist, "candidate %s is closer than winner", c.ID)
	}
	assert.True(t, found, "winner must come from the input")

	again, againDist, err := NearestCandidate(origin, candidates)
	require.NoError(t, err)
	assert.Equal(t, best, again)
	assert.Equal(t, dist, againDist)
}

func TestNearest_GenericPayload(t *testing.T) {
	type place struct {
		name string
		at   GeoPoint
	}
	places := []place{
		{name: "north", at: GeoPoint{Lat: 10, Lng: 0}},
		{name: "south", at: GeoPoint{Lat: -1, Lng: 0}},
	}

	best, _, err := Nearest(GeoPoint{}, places, func(p place) GeoPoint { return p.at })
	require.NoError(t, err)
	assert.Equal(t, "south", best.name)
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 0.7, RoundKm(0.6966422459346822))
	assert.Equal(t, 8.45, RoundKm(8.449397646688794))
	assert.Equal(t, 0.0, RoundKm(0.004))
}

func TestEmbedBounds(t *testing.T) {
	b := EmbedBounds(GeoPoint{Lat: -22.99, Lng: -44.24}, 0.01)

	assert.InDelta(t, -44.25, b.Left(), 1e-9)
	assert.InDelta(t, -44.23, b.Right(), 1e-9)
	assert.InDelta(t, -23.00, b.Bottom(), 1e-9)
	assert.InDelta(t, -22.98, b.Top(), 1e-9)
}
