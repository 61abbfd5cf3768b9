// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var (
	NearestRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellfinder_nearest_requests_total",
		Help: "Nearest-cell lookups by outcome",
	}, []string{"outcome"})
	NearestDistanceKm = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cellfinder_nearest_distance_km",
		Help:    "Distance between the geocoded address and the reported cell",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 25, 50},
	})
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cellfinder_geocode_requests_total",
		Help: "Total geocoding provider requests",
	})
	GeocodeFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cellfinder_geocode_fail_total",
		Help: "Geocoding provider requests that errored",
	})
	GeocodeNotFoundTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cellfinder_geocode_not_found_total",
		Help: "Geocoding provider requests with no match",
	})
	GeocodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cellfinder_geocode_duration_ms",
		Help:    "Geocoding provider call duration in milliseconds",
		Buckets: durationBuckets,
	})
	GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cellfinder_geocode_cache_hits_total",
		Help: "Geocoding lookups served from cache",
	})
	GeocodeCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cellfinder_geocode_cache_misses_total",
		Help: "Geocoding lookups not found in cache",
	})
	AdminLoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellfinder_admin_logins_total",
		Help: "Admin login attempts by result",
	}, []string{"result"})
	AdminRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cellfinder_admin_rejected_total",
		Help: "Admin requests rejected for a missing or invalid token",
	})
	CellMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellfinder_cell_mutations_total",
		Help: "Cell create/update/delete operations",
	}, []string{"op"})
	CellEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellfinder_cell_events_total",
		Help: "Cell change events by delivery result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		NearestRequestsTotal,
		NearestDistanceKm,
		GeocodeRequestsTotal,
		GeocodeFailTotal,
		GeocodeNotFoundTotal,
		GeocodeDurationMs,
		GeocodeCacheHitsTotal,
		GeocodeCacheMissesTotal,
		AdminLoginsTotal,
		AdminRejectedTotal,
		CellMutationsTotal,
		CellEventsTotal,
	)
}

// Handler exposes the registered collectors.
func Handler() http.Handler { return promhttp.Handler() }
