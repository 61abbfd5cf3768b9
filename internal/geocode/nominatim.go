package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cellfinder/internal/geo"
	"cellfinder/internal/metrics"
)

// NominatimClient queries an OpenStreetMap Nominatim search endpoint.
type NominatimClient struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
}

// NewNominatimClient creates a client for baseURL. A nil httpClient uses http.DefaultClient.
// Nominatim's usage policy requires an identifying User-Agent.
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration, httpClient *http.Client) *NominatimClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NominatimClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		timeout:   timeout,
		client:    httpClient,
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the first search hit for query, or ErrNotFound.
func (n *NominatimClient) Geocode(ctx context.Context, query string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	metrics.GeocodeRequestsTotal.Inc()
	defer func() {
		metrics.GeocodeDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.GeocodeFailTotal.Inc()
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GeocodeFailTotal.Inc()
		return nil, fmt.Errorf("geocode request failed: HTTP %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		metrics.GeocodeFailTotal.Inc()
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}

	if len(places) == 0 {
		metrics.GeocodeNotFoundTotal.Inc()
		slog.Debug("Geocode returned no results", "query", query)
		return nil, ErrNotFound
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		metrics.GeocodeFailTotal.Inc()
		return nil, fmt.Errorf("invalid latitude %q in geocode response: %w", places[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		metrics.GeocodeFailTotal.Inc()
		return nil, fmt.Errorf("invalid longitude %q in geocode response: %w", places[0].Lon, err)
	}

	slog.Debug("Geocode resolved",
		"query", query,
		"lat", lat,
		"lng", lng,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Point:       geo.GeoPoint{Lat: lat, Lng: lng},
		DisplayName: places[0].DisplayName,
	}, nil
}
