package geocode

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cellfinder/internal/cache"
	"cellfinder/internal/metrics"
)

// CachedGeocoder remembers provider answers, including misses, in a cache.Store.
// Store failures never fail a lookup; the provider is asked instead.
type CachedGeocoder struct {
	next    Geocoder
	store   cache.Store
	hitTTL  time.Duration
	missTTL time.Duration
}

// NewCachedGeocoder wraps next with store. A zero missTTL disables negative caching.
func NewCachedGeocoder(next Geocoder, store cache.Store, hitTTL, missTTL time.Duration) *CachedGeocoder {
	return &CachedGeocoder{
		next:    next,
		store:   store,
		hitTTL:  hitTTL,
		missTTL: missTTL,
	}
}

type cacheEntry struct {
	Found  bool    `json:"found"`
	Result *Result `json:"result,omitempty"`
}

// Geocode serves query from cache when possible.
func (c *CachedGeocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	key := CacheKey(query)

	if entry, ok := c.lookup(ctx, key); ok {
		metrics.GeocodeCacheHitsTotal.Inc()
		if !entry.Found {
			return nil, ErrNotFound
		}
		return entry.Result, nil
	}
	metrics.GeocodeCacheMissesTotal.Inc()

	res, err := c.next.Geocode(ctx, query)
	switch {
	case errors.Is(err, ErrNotFound):
		if c.missTTL > 0 {
			c.save(ctx, key, cacheEntry{Found: false}, c.missTTL)
		}
		return nil, err
	case err != nil:
		return nil, err
	}

	c.save(ctx, key, cacheEntry{Found: true, Result: res}, c.hitTTL)
	return res, nil
}

func (c *CachedGeocoder) lookup(ctx context.Context, key string) (cacheEntry, bool) {
	var entry cacheEntry

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("Geocode cache read failed", "key", key, "error", err)
		}
		return entry, false
	}

	if err := json.Unmarshal(raw, &entry); err != nil || (entry.Found && entry.Result == nil) {
		slog.Warn("Discarding corrupt geocode cache entry", "key", key)
		if err := c.store.Delete(ctx, key); err != nil {
			slog.Warn("Geocode cache delete failed", "key", key, "error", err)
		}
		return entry, false
	}
	return entry, true
}

func (c *CachedGeocoder) save(ctx context.Context, key string, entry cacheEntry, ttl time.Duration) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		slog.Warn("Geocode cache write failed", "key", key, "error", err)
	}
}

// CacheKey normalises query (case and whitespace) and hashes it.
func CacheKey(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha1.Sum([]byte(normalized))
	return "geocode:" + hex.EncodeToString(sum[:])
}
