package mapbox

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
	"github.com/couchcryptid/farm-survey-etl/internal/observability"
)

// cellPrecision rounds lookups to 4 decimal places (about 11 m), so farms
// surveyed at the same point share a cache entry.
const cellPrecision = 1e4

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache[string, domain.GeocodingResult]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder. A
// non-positive size falls back to 1000 entries.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	cache, _ := lru.New[string, domain.GeocodingResult](maxEntries) // only fails for size <= 0
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}
}

// ReverseGeocode serves repeated points from the cache.
func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := cellKey(lat, lon)
	if result, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(methodReverse, "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(methodReverse, "miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.PlaceName != "" {
		c.cache.Add(key, result)
	}
	return result, nil
}

// Len returns the number of cached points.
func (c *CachedGeocoder) Len() int { return c.cache.Len() }

func cellKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", math.Round(lat*cellPrecision)/cellPrecision, math.Round(lon*cellPrecision)/cellPrecision)
}
