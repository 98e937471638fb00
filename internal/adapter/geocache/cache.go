// Package geocache decorates a domain.Geocoder with an in-memory LRU and an
// optional on-disk tier that survives restarts.
package geocache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/observability"
	"github.com/peterbourgon/diskv/v3"
)

// reversePrecision is the geohash length used for reverse lookups. Nine
// characters is a cell of roughly 5m, finer than any pin a user can place.
const reversePrecision = 9

// diskCacheSizeMax bounds diskv's own in-memory read cache.
const diskCacheSizeMax = 1 << 20

// Option configures a CachedGeocoder.
type Option func(*CachedGeocoder)

// WithDiskDir persists cache entries as JSON files under dir.
func WithDiskDir(dir string) Option {
	return func(c *CachedGeocoder) {
		if dir == "" {
			return
		}
		c.disk = diskv.New(diskv.Options{
			BasePath:     dir,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: diskCacheSizeMax,
		})
	}
}

// WithLogger sets the logger used for disk tier failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedGeocoder) { c.logger = logger }
}

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Only non-empty
// results are cached so a transient "not found" can be retried.
type CachedGeocoder struct {
	inner   domain.Geocoder
	reverse *lru[domain.GeocodingResult]
	forward *lru[[]domain.GeocodingResult]
	disk    *diskv.Diskv
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics, opts ...Option) *CachedGeocoder {
	c := &CachedGeocoder{
		inner:   inner,
		reverse: newLRU[domain.GeocodingResult](maxEntries),
		forward: newLRU[[]domain.GeocodingResult](maxEntries),
		metrics: metrics,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForwardGeocode returns cached candidates for query, consulting the wrapped
// geocoder on a miss.
func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) ([]domain.GeocodingResult, error) {
	key := forwardKey(query)
	if results, ok := c.forward.get(key); ok {
		c.hit("forward")
		return cloneResults(results), nil
	}
	var stored []domain.GeocodingResult
	if c.readDisk(key, &stored) && len(stored) > 0 {
		c.forward.put(key, stored)
		c.hit("forward")
		return cloneResults(stored), nil
	}
	c.miss("forward")

	results, err := c.inner.ForwardGeocode(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		c.forward.put(key, cloneResults(results))
		c.writeDisk(key, results)
	}
	return results, nil
}

// ReverseGeocode returns the cached place for pos, consulting the wrapped
// geocoder on a miss. Positions in the same geohash cell share an entry.
func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, pos domain.Position) (domain.GeocodingResult, error) {
	key := reverseKey(pos)
	if result, ok := c.reverse.get(key); ok {
		c.hit("reverse")
		return result, nil
	}
	var stored domain.GeocodingResult
	if c.readDisk(key, &stored) && stored.DisplayName != "" {
		c.reverse.put(key, stored)
		c.hit("reverse")
		return stored, nil
	}
	c.miss("reverse")

	result, err := c.inner.ReverseGeocode(ctx, pos)
	if err != nil {
		return result, err
	}
	if result.DisplayName != "" {
		c.reverse.put(key, result)
		c.writeDisk(key, result)
	}
	return result, nil
}

func (c *CachedGeocoder) hit(method string) {
	c.metrics.GeocodeCache.WithLabelValues(method, "hit").Inc()
}

func (c *CachedGeocoder) miss(method string) {
	c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()
}

func (c *CachedGeocoder) readDisk(key string, v any) bool {
	if c.disk == nil || !c.disk.Has(key) {
		return false
	}
	raw, err := c.disk.Read(key)
	if err != nil {
		c.logger.Warn("geocode cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.logger.Warn("geocode cache entry corrupt", "key", key, "error", err)
		_ = c.disk.Erase(key)
		return false
	}
	return true
}

func (c *CachedGeocoder) writeDisk(key string, v any) {
	if c.disk == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("geocode cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.disk.Write(key, raw); err != nil {
		c.logger.Warn("geocode cache write failed", "key", key, "error", err)
	}
}

func reverseKey(pos domain.Position) string {
	gh := geohash.Encode(pos.Lat, pos.Lng)
	if len(gh) > reversePrecision {
		gh = gh[:reversePrecision]
	}
	return "rev-" + gh
}

// forwardKey normalizes case and whitespace and hashes the result so the key
// is always a safe file name.
func forwardKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha1.Sum([]byte(normalized))
	return "fwd-" + hex.EncodeToString(sum[:])
}

func cloneResults(results []domain.GeocodingResult) []domain.GeocodingResult {
	return append([]domain.GeocodingResult(nil), results...)
}
