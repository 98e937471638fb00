// Package google implements domain.Geocoder using the Google Maps Geocoding API.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/observability"
	"googlemaps.github.io/maps"
)

const forwardLimit = 5

// Client implements domain.Geocoder on top of the googlemaps client.
type Client struct {
	maps    *maps.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option adjusts the underlying googlemaps client.
type Option = maps.ClientOption

// WithBaseURL points the client at a different API host, used by tests.
func WithBaseURL(baseURL string) Option {
	return maps.WithBaseURL(baseURL)
}

// NewClient creates a Google geocoding client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) (*Client, error) {
	options := append([]maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}, opts...)
	mc, err := maps.NewClient(options...)
	if err != nil {
		return nil, fmt.Errorf("create google maps client: %w", err)
	}
	return &Client{maps: mc, metrics: metrics, logger: logger}, nil
}

// ForwardGeocode resolves a free-text address into candidate places.
func (c *Client) ForwardGeocode(ctx context.Context, query string) ([]domain.GeocodingResult, error) {
	start := time.Now()
	resp, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: query})
	c.metrics.GeocodeAPIDuration.WithLabelValues("forward").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("forward", "error").Inc()
		return nil, fmt.Errorf("forward geocode request: %w", err)
	}

	if len(resp) > forwardLimit {
		resp = resp[:forwardLimit]
	}
	results := make([]domain.GeocodingResult, 0, len(resp))
	for _, r := range resp {
		results = append(results, toResult(r))
	}
	c.count("forward", len(results) > 0)
	return results, nil
}

// ReverseGeocode resolves coordinates into the most precise address Google has.
func (c *Client) ReverseGeocode(ctx context.Context, pos domain.Position) (domain.GeocodingResult, error) {
	start := time.Now()
	resp, err := c.maps.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: pos.Lat, Lng: pos.Lng},
	})
	c.metrics.GeocodeAPIDuration.WithLabelValues("reverse").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	if len(resp) == 0 {
		c.count("reverse", false)
		return domain.GeocodingResult{}, nil
	}
	c.count("reverse", resp[0].FormattedAddress != "")
	return toResult(resp[0]), nil
}

func (c *Client) count(method string, found bool) {
	outcome := "success"
	if !found {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

func toResult(r maps.GeocodingResult) domain.GeocodingResult {
	confidence := locationTypeConfidence[r.Geometry.LocationType]
	if r.PartialMatch {
		confidence /= 2
	}
	return domain.GeocodingResult{
		Lat:         r.Geometry.Location.Lat,
		Lng:         r.Geometry.Location.Lng,
		DisplayName: r.FormattedAddress,
		Confidence:  confidence,
	}
}

// Google reports precision rather than a score.
var locationTypeConfidence = map[string]float64{
	"ROOFTOP":            1.0,
	"RANGE_INTERPOLATED": 0.8,
	"GEOMETRIC_CENTER":   0.6,
	"APPROXIMATE":        0.4,
}
