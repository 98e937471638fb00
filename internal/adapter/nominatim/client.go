// Package nominatim implements domain.Geocoder against an OpenStreetMap
// Nominatim server.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/observability"
)

// searchLimit is how many candidates a forward lookup asks for.
const searchLimit = 5

// Client implements domain.Geocoder using the Nominatim /reverse and /search endpoints.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode converts coordinates to a display name. Nominatim answers
// points it cannot resolve with an error object and no display_name; that is
// returned as an empty result, not an error.
func (c *Client) ReverseGeocode(ctx context.Context, pos domain.Position) (domain.GeocodingResult, error) {
	params := url.Values{
		"format": {"json"},
		"lat":    {strconv.FormatFloat(pos.Lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(pos.Lng, 'f', -1, 64)},
	}

	var place place
	if err := c.get(ctx, "/reverse?"+params.Encode(), "reverse", &place); err != nil {
		return domain.GeocodingResult{}, err
	}
	if place.DisplayName == "" {
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "empty").Inc()
		return domain.GeocodingResult{}, nil
	}
	c.metrics.GeocodeRequests.WithLabelValues("reverse", "success").Inc()

	result, err := place.toResult()
	if err != nil {
		// Coordinates are informational on reverse lookups.
		return domain.GeocodingResult{Lat: pos.Lat, Lng: pos.Lng, DisplayName: place.DisplayName}, nil
	}
	return result, nil
}

// ForwardGeocode resolves a free-text query. Candidates with unparseable
// coordinates are skipped.
func (c *Client) ForwardGeocode(ctx context.Context, query string) ([]domain.GeocodingResult, error) {
	params := url.Values{
		"format": {"json"},
		"q":      {query},
		"limit":  {strconv.Itoa(searchLimit)},
	}

	var places []place
	if err := c.get(ctx, "/search?"+params.Encode(), "forward", &places); err != nil {
		return nil, err
	}

	results := make([]domain.GeocodingResult, 0, len(places))
	for _, p := range places {
		r, err := p.toResult()
		if err != nil {
			c.logger.Debug("skipping nominatim candidate", "display_name", p.DisplayName, "error", err)
			continue
		}
		results = append(results, r)
	}

	outcome := "success"
	if len(results) == 0 {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues("forward", outcome).Inc()
	return results, nil
}

func (c *Client) get(ctx context.Context, path, method string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Nominatim API response types. Coordinates arrive as strings.

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

func (p place) toResult() (domain.GeocodingResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return domain.GeocodingResult{
		Lat:         lat,
		Lng:         lon,
		DisplayName: p.DisplayName,
		Confidence:  p.Importance,
	}, nil
}
