// Package mapbox implements domain.Geocoder using the Mapbox Geocoding API.
package mapbox

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

const (
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	forwardLimit   = 5
)

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ForwardGeocode converts a free-text address into candidate places.
func (c *Client) ForwardGeocode(ctx context.Context, query string) ([]domain.GeocodingResult, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {strconv.Itoa(forwardLimit)},
	}

	features, err := c.doRequest(ctx, u+"?"+params.Encode(), "forward")
	if err != nil {
		return nil, err
	}

	results := make([]domain.GeocodingResult, 0, len(features))
	for _, f := range features {
		if len(f.Center) != 2 {
			continue
		}
		results = append(results, f.toResult())
	}
	c.countOutcome("forward", len(results) > 0)
	return results, nil
}

// ReverseGeocode converts coordinates to place details.
func (c *Client) ReverseGeocode(ctx context.Context, pos domain.Position) (domain.GeocodingResult, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", pos.Lng, pos.Lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}

	features, err := c.doRequest(ctx, u+"?"+params.Encode(), "reverse")
	if err != nil {
		return domain.GeocodingResult{}, err
	}
	if len(features) == 0 {
		c.countOutcome("reverse", false)
		return domain.GeocodingResult{}, nil
	}

	result := features[0].toResult()
	if len(features[0].Center) != 2 {
		result.Lat, result.Lng = pos.Lat, pos.Lng
	}
	c.countOutcome("reverse", result.DisplayName != "")
	return result, nil
}

func (c *Client) countOutcome(method string, found bool) {
	outcome := "success"
	if !found {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string) ([]feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return mapboxResp.Features, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

func (f feature) toResult() domain.GeocodingResult {
	result := domain.GeocodingResult{
		DisplayName: f.PlaceName,
		Confidence:  f.Relevance,
	}
	if len(f.Center) == 2 {
		result.Lng = f.Center[0]
		result.Lat = f.Center[1]
	}
	return result
}
