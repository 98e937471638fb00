package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat         float64
	Lng         float64
	DisplayName string
	Confidence  float64 // 0.0–1.0 provider confidence score, 0 when unknown
}

// Position returns the result's coordinates.
func (r GeocodingResult) Position() Position {
	return Position{Lat: r.Lat, Lng: r.Lng}
}

// Geocoder converts between coordinates and human-readable addresses.
type Geocoder interface {
	// ForwardGeocode resolves a free-text query into candidate places, best
	// match first. An empty slice means nothing was found.
	ForwardGeocode(ctx context.Context, query string) ([]GeocodingResult, error)

	// ReverseGeocode resolves coordinates into place details. A result with an
	// empty DisplayName means nothing was found.
	ReverseGeocode(ctx context.Context, pos Position) (GeocodingResult, error)
}
