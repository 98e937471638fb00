package domain

import "strings"

// shortAddressSegments is how many comma-separated segments of a display name
// are kept as report location text.
const shortAddressSegments = 3

// ShortAddress truncates a geocoder display name to its first three
// comma-separated segments. Segments are rejoined with a bare comma so their
// original spacing is kept.
func ShortAddress(displayName string) string {
	parts := strings.Split(displayName, ",")
	if len(parts) > shortAddressSegments {
		parts = parts[:shortAddressSegments]
	}
	return strings.Join(parts, ",")
}
