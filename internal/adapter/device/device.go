// Package device provides sources for the reporter's current position.
package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/resq-grid/internal/domain"
)

// ErrLocationUnavailable is returned when no position can be determined.
var ErrLocationUnavailable = errors.New("device location unavailable")

// Fixed reports a configured position. The zero value has no position.
type Fixed struct {
	pos *domain.Position
}

// NewFixed returns a locator that always reports pos.
func NewFixed(pos domain.Position) *Fixed {
	return &Fixed{pos: &pos}
}

// ParseFixed builds a Fixed locator from a "lat,lng" string. An empty string
// yields a locator that always fails, like a device with GPS disabled.
func ParseFixed(s string) (*Fixed, error) {
	if strings.TrimSpace(s) == "" {
		return &Fixed{}, nil
	}
	pos, err := ParsePosition(s)
	if err != nil {
		return nil, err
	}
	return NewFixed(pos), nil
}

// CurrentPosition returns the configured position.
func (f *Fixed) CurrentPosition(ctx context.Context) (domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return domain.Position{}, err
	}
	if f.pos == nil {
		return domain.Position{}, ErrLocationUnavailable
	}
	return *f.pos, nil
}

// None never has a position.
type None struct{}

// CurrentPosition always fails with ErrLocationUnavailable.
func (None) CurrentPosition(context.Context) (domain.Position, error) {
	return domain.Position{}, ErrLocationUnavailable
}

// ParsePosition parses "lat,lng" and checks the coordinate ranges.
func ParsePosition(s string) (domain.Position, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Position{}, fmt.Errorf("parse position %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("parse latitude %q: %w", latStr, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("parse longitude %q: %w", lngStr, err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return domain.Position{}, fmt.Errorf("position %q out of range", s)
	}
	return domain.Position{Lat: lat, Lng: lng}, nil
}
