// Package dashboard turns repository snapshots into the feed and map view
// models and carries the verify action.
package dashboard

import (
	"time"

	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/livesync"
)

// Default map framing before anything is focused.
var (
	DefaultCenter = domain.Position{Lat: 20.5937, Lng: 78.9629}
	DefaultZoom   = 5
)

// MediaResolver maps an incident's image_url to a fetchable URL.
type MediaResolver interface {
	MediaURL(imageURL string) string
}

// View is everything the command view renders for one snapshot.
type View struct {
	Online       bool            `json:"online"`
	ActiveAlerts int             `json:"active_alerts"`
	Feed         []FeedItem      `json:"feed"`
	Markers      []Marker        `json:"markers"`
	Center       domain.Position `json:"center"`
	Zoom         int             `json:"zoom"`
	UpdatedAt    time.Time       `json:"updated_at,omitzero"`
}

// FeedItem is one card in the incident feed.
type FeedItem struct {
	ID          domain.IncidentID `json:"id"`
	Category    domain.Category   `json:"category"`
	Glyph       string            `json:"glyph"`
	Title       string            `json:"title"`
	Time        string            `json:"time"`
	Location    string            `json:"location"`
	Description string            `json:"description,omitempty"`
	ImageURL    string            `json:"image_url,omitempty"`
	Severity    domain.Severity   `json:"severity"`
	Verified    bool              `json:"verified"`
	CanVerify   bool              `json:"can_verify"`
	Upvotes     int               `json:"upvotes"`
}

// Marker is one pin on the map.
type Marker struct {
	ID       domain.IncidentID `json:"id"`
	Category domain.Category   `json:"category"`
	Glyph    string            `json:"glyph"`
	Position domain.Position   `json:"position"`
	Kind     string            `json:"kind"`
	Location string            `json:"location"`
	Severity domain.Severity   `json:"severity"`
}

// Build renders a snapshot. Feed order follows the backend's order; incidents
// without coordinates appear in the feed but get no marker.
func Build(snap livesync.Snapshot, media MediaResolver) View {
	v := View{
		Online:       snap.Online,
		ActiveAlerts: len(snap.Incidents),
		Feed:         make([]FeedItem, 0, len(snap.Incidents)),
		Markers:      make([]Marker, 0, len(snap.Incidents)),
		Center:       DefaultCenter,
		Zoom:         DefaultZoom,
		UpdatedAt:    snap.UpdatedAt,
	}

	for _, inc := range snap.Incidents {
		cat := inc.Category()
		kind := domain.KindName(inc.Type)

		item := FeedItem{
			ID:          inc.ID,
			Category:    cat,
			Glyph:       cat.Glyph(),
			Title:       kind + " Alert",
			Time:        inc.TimeOfDay(),
			Location:    inc.Location,
			Description: inc.Description,
			Severity:    inc.Severity,
			Verified:    inc.Verified(),
			CanVerify:   !inc.Verified(),
			Upvotes:     inc.Upvotes,
		}
		if inc.ImageURL != "" && media != nil {
			item.ImageURL = media.MediaURL(inc.ImageURL)
		}
		v.Feed = append(v.Feed, item)

		if pos, ok := inc.Position(); ok {
			v.Markers = append(v.Markers, Marker{
				ID:       inc.ID,
				Category: cat,
				Glyph:    cat.Glyph(),
				Position: pos,
				Kind:     kind,
				Location: inc.Location,
				Severity: inc.Severity,
			})
		}
	}
	return v
}
