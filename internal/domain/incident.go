package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// IncidentID is the backend's opaque incident identifier.
type IncidentID string

// UnmarshalJSON accepts both numeric and string ids.
func (id *IncidentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("incident id: %w", err)
		}
		*id = IncidentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("incident id: %w", err)
	}
	*id = IncidentID(n.String())
	return nil
}

// Severity is the priority assigned to a report. The set is closed.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
)

// Status is an incident's verification state. It only ever moves from
// Unverified to Verified.
type Status string

const (
	StatusUnverified Status = "Unverified"
	StatusVerified   Status = "Verified"
)

// Position is a WGS-84 latitude/longitude pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Position) String() string {
	return fmt.Sprintf("%.4f, %.4f", p.Lat, p.Lng)
}

// Incident is a single reported emergency as returned by the backend.
type Incident struct {
	ID          IncidentID `json:"id"`
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Severity    Severity   `json:"severity"`
	Location    string     `json:"location,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Timestamp   string     `json:"timestamp"`
	ImageURL    string     `json:"image_url,omitempty"`
	Status      Status     `json:"status"`
	Upvotes     int        `json:"upvotes,omitempty"`
}

// Position returns the incident's coordinates. Incidents missing either
// coordinate are not placed on the map.
func (i Incident) Position() (Position, bool) {
	if i.Latitude == nil || i.Longitude == nil {
		return Position{}, false
	}
	return Position{Lat: *i.Latitude, Lng: *i.Longitude}, true
}

// Category classifies the incident's type label.
func (i Incident) Category() Category {
	return Classify(i.Type)
}

// Verified reports whether the backend has marked the incident verified.
func (i Incident) Verified() bool {
	return i.Status == StatusVerified
}

// TimeOfDay returns the part of the timestamp after the first space, or the
// whole timestamp when it has no date part.
func (i Incident) TimeOfDay() string {
	if _, after, ok := strings.Cut(i.Timestamp, " "); ok {
		return after
	}
	return i.Timestamp
}
