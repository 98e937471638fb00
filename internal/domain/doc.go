// Package domain models the incidents shown on the command dashboard and the
// reports field users submit.
//
// # Incident Records
//
// Incidents are owned by the backend. The client only ever holds a read-only
// snapshot, replaced wholesale on every successful poll.
//
// Type labels:
//
//	"<glyph> <kind>"  →  e.g. "🔥 Fire", "🚑 Medical", "🚗 Accident", "🚓 Crime"
//	The label is display text. Classification goes through [Classify], which
//	maps a label onto the closed [Category] set by keyword containment.
//
// Timestamps:
//
//	"YYYY-MM-DD HH:MM:SS" as assigned by the backend. Never parsed; the feed
//	shows the substring after the first space (see [Incident.TimeOfDay]).
//
// Identifiers:
//
//	The backend emits integer ids. [IncidentID] accepts JSON numbers or strings
//	and is treated as opaque text afterwards.
//
// Evidence:
//
//	image_url holds a bare upload file name, resolved against a fixed media
//	base path by the backend adapter.
//
// # Severity
//
// Severity is derived from the report type at submission time and never
// edited afterwards:
//
//	Fire, Medical, Crime  →  High
//	everything else       →  Medium
//
// # Addresses
//
// Reverse-geocoded display names are shortened to their first three
// comma-separated segments before they become a report's location text
// (see [ShortAddress]).
package domain
