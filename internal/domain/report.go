package domain

// Report types offered by the wizard, in display order.
const (
	TypeFire     = "🔥 Fire"
	TypeMedical  = "🚑 Medical"
	TypeAccident = "🚗 Accident"
	TypeCrime    = "🚓 Crime"
)

// ReportTypes lists the selectable report types. The first entry is the
// wizard's initial selection.
var ReportTypes = []string{TypeFire, TypeMedical, TypeAccident, TypeCrime}

// DeriveSeverity returns High for types containing "Fire", "Medical", or
// "Crime" and Medium for everything else.
func DeriveSeverity(reportType string) Severity {
	return Classify(reportType).Severity()
}

// Evidence is an optional photo attached to a report.
type Evidence struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PendingReport is the wizard's in-progress report. Position is nil until the
// user places a pin, searches an address, or reads the device location.
type PendingReport struct {
	Type        string
	Severity    Severity
	Position    *Position
	Address     string
	Description string
	Evidence    *Evidence
}

// NewPendingReport returns an empty report with the initial type selected.
func NewPendingReport() PendingReport {
	return PendingReport{
		Type:     ReportTypes[0],
		Severity: DeriveSeverity(ReportTypes[0]),
	}
}

// Submission is the payload posted to the backend for a new incident.
// Location always carries the report's address text.
type Submission struct {
	Type        string
	Severity    Severity
	Latitude    float64
	Longitude   float64
	Location    string
	Description string
	Evidence    *Evidence
}
