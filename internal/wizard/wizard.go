// Package wizard implements the report wizard: the pending report, the three
// ways of acquiring its position, and submission.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/notify"
	"github.com/couchcryptid/resq-grid/internal/observability"
)

// FocusZoom is the map zoom used after a search or GPS fix.
const FocusZoom = 16

var (
	// ErrLocationRequired is returned by Submit when no position has been set.
	ErrLocationRequired = errors.New("location pin required")
	// ErrLocationNotFound is returned by SearchAddress when the query matches nothing.
	ErrLocationNotFound = errors.New("location not found")
	// ErrSubmitInProgress is returned by Submit while a previous submission is pending.
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// User-visible messages.
const (
	msgSearching      = "Triangulating..."
	msgSearchFound    = "Target Locked"
	msgSearchNotFound = "Location Not Found"
	msgSearchFailed   = "Search Failed"
	msgGPSAcquired    = "GPS Acquired"
	msgGPSFailed      = "GPS Failed"
	msgPinRequired    = "Location Pin Required!"
	msgBroadcasted    = "INCIDENT BROADCASTED"
	msgBroadcastFail  = "Broadcast Failed"
)

// State is the wizard's lifecycle position.
type State int

const (
	StateEmpty State = iota
	StateEditing
	StateSubmitting
	StateSuccess
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Locator reads the device's current position.
type Locator interface {
	CurrentPosition(ctx context.Context) (domain.Position, error)
}

// Submitter posts a finished report to the backend.
type Submitter interface {
	SubmitReport(ctx context.Context, sub domain.Submission) error
}

// Refresher re-fetches the incident collection so a new report shows up.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// MapView is the map the wizard recenters after a search or GPS fix.
type MapView interface {
	Recenter(pos domain.Position, zoom int)
}

// Deps are the collaborators a Wizard needs. MapView may be nil.
type Deps struct {
	Geocoder  domain.Geocoder
	Locator   Locator
	Submitter Submitter
	Refresher Refresher
	Notifier  notify.Notifier
	MapView   MapView
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Wizard owns one pending report. All methods are safe for concurrent use;
// the last position written wins, whatever its source.
type Wizard struct {
	deps Deps

	mu     sync.Mutex
	state  State
	report domain.PendingReport
	posSeq uint64 // bumped on every position change and reset

	lookups sync.WaitGroup
}

// New creates a wizard with an empty pending report.
func New(deps Deps) *Wizard {
	return &Wizard{
		deps:   deps,
		state:  StateEmpty,
		report: domain.NewPendingReport(),
	}
}

// State returns the current lifecycle state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Report returns a copy of the pending report.
func (w *Wizard) Report() domain.PendingReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.report
	if r.Position != nil {
		pos := *r.Position
		r.Position = &pos
	}
	return r
}

// Wait blocks until every reverse geocode lookup started so far has settled.
func (w *Wizard) Wait() {
	w.lookups.Wait()
}

// SelectType sets the report type and recomputes severity from it.
func (w *Wizard) SelectType(reportType string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	w.report.Type = reportType
	w.report.Severity = domain.DeriveSeverity(reportType)
}

// SetAddress replaces the address text.
func (w *Wizard) SetAddress(address string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	w.report.Address = address
}

// SetDescription replaces the free-text description.
func (w *Wizard) SetDescription(description string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	w.report.Description = description
}

// AttachEvidence sets the photo sent with the report. A nil evidence clears it.
func (w *Wizard) AttachEvidence(ev *domain.Evidence) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	w.report.Evidence = ev
}

// PlacePin sets the position from a map click.
func (w *Wizard) PlacePin(ctx context.Context, pos domain.Position) {
	w.setPosition(ctx, pos)
}

// SearchAddress forward geocodes the current address and moves the pin to
// the best match. It is a no-op when the address is blank.
func (w *Wizard) SearchAddress(ctx context.Context) error {
	w.mu.Lock()
	query := strings.TrimSpace(w.report.Address)
	w.mu.Unlock()
	if query == "" {
		return nil
	}

	id := notify.NewID()
	w.deps.Notifier.Notify(notify.Notification{ID: id, Kind: notify.KindLoading, Message: msgSearching})

	results, err := w.deps.Geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		w.deps.Notifier.Notify(notify.Notification{ID: id, Kind: notify.KindError, Message: msgSearchFailed})
		return fmt.Errorf("search %q: %w", query, err)
	}
	if len(results) == 0 {
		w.deps.Notifier.Notify(notify.Notification{ID: id, Kind: notify.KindError, Message: msgSearchNotFound})
		return fmt.Errorf("search %q: %w", query, ErrLocationNotFound)
	}

	pos := results[0].Position()
	w.setPosition(ctx, pos)
	w.recenter(pos)
	w.deps.Notifier.Notify(notify.Notification{ID: id, Kind: notify.KindSuccess, Message: msgSearchFound})
	return nil
}

// UseDeviceLocation moves the pin to the device's current position,
// overwriting any pin already placed.
func (w *Wizard) UseDeviceLocation(ctx context.Context) error {
	pos, err := w.deps.Locator.CurrentPosition(ctx)
	if err != nil {
		w.deps.Notifier.Notify(notify.Notification{Kind: notify.KindError, Message: msgGPSFailed})
		return fmt.Errorf("device location: %w", err)
	}

	w.setPosition(ctx, pos)
	w.recenter(pos)
	w.deps.Notifier.Notify(notify.Notification{Kind: notify.KindSuccess, Message: msgGPSAcquired})
	return nil
}

// Submit sends the pending report. Without a position nothing is sent. On
// success the incident collection is refreshed and the wizard starts over;
// on failure the report is kept for a retry.
func (w *Wizard) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.state == StateSubmitting {
		w.mu.Unlock()
		return ErrSubmitInProgress
	}
	if w.report.Position == nil {
		w.mu.Unlock()
		w.deps.Metrics.Submissions.WithLabelValues("rejected").Inc()
		w.deps.Notifier.Notify(notify.Notification{Kind: notify.KindError, Message: msgPinRequired})
		return ErrLocationRequired
	}
	sub := buildSubmission(w.report)
	w.state = StateSubmitting
	w.mu.Unlock()

	if err := w.deps.Submitter.SubmitReport(ctx, sub); err != nil {
		w.mu.Lock()
		w.state = StateEditing
		w.mu.Unlock()
		w.deps.Metrics.Submissions.WithLabelValues("failure").Inc()
		w.deps.Notifier.Notify(notify.Notification{Kind: notify.KindError, Message: msgBroadcastFail})
		return fmt.Errorf("submit report: %w", err)
	}

	w.deps.Metrics.Submissions.WithLabelValues("success").Inc()
	w.deps.Notifier.Notify(notify.Notification{Kind: notify.KindSuccess, Message: msgBroadcasted})
	w.deps.Logger.Info("report submitted",
		"type", sub.Type,
		"severity", sub.Severity,
		"position", domain.Position{Lat: sub.Latitude, Lng: sub.Longitude}.String(),
	)

	w.mu.Lock()
	w.state = StateSuccess
	w.report = domain.NewPendingReport()
	w.posSeq++
	w.mu.Unlock()

	// The report is in; a failed refresh only delays its appearance until
	// the next poll.
	if err := w.deps.Refresher.Refresh(ctx); err != nil {
		w.deps.Logger.Warn("refresh after submission failed", "error", err)
	}
	return nil
}

func buildSubmission(r domain.PendingReport) domain.Submission {
	return domain.Submission{
		Type:        r.Type,
		Severity:    r.Severity,
		Latitude:    r.Position.Lat,
		Longitude:   r.Position.Lng,
		Location:    r.Address,
		Description: r.Description,
		Evidence:    r.Evidence,
	}
}

// touchLocked moves an empty or finished wizard into editing.
func (w *Wizard) touchLocked() {
	if w.state == StateEmpty || w.state == StateSuccess {
		w.state = StateEditing
	}
}

// setPosition records pos and starts a reverse lookup for it.
func (w *Wizard) setPosition(ctx context.Context, pos domain.Position) {
	w.mu.Lock()
	w.touchLocked()
	w.report.Position = &pos
	w.posSeq++
	seq := w.posSeq
	w.mu.Unlock()

	w.lookups.Add(1)
	go func() {
		defer w.lookups.Done()
		w.reverseGeocode(context.WithoutCancel(ctx), pos, seq)
	}()
}

// reverseGeocode fills the address from pos. Lookup failures leave the
// address alone, as does a result for a position that has since moved.
func (w *Wizard) reverseGeocode(ctx context.Context, pos domain.Position, seq uint64) {
	result, err := w.deps.Geocoder.ReverseGeocode(ctx, pos)
	if err != nil {
		w.deps.Logger.Warn("reverse geocode failed", "position", pos.String(), "error", err)
		return
	}
	if result.DisplayName == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq != w.posSeq {
		w.deps.Logger.Debug("dropping reverse geocode for moved pin", "position", pos.String())
		return
	}
	w.report.Address = domain.ShortAddress(result.DisplayName)
}

func (w *Wizard) recenter(pos domain.Position) {
	if w.deps.MapView != nil {
		w.deps.MapView.Recenter(pos, FocusZoom)
	}
}
