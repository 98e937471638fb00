package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/couchcryptid/resq-grid/internal/adapter/device"
	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/notify"
	"github.com/couchcryptid/resq-grid/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeGeocoder struct {
	mu           sync.Mutex
	reverse      func(domain.Position) (domain.GeocodingResult, error)
	forward      []domain.GeocodingResult
	forwardErr   error
	reverseCalls []domain.Position
	queries      []string
}

func (g *fakeGeocoder) ForwardGeocode(_ context.Context, query string) ([]domain.GeocodingResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, query)
	return g.forward, g.forwardErr
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, pos domain.Position) (domain.GeocodingResult, error) {
	g.mu.Lock()
	g.reverseCalls = append(g.reverseCalls, pos)
	fn := g.reverse
	g.mu.Unlock()
	if fn == nil {
		return domain.GeocodingResult{}, nil
	}
	return fn(pos)
}

func (g *fakeGeocoder) reverseCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reverseCalls)
}

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []domain.Submission
	err  error
}

func (s *fakeSubmitter) SubmitReport(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
	return s.err
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

type recordingMap struct {
	mu     sync.Mutex
	center *domain.Position
	zoom   int
}

func (m *recordingMap) Recenter(pos domain.Position, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = &pos
	m.zoom = zoom
}

type harness struct {
	wizard    *Wizard
	geocoder  *fakeGeocoder
	submitter *fakeSubmitter
	refresher *fakeRefresher
	notes     *notify.Recorder
	mapView   *recordingMap
	metrics   *observability.Metrics
}

func newHarness(locator Locator) *harness {
	h := &harness{
		geocoder:  &fakeGeocoder{},
		submitter: &fakeSubmitter{},
		refresher: &fakeRefresher{},
		notes:     &notify.Recorder{},
		mapView:   &recordingMap{},
		metrics:   observability.NewMetricsForTesting(),
	}
	if locator == nil {
		locator = device.None{}
	}
	h.wizard = New(Deps{
		Geocoder:  h.geocoder,
		Locator:   locator,
		Submitter: h.submitter,
		Refresher: h.refresher,
		Notifier:  h.notes,
		MapView:   h.mapView,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   h.metrics,
	})
	return h
}

func displayName(name string) func(domain.Position) (domain.GeocodingResult, error) {
	return func(domain.Position) (domain.GeocodingResult, error) {
		return domain.GeocodingResult{DisplayName: name}, nil
	}
}

func lastMessage(t *testing.T, r *notify.Recorder) notify.Notification {
	t.Helper()
	n, ok := r.Last()
	require.True(t, ok, "expected a notification")
	return n
}

// --- initial state and type selection ---

func TestNew_InitialReport(t *testing.T) {
	h := newHarness(nil)

	assert.Equal(t, StateEmpty, h.wizard.State())
	r := h.wizard.Report()
	assert.Equal(t, domain.TypeFire, r.Type)
	assert.Equal(t, domain.SeverityHigh, r.Severity)
	assert.Nil(t, r.Position)
}

func TestSelectType_RecomputesSeverity(t *testing.T) {
	h := newHarness(nil)

	steps := []struct {
		reportType string
		want       domain.Severity
	}{
		{domain.TypeAccident, domain.SeverityMedium},
		{domain.TypeMedical, domain.SeverityHigh},
		{domain.TypeAccident, domain.SeverityMedium},
		{domain.TypeCrime, domain.SeverityHigh},
		{"Flood", domain.SeverityMedium},
		{domain.TypeFire, domain.SeverityHigh},
	}
	for _, s := range steps {
		h.wizard.SelectType(s.reportType)
		assert.Equal(t, s.want, h.wizard.Report().Severity, s.reportType)
	}
	assert.Equal(t, StateEditing, h.wizard.State())
}

func TestReport_ReturnsCopy(t *testing.T) {
	h := newHarness(nil)
	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 1, Lng: 2})
	h.wizard.Wait()

	r := h.wizard.Report()
	r.Position.Lat = 50

	assert.InDelta(t, 1, h.wizard.Report().Position.Lat, 0)
}

// --- reverse geocoding ---

func TestPlacePin_ReverseGeocodesAddress(t *testing.T) {
	h := newHarness(nil)
	h.geocoder.reverse = displayName("Hill Road, Bandra West, Mumbai, Maharashtra, 400050, India")

	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 19.07, Lng: 72.87})
	h.wizard.Wait()

	r := h.wizard.Report()
	require.NotNil(t, r.Position)
	assert.Equal(t, domain.Position{Lat: 19.07, Lng: 72.87}, *r.Position)
	assert.Equal(t, "Hill Road, Bandra West, Mumbai", r.Address)
}

func TestPlacePin_NoDisplayNameKeepsAddress(t *testing.T) {
	h := newHarness(nil)
	h.wizard.SetAddress("typed by hand")

	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 0, Lng: -160})
	h.wizard.Wait()

	assert.Equal(t, "typed by hand", h.wizard.Report().Address)
	assert.Equal(t, 1, h.geocoder.reverseCount())
}

func TestPlacePin_GeocoderErrorIsAbsorbed(t *testing.T) {
	h := newHarness(nil)
	h.wizard.SetAddress("typed by hand")
	h.geocoder.reverse = func(domain.Position) (domain.GeocodingResult, error) {
		return domain.GeocodingResult{}, errors.New("connection refused")
	}

	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 19.07, Lng: 72.87})
	h.wizard.Wait()

	assert.Equal(t, "typed by hand", h.wizard.Report().Address)
	assert.Empty(t, h.notes.All(), "reverse lookup failures are silent")
}

func TestPlacePin_StaleLookupDoesNotOverwrite(t *testing.T) {
	h := newHarness(nil)
	first := domain.Position{Lat: 19.07, Lng: 72.87}
	second := domain.Position{Lat: 28.61, Lng: 77.20}

	release := make(chan struct{})
	h.geocoder.reverse = func(pos domain.Position) (domain.GeocodingResult, error) {
		if pos == first {
			<-release
			return domain.GeocodingResult{DisplayName: "Bandra, Mumbai, India"}, nil
		}
		return domain.GeocodingResult{DisplayName: "Connaught Place, New Delhi, India"}, nil
	}

	h.wizard.PlacePin(context.Background(), first)
	h.wizard.PlacePin(context.Background(), second)
	close(release)
	h.wizard.Wait()

	r := h.wizard.Report()
	assert.Equal(t, second, *r.Position)
	assert.Equal(t, "Connaught Place, New Delhi, India", r.Address)
}

// --- forward geocoding ---

func TestSearchAddress_Found(t *testing.T) {
	h := newHarness(nil)
	h.geocoder.forward = []domain.GeocodingResult{
		{Lat: 19.0596, Lng: 72.8295, DisplayName: "Bandra West"},
		{Lat: 1, Lng: 1, DisplayName: "elsewhere"},
	}
	h.wizard.SetAddress("Bandra West")

	require.NoError(t, h.wizard.SearchAddress(context.Background()))
	h.wizard.Wait()

	want := domain.Position{Lat: 19.0596, Lng: 72.8295}
	assert.Equal(t, want, *h.wizard.Report().Position)
	require.NotNil(t, h.mapView.center)
	assert.Equal(t, want, *h.mapView.center)
	assert.Equal(t, FocusZoom, h.mapView.zoom)

	visible := h.notes.Visible()
	require.Len(t, visible, 1, "loading indicator is replaced by its outcome")
	assert.Equal(t, notify.KindSuccess, visible[0].Kind)
	assert.Equal(t, "Target Locked", visible[0].Message)

	all := h.notes.All()
	assert.Equal(t, notify.KindLoading, all[0].Kind)
	assert.Equal(t, "Triangulating...", all[0].Message)
}

func TestSearchAddress_NotFoundKeepsPosition(t *testing.T) {
	h := newHarness(nil)
	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 1, Lng: 2})
	h.wizard.Wait()
	h.wizard.SetAddress("Atlantis")

	err := h.wizard.SearchAddress(context.Background())
	require.ErrorIs(t, err, ErrLocationNotFound)

	assert.Equal(t, domain.Position{Lat: 1, Lng: 2}, *h.wizard.Report().Position)
	assert.Nil(t, h.mapView.center)
	n := lastMessage(t, h.notes)
	assert.Equal(t, notify.KindError, n.Kind)
	assert.Equal(t, "Location Not Found", n.Message)
}

func TestSearchAddress_ServiceError(t *testing.T) {
	h := newHarness(nil)
	h.geocoder.forwardErr = errors.New("timeout")
	h.wizard.SetAddress("Bandra")

	err := h.wizard.SearchAddress(context.Background())
	require.Error(t, err)
	assert.Nil(t, h.wizard.Report().Position)
	assert.Equal(t, notify.KindError, lastMessage(t, h.notes).Kind)
}

func TestSearchAddress_BlankIsNoop(t *testing.T) {
	h := newHarness(nil)
	h.wizard.SetAddress("   ")

	require.NoError(t, h.wizard.SearchAddress(context.Background()))
	assert.Empty(t, h.geocoder.queries)
	assert.Empty(t, h.notes.All())
}

// --- device location ---

func TestUseDeviceLocation_OverwritesPin(t *testing.T) {
	gps := domain.Position{Lat: 19.076, Lng: 72.8777}
	h := newHarness(device.NewFixed(gps))
	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 1, Lng: 2})

	require.NoError(t, h.wizard.UseDeviceLocation(context.Background()))
	h.wizard.Wait()

	assert.Equal(t, gps, *h.wizard.Report().Position)
	assert.Equal(t, gps, *h.mapView.center)
	assert.Equal(t, FocusZoom, h.mapView.zoom)
	assert.Equal(t, "GPS Acquired", lastMessage(t, h.notes).Message)
	assert.Empty(t, h.geocoder.queries, "GPS bypasses forward geocoding")
}

func TestUseDeviceLocation_Failure(t *testing.T) {
	h := newHarness(device.None{})

	err := h.wizard.UseDeviceLocation(context.Background())
	require.ErrorIs(t, err, device.ErrLocationUnavailable)

	assert.Nil(t, h.wizard.Report().Position)
	n := lastMessage(t, h.notes)
	assert.Equal(t, notify.KindError, n.Kind)
	assert.Equal(t, "GPS Failed", n.Message)
}

// --- submission ---

func TestSubmit_RequiresPosition(t *testing.T) {
	h := newHarness(nil)
	h.wizard.SelectType(domain.TypeMedical)
	h.wizard.SetAddress("Bandra West")
	h.wizard.SetDescription("two injured")
	h.wizard.AttachEvidence(&domain.Evidence{Filename: "a.jpg", Data: []byte{1}})

	err := h.wizard.Submit(context.Background())
	require.ErrorIs(t, err, ErrLocationRequired)

	assert.Empty(t, h.submitter.subs, "no network call without a position")
	assert.Equal(t, "Location Pin Required!", lastMessage(t, h.notes).Message)
	assert.Equal(t, StateEditing, h.wizard.State())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Submissions.WithLabelValues("rejected")), 0)
}

func TestSubmit_Success(t *testing.T) {
	h := newHarness(nil)
	h.wizard.SelectType(domain.TypeAccident)
	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 12.97, Lng: 77.59})
	h.wizard.Wait()
	h.wizard.SetAddress("MG Road, Bengaluru")
	h.wizard.SetDescription("two cars")
	ev := &domain.Evidence{Filename: "crash.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")}
	h.wizard.AttachEvidence(ev)

	require.NoError(t, h.wizard.Submit(context.Background()))

	require.Len(t, h.submitter.subs, 1)
	assert.Equal(t, domain.Submission{
		Type:        domain.TypeAccident,
		Severity:    domain.SeverityMedium,
		Latitude:    12.97,
		Longitude:   77.59,
		Location:    "MG Road, Bengaluru",
		Description: "two cars",
		Evidence:    ev,
	}, h.submitter.subs[0])

	assert.Equal(t, 1, h.refresher.calls, "repository refreshed instead of a reload")
	assert.Equal(t, StateSuccess, h.wizard.State())
	assert.Equal(t, domain.NewPendingReport(), h.wizard.Report())
	assert.Equal(t, "INCIDENT BROADCASTED", lastMessage(t, h.notes).Message)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Submissions.WithLabelValues("success")), 0)
}

func TestSubmit_RefreshFailureStillSucceeds(t *testing.T) {
	h := newHarness(nil)
	h.refresher.err = errors.New("backend offline")
	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 1, Lng: 2})
	h.wizard.Wait()

	require.NoError(t, h.wizard.Submit(context.Background()))
	assert.Equal(t, StateSuccess, h.wizard.State())
}

func TestSubmit_FailureKeepsReport(t *testing.T) {
	h := newHarness(nil)
	h.submitter.err = errors.New("502 bad gateway")
	h.wizard.SelectType(domain.TypeCrime)
	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 1, Lng: 2})
	h.wizard.Wait()

	err := h.wizard.Submit(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateEditing, h.wizard.State())
	r := h.wizard.Report()
	assert.Equal(t, domain.TypeCrime, r.Type)
	require.NotNil(t, r.Position)
	assert.Zero(t, h.refresher.calls)
	assert.Equal(t, notify.KindError, lastMessage(t, h.notes).Kind)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Submissions.WithLabelValues("failure")), 0)

	// A retry goes out again.
	h.submitter.err = nil
	require.NoError(t, h.wizard.Submit(context.Background()))
	assert.Len(t, h.submitter.subs, 2)
}

func TestSubmit_AfterSuccessEditingResumes(t *testing.T) {
	h := newHarness(nil)
	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 1, Lng: 2})
	h.wizard.Wait()
	require.NoError(t, h.wizard.Submit(context.Background()))

	h.wizard.SetAddress("next one")
	assert.Equal(t, StateEditing, h.wizard.State())
}

// --- end-to-end scenarios ---

func TestScenario_MedicalReportAtMapPoint(t *testing.T) {
	h := newHarness(nil)
	h.geocoder.reverse = displayName("Linking Road, Bandra West, Mumbai, Mumbai Suburban, Maharashtra, India")

	h.wizard.SelectType(domain.TypeMedical)
	assert.Equal(t, domain.SeverityHigh, h.wizard.Report().Severity)

	h.wizard.PlacePin(context.Background(), domain.Position{Lat: 19.07, Lng: 72.87})
	h.wizard.Wait()
	require.Equal(t, 1, h.geocoder.reverseCount())
	assert.Equal(t, domain.Position{Lat: 19.07, Lng: 72.87}, h.geocoder.reverseCalls[0])

	require.NoError(t, h.wizard.Submit(context.Background()))
	require.Len(t, h.submitter.subs, 1)
	sub := h.submitter.subs[0]
	assert.Equal(t, "🚑 Medical", sub.Type)
	assert.Equal(t, domain.SeverityHigh, sub.Severity)
	assert.InDelta(t, 19.07, sub.Latitude, 0)
	assert.InDelta(t, 72.87, sub.Longitude, 0)
	assert.Equal(t, "Linking Road, Bandra West, Mumbai", sub.Location)
}

func TestScenario_GPSDeniedThenSubmitBlocked(t *testing.T) {
	h := newHarness(device.None{})

	require.Error(t, h.wizard.UseDeviceLocation(context.Background()))
	assert.Equal(t, "GPS Failed", lastMessage(t, h.notes).Message)
	assert.Nil(t, h.wizard.Report().Position)

	err := h.wizard.Submit(context.Background())
	require.ErrorIs(t, err, ErrLocationRequired)
	assert.Equal(t, "Location Pin Required!", lastMessage(t, h.notes).Message)
	assert.Empty(t, h.submitter.subs)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "editing", StateEditing.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "success", StateSuccess.String())
	assert.Equal(t, "state(9)", State(9).String())
}
