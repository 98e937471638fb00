package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/notify"
	"github.com/couchcryptid/resq-grid/internal/observability"
)

const msgVerified = "Verified"

// VerifyClient sends a verify request for one incident.
type VerifyClient interface {
	Verify(ctx context.Context, id domain.IncidentID) error
}

// Verifier marks incidents verified. It reports success as soon as the
// request is issued and never touches the cached incident; the new status
// shows up on the next applied poll, so within one poll interval.
type Verifier struct {
	client   VerifyClient
	notifier notify.Notifier
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	inflight sync.WaitGroup
}

// NewVerifier creates a Verifier. interval is the sync loop's poll interval.
func NewVerifier(client VerifyClient, notifier notify.Notifier, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Verifier {
	return &Verifier{
		client:   client,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Verify fires the verify request for id in the background and notifies the
// user immediately. The request outlives ctx's cancellation.
func (v *Verifier) Verify(ctx context.Context, id domain.IncidentID) {
	ctx = context.WithoutCancel(ctx)

	v.inflight.Add(1)
	go func() {
		defer v.inflight.Done()
		if err := v.client.Verify(ctx, id); err != nil {
			v.metrics.Verifications.WithLabelValues("failed").Inc()
			v.logger.Warn("verify request failed", "incident_id", string(id), "error", err)
			return
		}
		v.metrics.Verifications.WithLabelValues("sent").Inc()
		v.logger.Debug("verify request sent", "incident_id", string(id))
	}()

	v.notifier.Notify(notify.Notification{Kind: notify.KindSuccess, Message: msgVerified})
}

// VisibleWithin is the bound on how long a verification takes to appear in
// the dashboard.
func (v *Verifier) VisibleWithin() time.Duration {
	return v.interval
}

// Wait blocks until every request started so far has completed.
func (v *Verifier) Wait() {
	v.inflight.Wait()
}
