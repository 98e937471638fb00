package livesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/resq-grid/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the polling cadence when none is configured.
const DefaultInterval = 2 * time.Second

// Refresher performs one poll attempt.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Loop polls a Refresher immediately and then on every tick of a fixed
// interval. Failures never change the cadence. A tick starts a new attempt
// whether or not the previous one has resolved; the repository sorts out
// ordering by sequence number.
type Loop struct {
	repo     Refresher
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	inflight sync.WaitGroup
}

// NewLoop creates a Loop. A non-positive interval falls back to DefaultInterval.
func NewLoop(repo Refresher, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		repo:     repo,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Interval is the polling cadence, which also bounds how long a server-side
// change takes to show up locally.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Run polls until ctx is cancelled. On cancellation the ticker is stopped,
// in-flight attempts are abandoned, and Run returns once they have unwound.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("sync loop started", "interval", l.interval)
	l.metrics.SyncRunning.Set(1)
	defer l.metrics.SyncRunning.Set(0)

	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	l.attempt(ctx)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("sync loop stopping", "reason", ctx.Err())
			l.inflight.Wait()
			return nil
		case <-ticker.Chan():
			l.attempt(ctx)
		}
	}
}

func (l *Loop) attempt(ctx context.Context) {
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		err := l.repo.Refresh(ctx)
		switch {
		case err == nil, ctx.Err() != nil:
		case errors.Is(err, ErrStaleResponse):
			l.logger.Debug("poll resolved out of order")
		default:
			l.logger.Debug("poll failed", "error", err)
		}
	}()
}
