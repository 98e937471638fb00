// Package livesync keeps a local copy of the backend's incident set current.
//
// The Repository holds the last applied snapshot and the backend connectivity
// status; the Loop drives Repository.Refresh on a fixed interval. Snapshots
// are always replaced wholesale, never merged.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrStaleResponse is returned by Refresh when a newer attempt was applied
// before this one resolved. The response was discarded.
var ErrStaleResponse = errors.New("stale poll response discarded")

// Fetcher loads the full current incident set.
type Fetcher interface {
	FetchIncidents(ctx context.Context) ([]domain.Incident, error)
}

// SnapshotSink receives every snapshot applied after a successful poll.
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, snap Snapshot) error
}

// Snapshot is the repository's observable state at one point in time.
// Incidents is shared with the repository and must not be modified.
type Snapshot struct {
	Incidents []domain.Incident
	Online    bool
	Seq       uint64    // sequence number of the attempt that produced this state
	UpdatedAt time.Time // when Incidents was last replaced; zero before the first success
}

// Repository is the client-side cache of the current incident set.
type Repository struct {
	fetcher Fetcher
	sink    SnapshotSink
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	nextSeq atomic.Uint64

	mu         sync.RWMutex
	incidents  []domain.Incident
	online     bool
	appliedSeq uint64
	updatedAt  time.Time
	subs       map[uint64]chan Snapshot
	nextSub    uint64
}

// NewRepository creates an empty, offline repository. Pass a nil sink to
// disable snapshot fan-out.
func NewRepository(fetcher Fetcher, sink SnapshotSink, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Repository {
	return &Repository{
		fetcher:   fetcher,
		sink:      sink,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		incidents: []domain.Incident{},
		subs:      make(map[uint64]chan Snapshot),
	}
}

// Refresh fetches the full incident set and, if no newer attempt has been
// applied meanwhile, replaces the cached collection and marks the repository
// online. A failed fetch marks it offline and leaves the cached collection
// untouched. Outcomes that resolve after ctx is cancelled are discarded.
func (r *Repository) Refresh(ctx context.Context) error {
	seq := r.nextSeq.Add(1)

	start := r.clock.Now()
	incidents, err := r.fetcher.FetchIncidents(ctx)
	r.metrics.PollDuration.Observe(r.clock.Since(start).Seconds())

	if ctx.Err() != nil {
		r.metrics.PollAttempts.WithLabelValues("discarded").Inc()
		return fmt.Errorf("refresh incidents: %w", ctx.Err())
	}

	snap, applied := r.apply(seq, incidents, err)
	if !applied {
		r.metrics.PollAttempts.WithLabelValues("stale").Inc()
		r.logger.Debug("discarding stale poll response", "seq", seq, "applied_seq", snap.Seq)
		return ErrStaleResponse
	}

	if err != nil {
		r.metrics.PollAttempts.WithLabelValues("failure").Inc()
		return fmt.Errorf("refresh incidents: %w", err)
	}
	r.metrics.PollAttempts.WithLabelValues("success").Inc()

	if r.sink != nil {
		if err := r.sink.PublishSnapshot(ctx, snap); err != nil {
			r.logger.Warn("snapshot publish failed", "seq", seq, "error", err)
		} else {
			r.metrics.SnapshotsPublished.Inc()
		}
	}
	return nil
}

// apply records the outcome of attempt seq unless a newer attempt already
// resolved. It returns the resulting snapshot and whether seq was applied.
func (r *Repository) apply(seq uint64, incidents []domain.Incident, fetchErr error) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq <= r.appliedSeq {
		return r.snapshotLocked(), false
	}
	r.appliedSeq = seq

	wasOnline := r.online
	if fetchErr != nil {
		r.online = false
		if wasOnline {
			r.logger.Warn("backend unreachable, keeping last snapshot", "seq", seq, "error", fetchErr)
		}
	} else {
		r.incidents = append(make([]domain.Incident, 0, len(incidents)), incidents...)
		r.online = true
		r.updatedAt = r.clock.Now()
		if !wasOnline {
			r.logger.Info("backend online", "seq", seq, "incidents", len(incidents))
		}
	}

	r.metrics.IncidentsCached.Set(float64(len(r.incidents)))
	if r.online {
		r.metrics.BackendOnline.Set(1)
	} else {
		r.metrics.BackendOnline.Set(0)
	}

	snap := r.snapshotLocked()
	r.broadcastLocked(snap)
	return snap, true
}

func (r *Repository) snapshotLocked() Snapshot {
	return Snapshot{
		Incidents: r.incidents,
		Online:    r.online,
		Seq:       r.appliedSeq,
		UpdatedAt: r.updatedAt,
	}
}

// broadcastLocked hands snap to every subscriber, replacing any snapshot a
// slow subscriber has not picked up yet.
func (r *Repository) broadcastLocked(snap Snapshot) {
	for _, ch := range r.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Snapshot returns the current state.
func (r *Repository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Incidents returns a copy of the cached incident collection.
func (r *Repository) Incidents() []domain.Incident {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Incident(nil), r.incidents...)
}

// Online reports whether the most recently applied poll succeeded.
func (r *Repository) Online() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.online
}

// Subscribe returns a channel that receives each newly applied snapshot.
// A subscriber only ever sees the latest one; intermediate snapshots are
// dropped if it falls behind. The returned func unsubscribes and closes the
// channel.
func (r *Repository) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(ch)
		})
	}
}

// CheckReadiness returns nil once the backend has been reached and the last
// applied poll succeeded.
func (r *Repository) CheckReadiness(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.appliedSeq == 0 {
		return errors.New("no incident poll has completed yet")
	}
	if !r.online {
		return errors.New("backend unreachable")
	}
	return nil
}
