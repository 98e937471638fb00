// Package notify delivers transient user-visible notifications: loading
// indicators and the success or failure messages that replace them.
package notify

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

// Kind is the visual treatment of a notification.
type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a single message. A notification sharing the ID of an
// earlier one replaces it, which is how a loading indicator turns into its
// outcome.
type Notification struct {
	ID      string
	Kind    Kind
	Message string
}

// Notifier shows notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

var nextID atomic.Uint64

// NewID returns a fresh notification id for a loading indicator.
func NewID() string {
	return "n" + strconv.FormatUint(nextID.Add(1), 10)
}

// LogNotifier writes notifications to a structured logger. It is the
// notifier for headless commands.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs through logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(note Notification) {
	attrs := []any{"kind", string(note.Kind)}
	if note.ID != "" {
		attrs = append(attrs, "notification_id", note.ID)
	}
	if note.Kind == KindError {
		n.logger.Warn(note.Message, attrs...)
		return
	}
	n.logger.Info(note.Message, attrs...)
}

// Recorder keeps every notification in order. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

// Last returns the most recent notification, if any.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return Notification{}, false
	}
	return r.notes[len(r.notes)-1], true
}

// Visible resolves replacements and returns what is currently shown, in the
// order each notification first appeared.
func (r *Recorder) Visible() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, 0, len(r.notes))
	slot := make(map[string]int)
	for _, n := range r.notes {
		if i, ok := slot[n.ID]; ok && n.ID != "" {
			out[i] = n
			continue
		}
		slot[n.ID] = len(out)
		out = append(out, n)
	}
	return out
}
