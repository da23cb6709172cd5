// Package notify delivers cart notifications to whoever shows them: the
// per-session toast feed the UI polls, the log, and the event bus.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/geb2701/storefront/internal/domain"
)

// DefaultFeedSize is how many undrained toasts a session keeps.
const DefaultFeedSize = 20

var notificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "storefront_notifications_dropped_total",
	Help: "Toasts evicted from a session feed before the UI drained them.",
})

// Notifier receives every notification a cart emits. Delivery is best effort
// so Notify has no error to return.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n domain.Notification)

func (f NotifierFunc) Notify(ctx context.Context, n domain.Notification) { f(ctx, n) }

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Feed is a bounded per-session queue. When a queue is full the oldest
// toast is dropped.
type Feed struct {
	mu     sync.Mutex
	size   int
	queues map[string][]domain.Notification
}

// NewFeed creates a feed keeping at most size toasts per session.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{
		size:   size,
		queues: make(map[string][]domain.Notification),
	}
}

// Notify queues n under its session id. Notifications without one are ignored.
func (f *Feed) Notify(_ context.Context, n domain.Notification) {
	f.Push(n)
}

// Push queues n under n.SessionID.
func (f *Feed) Push(n domain.Notification) {
	if n.SessionID == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	q := append(f.queues[n.SessionID], n)
	if over := len(q) - f.size; over > 0 {
		notificationsDropped.Add(float64(over))
		q = append([]domain.Notification(nil), q[over:]...)
	}
	f.queues[n.SessionID] = q
}

// Drain returns and forgets every queued toast for sessionID, oldest first.
// The result is never nil.
func (f *Feed) Drain(sessionID string) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := f.queues[sessionID]
	delete(f.queues, sessionID)
	if q == nil {
		return []domain.Notification{}
	}
	return q
}

// Forget discards every queued toast for sessionID.
func (f *Feed) Forget(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.queues, sessionID)
}

// Sessions returns how many sessions have toasts waiting.
func (f *Feed) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues)
}

// Pending reports how many toasts wait for sessionID.
func (f *Feed) Pending(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues[sessionID])
}

// LogNotifier writes every notification to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs at info level, or warn for
// error toasts.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n domain.Notification) {
	level := slog.LevelInfo
	if n.Severity == domain.SeverityError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "cart notification",
		slog.String("session_id", n.SessionID),
		slog.String("severity", string(n.Severity)),
		slog.String("title", n.Title),
		slog.String("body", n.Body),
	)
}
