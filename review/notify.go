package review

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a notification for display.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a user-visible message produced by a row action.
type Notification struct {
	ID        string
	Title     string
	Message   string
	Severity  Severity
	Kind      string
	RowID     string
	CreatedAt time.Time
}

// Notifier surfaces notifications to the reviewer. Delivery is fire and
// forget: nothing is returned and nothing is retried.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

const defaultFeedCapacity = 100

// Feed is a bounded, in-memory Notifier the rendering layer can poll. The
// oldest notifications are dropped once capacity is reached.
type Feed struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewFeed builds a feed retaining up to capacity notifications.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &Feed{
		capacity: capacity,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (f *Feed) WithLogger(logger *slog.Logger) *Feed {
	if logger != nil {
		f.logger = logger
	}
	return f
}

func (f *Feed) WithClock(now func() time.Time) *Feed {
	f.now = now
	return f
}

// Notify records n, assigning an id and timestamp when missing.
func (f *Feed) Notify(ctx context.Context, n Notification) {
	if n.ID == "" {
		n.ID = f.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = f.now()
	}

	f.mu.Lock()
	f.items = append(f.items, n)
	if over := len(f.items) - f.capacity; over > 0 {
		f.items = append(f.items[:0:0], f.items[over:]...)
	}
	f.mu.Unlock()

	level := slog.LevelInfo
	if n.Severity == SeverityError {
		level = slog.LevelWarn
	}
	f.logger.Log(ctx, level, "review: notification",
		"id", n.ID,
		"title", n.Title,
		"message", n.Message,
		"severity", string(n.Severity),
		"kind", n.Kind,
		"row_id", n.RowID,
	)
}

// List returns up to limit notifications, newest first. A non-positive limit
// returns everything retained.
func (f *Feed) List(limit int) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > len(f.items) {
		limit = len(f.items)
	}
	out := make([]Notification, 0, limit)
	for i := len(f.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.items[i])
	}
	return out
}
