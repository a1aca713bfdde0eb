package review

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Gateway is the remote service holding the records. FetchRecords must be
// idempotent; UpdateStatus returns a Result for calls that reached the
// service and an error when the call itself failed.
type Gateway interface {
	FetchRecords(ctx context.Context) ([]Record, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Result, error)
}

// Binding keeps the latest snapshot of a gateway's records and the displayed
// list derived from it. The displayed list is replaced on every fetch and is
// otherwise only changed through Remove.
type Binding struct {
	gateway Gateway
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	snapshot  Snapshot
	displayed []Record
	listeners map[uint64]func(Snapshot)
	nextID    uint64
	version   uint64
	// fetchSeq numbers fetches as they start. A result is applied only when
	// its fetch started after the last applied fetch and the last Remove.
	fetchSeq  uint64
	appliedAt uint64
	removedAt uint64
}

// NewBinding builds a binding over gateway. No fetch happens until Subscribe
// or Invalidate is called.
func NewBinding(gateway Gateway) *Binding {
	return &Binding{
		gateway:   gateway,
		logger:    slog.Default(),
		now:       time.Now,
		listeners: make(map[uint64]func(Snapshot)),
	}
}

func (b *Binding) WithLogger(logger *slog.Logger) *Binding {
	if logger != nil {
		b.logger = logger
	}
	return b
}

func (b *Binding) WithClock(now func() time.Time) *Binding {
	b.now = now
	return b
}

// Subscribe registers fn for every future snapshot and performs a fetch, so
// subscribing and re-subscribing always observe fresh data. The returned func
// removes the listener.
func (b *Binding) Subscribe(ctx context.Context, fn func(Snapshot)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if fn != nil {
		b.listeners[id] = fn
	}
	b.mu.Unlock()

	b.Invalidate(ctx)

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Invalidate forces a fetch and replaces the snapshot wholesale. A failed
// fetch stores the error and clears the records; it is not retried. A fetch
// overtaken by a newer fetch or by a Remove is discarded and the current
// snapshot is returned instead.
func (b *Binding) Invalidate(ctx context.Context) Snapshot {
	ctx, span := otel.Tracer("reviewdesk/review").Start(ctx, "review.fetch")
	defer span.End()

	b.mu.Lock()
	b.fetchSeq++
	seq := b.fetchSeq
	b.mu.Unlock()

	records, err := b.gateway.FetchRecords(ctx)

	b.mu.Lock()
	if seq <= b.appliedAt || seq <= b.removedAt {
		current := b.snapshot
		current.Records = slices.Clone(current.Records)
		b.mu.Unlock()
		span.SetAttributes(attribute.Bool("review.snapshot.stale", true))
		b.logger.DebugContext(ctx, "review: discarded stale fetch", "seq", seq, "version", current.Version)
		return current
	}
	b.appliedAt = seq
	b.version++
	next := Snapshot{Version: b.version, FetchedAt: b.now()}
	if err != nil {
		next.Err = err
		b.displayed = nil
	} else {
		next.Records = slices.Clone(records)
		if next.Records == nil {
			next.Records = []Record{}
		}
		b.displayed = slices.Clone(next.Records)
	}
	b.snapshot = next
	listeners := make([]func(Snapshot), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	span.SetAttributes(
		attribute.Int64("review.snapshot.version", int64(next.Version)),
		attribute.Int("review.snapshot.records", len(next.Records)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.WarnContext(ctx, "review: fetch records failed", "version", next.Version, "err", err)
	}

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// Snapshot returns the last fetched snapshot.
func (b *Binding) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := b.snapshot
	snap.Records = slices.Clone(snap.Records)
	return snap
}

// Displayed returns the records currently on screen: the snapshot minus any
// optimistic removals made since the last fetch.
func (b *Binding) Displayed() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.displayed)
}

// Rows returns the displayed records decorated by annotate.
func (b *Binding) Rows(annotate Annotator) []Row {
	return Annotate(b.Displayed(), annotate)
}

// Lookup finds a displayed record by id.
func (b *Binding) Lookup(id string) (Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, rec := range b.displayed {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// Remove drops id from the displayed list ahead of resynchronization. It
// reports whether a row was removed.
func (b *Binding) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removedAt = b.fetchSeq
	before := len(b.displayed)
	b.displayed = slices.DeleteFunc(b.displayed, func(rec Record) bool {
		return rec.ID == id
	})
	return len(b.displayed) != before
}
