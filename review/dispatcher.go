package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Strategy decides how the displayed list reacts to a successful update
// before resynchronization runs.
type Strategy int

const (
	// OptimisticRemoveOnSuccess drops the row locally, then resynchronizes.
	OptimisticRemoveOnSuccess Strategy = iota + 1
	// RefreshOnlyOnSuccess leaves the list untouched until resynchronization.
	RefreshOnlyOnSuccess
)

func (s Strategy) String() string {
	switch s {
	case OptimisticRemoveOnSuccess:
		return "optimistic_remove"
	case RefreshOnlyOnSuccess:
		return "refresh_only"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

const emptyResultMessage = "Status update was not applied"

// Outcome describes what a single Handle call did.
type Outcome struct {
	RowID        string
	Action       ActionName
	Target       Status
	Result       Result
	Notification Notification
	Removed      bool
	Invalidated  bool
	// Err is a *BusinessRejection or *TransportFailure when the update did
	// not succeed.
	Err error
}

// Succeeded reports whether the remote update was applied.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Result.Succeeded()
}

// Dispatcher turns reviewer row actions into remote status updates and keeps
// the binding in step with the outcome.
type Dispatcher struct {
	kind     Kind
	gateway  Gateway
	binding  *Binding
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewDispatcher wires a dispatcher for kind. A nil notifier discards
// notifications.
func NewDispatcher(kind Kind, gateway Gateway, binding *Binding, notifier Notifier) *Dispatcher {
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, Notification) {})
	}
	return &Dispatcher{
		kind:     kind,
		gateway:  gateway,
		binding:  binding,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
		inflight: make(map[string]struct{}),
	}
}

func (d *Dispatcher) WithLogger(logger *slog.Logger) *Dispatcher {
	if logger != nil {
		d.logger = logger
	}
	return d
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

func (d *Dispatcher) WithIDGenerator(gen func() string) *Dispatcher {
	d.newID = gen
	return d
}

// Handle applies action to rowID. It issues exactly one remote update and at
// most one notification; the binding is invalidated only when the update
// succeeds. The returned error is reserved for actions that were refused
// before reaching the gateway (ErrMissingRowID, ErrRowInFlight); business and
// transport failures are reported through Outcome.Err.
func (d *Dispatcher) Handle(ctx context.Context, rowID string, action ActionName) (Outcome, error) {
	if rowID == "" {
		return Outcome{}, ErrMissingRowID
	}
	out := Outcome{RowID: rowID, Action: action, Target: ResolveStatus(action)}

	if !d.acquire(rowID) {
		d.logger.InfoContext(ctx, "review: action refused, row busy", "kind", d.kind.Name, "row_id", rowID)
		return out, ErrRowInFlight
	}
	defer d.release(rowID)

	ctx, span := otel.Tracer("reviewdesk/review").Start(ctx, "review.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("review.kind", d.kind.Name),
		attribute.String("review.row_id", rowID),
		attribute.String("review.target", string(out.Target)),
		attribute.String("review.strategy", d.kind.Strategy.String()),
	)

	// In-flight writes are not cancelled when the caller goes away.
	ctx = context.WithoutCancel(ctx)

	result, err := d.gateway.UpdateStatus(ctx, rowID, out.Target)
	switch {
	case err != nil:
		out.Err = asTransportFailure(err)
		out.Notification = d.notify(ctx, rowID, "Error",
			fmt.Sprintf("%s: %s", d.kind.FailurePrefix, FailureDetail(err)), SeverityError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		d.logger.WarnContext(ctx, "review: update status failed", "kind", d.kind.Name, "row_id", rowID, "target", out.Target, "err", err)

	case !result.Succeeded():
		out.Result = result
		out.Err = &BusinessRejection{RowID: rowID, Result: result}
		msg := string(result)
		if msg == "" {
			msg = emptyResultMessage
		}
		out.Notification = d.notify(ctx, rowID, "Error", msg, SeverityError)
		span.SetStatus(codes.Error, "business rejection")
		d.logger.InfoContext(ctx, "review: update status rejected", "kind", d.kind.Name, "row_id", rowID, "result", msg)

	default:
		out.Result = result
		out.Notification = d.notify(ctx, rowID, "Success",
			fmt.Sprintf("%s %s", d.kind.Label, out.Target), SeveritySuccess)
		if d.kind.Strategy == OptimisticRemoveOnSuccess {
			out.Removed = d.binding.Remove(rowID)
		}
		d.binding.Invalidate(ctx)
		out.Invalidated = true
		span.SetAttributes(attribute.Bool("review.removed", out.Removed))
	}

	return out, nil
}

// InFlight reports whether rowID currently has an update outstanding.
func (d *Dispatcher) InFlight(rowID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[rowID]
	return ok
}

func (d *Dispatcher) acquire(rowID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[rowID]; busy {
		return false
	}
	d.inflight[rowID] = struct{}{}
	return true
}

func (d *Dispatcher) release(rowID string) {
	d.mu.Lock()
	delete(d.inflight, rowID)
	d.mu.Unlock()
}

func (d *Dispatcher) notify(ctx context.Context, rowID, title, message string, severity Severity) Notification {
	n := Notification{
		ID:        d.newID(),
		Title:     title,
		Message:   message,
		Severity:  severity,
		Kind:      d.kind.Name,
		RowID:     rowID,
		CreatedAt: d.now(),
	}
	d.notifier.Notify(ctx, n)
	return n
}

func asTransportFailure(err error) *TransportFailure {
	var tf *TransportFailure
	if errors.As(err, &tf) {
		return tf
	}
	return &TransportFailure{Err: err}
}
