package review

import "context"

type ctxKey int

const ctxKeyActor ctxKey = iota

// WithActor returns a context carrying the id of the reviewer acting.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actorID)
}

// ActorFrom returns the reviewer id stored by WithActor, or "".
func ActorFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyActor).(string)
	return id
}
