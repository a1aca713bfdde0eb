package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Decision is a single approve/reject applied to a record. It is journaled in
// review_events and published through the outbox within the same
// transaction as the status update.
type Decision struct {
	Kind     string
	RecordID string
	Previous string
	Next     string
	ActorID  string
	Topic    string
	Payload  map[string]any
}

// Event mirrors a review_events row.
type Event struct {
	ID        int64
	Kind      string
	RecordID  string
	Previous  string
	Next      string
	ActorID   *string
	Payload   []byte
	CreatedAt time.Time
}

// OutboxMessage represents a transactional outbox entry.
type OutboxMessage struct {
	ID        string
	Topic     string
	Payload   []byte
	Status    string
	Attempts  int
	CreatedAt time.Time
}

// Journal writes decisions inside a caller-owned transaction.
type Journal struct{}

func NewJournal() *Journal {
	return &Journal{}
}

// Record appends the decision event and enqueues its outbox message.
func (j *Journal) Record(ctx context.Context, tx pgx.Tx, d Decision) error {
	if d.Kind == "" || d.RecordID == "" {
		return fmt.Errorf("ledger: decision missing kind or record id")
	}
	if d.Topic == "" {
		d.Topic = d.Kind + ".reviewed"
	}

	payload := make(map[string]any, len(d.Payload)+3)
	for k, v := range d.Payload {
		payload[k] = v
	}
	payload["previous_status"] = d.Previous
	payload["next_status"] = d.Next
	if d.ActorID != "" {
		payload["actor_id"] = d.ActorID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ledger: marshal event payload: %w", err)
	}

	var actor any
	if d.ActorID != "" {
		actor = d.ActorID
	}

	const eventSQL = `
INSERT INTO review_events (record_kind, record_id, previous_status, next_status, actor_id, payload)
VALUES ($1, $2, $3, $4, $5, $6::jsonb)
`
	if _, err := tx.Exec(ctx, eventSQL, d.Kind, d.RecordID, d.Previous, d.Next, actor, body); err != nil {
		return fmt.Errorf("ledger: insert review event: %w", err)
	}

	outboxPayload := map[string]any{
		"record_kind": d.Kind,
		"record_id":   d.RecordID,
		"previous":    d.Previous,
		"next":        d.Next,
	}
	return enqueueOutbox(ctx, tx, d.Topic, outboxPayload)
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ledger: marshal outbox payload: %w", err)
	}
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, q, topic, body); err != nil {
		return fmt.Errorf("ledger: enqueue outbox: %w", err)
	}
	return nil
}
