package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	OutboxPending   = "pending"
	OutboxProcessed = "processed"
	OutboxDead      = "dead"

	defaultBatchSize   = 10
	defaultMaxAttempts = 5
)

// Publisher delivers an outbox message downstream.
type Publisher interface {
	Publish(ctx context.Context, msg OutboxMessage) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg OutboxMessage) error

func (f PublisherFunc) Publish(ctx context.Context, msg OutboxMessage) error { return f(ctx, msg) }

// LogPublisher writes each message to a structured logger.
func LogPublisher(logger *slog.Logger) Publisher {
	return PublisherFunc(func(ctx context.Context, msg OutboxMessage) error {
		logger.InfoContext(ctx, "outbox message published",
			"id", msg.ID,
			"topic", msg.Topic,
			"attempts", msg.Attempts,
			"payload", string(msg.Payload),
		)
		return nil
	})
}

// Relay drains pending outbox rows with SKIP LOCKED so several relays can
// run against the same table.
type Relay struct {
	pool        *pgxpool.Pool
	publisher   Publisher
	logger      *slog.Logger
	batchSize   int
	maxAttempts int
}

func NewRelay(pool *pgxpool.Pool, publisher Publisher) *Relay {
	return &Relay{
		pool:        pool,
		publisher:   publisher,
		logger:      slog.Default(),
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
	}
}

func (r *Relay) WithLogger(logger *slog.Logger) *Relay {
	if logger != nil {
		r.logger = logger
	}
	return r
}

func (r *Relay) WithBatchSize(n int) *Relay {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// WithMaxAttempts sets how many failed publishes mark a message dead.
func (r *Relay) WithMaxAttempts(n int) *Relay {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

// Drain processes one batch and reports how many messages were published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: begin relay tx: %w", err)
	}
	defer tx.Rollback(ctx)

	msgs, err := claimPending(ctx, tx, r.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, msg := range msgs {
		if perr := r.publisher.Publish(ctx, msg); perr != nil {
			next := OutboxPending
			if msg.Attempts+1 >= r.maxAttempts {
				next = OutboxDead
			}
			r.logger.WarnContext(ctx, "outbox publish failed", "id", msg.ID, "topic", msg.Topic, "attempts", msg.Attempts+1, "err", perr)
			if _, err := tx.Exec(ctx, `UPDATE outbox SET attempts = attempts + 1, status = $2, last_attempt_at = now() WHERE id = $1`, msg.ID, next); err != nil {
				return published, fmt.Errorf("ledger: record outbox failure: %w", err)
			}
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE outbox SET status = $2, last_attempt_at = now() WHERE id = $1`, msg.ID, OutboxProcessed); err != nil {
			return published, fmt.Errorf("ledger: mark outbox processed: %w", err)
		}
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ledger: commit relay tx: %w", err)
	}
	return published, nil
}

// Run drains the outbox every interval until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "err", err)
			}
		}
	}
}

func claimPending(ctx context.Context, tx pgx.Tx, limit int) ([]OutboxMessage, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, topic, payload, status, attempts, created_at
		FROM outbox
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxPending, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: claim outbox: %w", err)
	}
	defer rows.Close()

	out := make([]OutboxMessage, 0, limit)
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan outbox: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate outbox: %w", err)
	}
	return out, nil
}
