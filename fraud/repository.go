package fraud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reviewdesk/ledger"
	"reviewdesk/review"
)

const (
	// KindName identifies transaction records in URLs, logs and the ledger.
	KindName = "transactions"

	outboxTopicReviewed = "transaction.reviewed"
	maxListLimit        = 500
)

var (
	// ErrInvalidStatus is returned when an update targets a non-terminal status.
	ErrInvalidStatus = errors.New("fraud: invalid target status")
	// ErrInvalidTransaction signals intake data that fails validation.
	ErrInvalidTransaction = errors.New("fraud: invalid transaction")
)

// Repository provides access to transactions stored in PostgreSQL.
type Repository struct {
	pool    *pgxpool.Pool
	journal *ledger.Journal
	scorer  Scorer
}

// NewRepository wires a pgxpool-backed repository. A nil journal uses the
// default ledger journal.
func NewRepository(pool *pgxpool.Pool, journal *ledger.Journal, scorer Scorer) *Repository {
	if journal == nil {
		journal = ledger.NewJournal()
	}
	return &Repository{pool: pool, journal: journal, scorer: scorer}
}

const selectColumns = `id::text, name, amount, transaction_type, account_balance_after, fraud_score, fraud_flag, approval_status, reviewed_by, reviewed_at, created_at, updated_at`

// ListFlagged returns flagged transactions awaiting review, newest first.
func (r *Repository) ListFlagged(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT ` + selectColumns + `
		FROM transactions
		WHERE fraud_flag AND approval_status = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, string(StatusUnflagged), limit)
	if err != nil {
		return nil, fmt.Errorf("fraud: list flagged: %w", err)
	}
	defer rows.Close()

	out := make([]Transaction, 0, 16)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("fraud: scan transaction: %w", err)
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fraud: iterate transactions: %w", err)
	}
	return out, nil
}

// Create scores and stores a new transaction. Transactions the scorer sends
// to review are flagged and show up in ListFlagged.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Transaction, error) {
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return Transaction{}, fmt.Errorf("%w: name required", ErrInvalidTransaction)
	}
	if params.Amount < 0 {
		return Transaction{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidTransaction)
	}

	assessment := r.scorer.Assess(ScoreInput{
		Amount:              params.Amount,
		Type:                params.Type,
		AccountBalanceAfter: params.AccountBalanceAfter,
	})

	insertSQL := `
		INSERT INTO transactions (name, amount, transaction_type, account_balance_after, fraud_score, fraud_flag, approval_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + selectColumns

	txn, err := scanTransaction(r.pool.QueryRow(ctx, insertSQL,
		params.Name,
		params.Amount,
		params.Type,
		params.AccountBalanceAfter,
		assessment.Score,
		assessment.Decision == DecisionReview,
		string(StatusUnflagged),
	))
	if err != nil {
		return Transaction{}, fmt.Errorf("fraud: insert transaction: %w", err)
	}
	return txn, nil
}

// UpdateStatus applies a terminal review status. Unknown and already
// reviewed transactions produce a business result instead of an error; the
// row lock makes concurrent reviewers observe exactly one success.
func (r *Repository) UpdateStatus(ctx context.Context, id string, next review.Status) (review.Result, error) {
	if !review.IsTerminal(next) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	if uuid.Validate(id) != nil {
		return review.ResultNotFound, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("fraud: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		current string
		score   int
	)
	err = tx.QueryRow(ctx, `SELECT approval_status, fraud_score FROM transactions WHERE id = $1 FOR UPDATE`, id).Scan(&current, &score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return review.ResultNotFound, nil
		}
		return "", fmt.Errorf("fraud: fetch current status: %w", err)
	}
	if review.IsTerminal(review.Status(current)) {
		return review.ResultAlreadyReviewed, nil
	}

	actor := review.ActorFrom(ctx)
	var actorPtr *string
	if actor != "" {
		actorPtr = &actor
	}

	if _, err := tx.Exec(ctx, `
		UPDATE transactions
		SET approval_status = $1,
		    reviewed_by = $2,
		    reviewed_at = now(),
		    updated_at = now()
		WHERE id = $3
	`, string(next), actorPtr, id); err != nil {
		return "", fmt.Errorf("fraud: update status: %w", err)
	}

	if err := r.journal.Record(ctx, tx, ledger.Decision{
		Kind:     KindName,
		RecordID: id,
		Previous: current,
		Next:     string(next),
		ActorID:  actor,
		Topic:    outboxTopicReviewed,
		Payload:  map[string]any{"fraud_score": score},
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("fraud: commit status: %w", err)
	}
	return review.ResultSuccess, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn    Transaction
		status string
	)
	err := row.Scan(
		&txn.ID,
		&txn.Name,
		&txn.Amount,
		&txn.Type,
		&txn.AccountBalanceAfter,
		&txn.FraudScore,
		&txn.FraudFlag,
		&status,
		&txn.ReviewedBy,
		&txn.ReviewedAt,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return Transaction{}, err
	}
	txn.ApprovalStatus = review.Status(status)
	return txn, nil
}
