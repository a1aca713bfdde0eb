package loan

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
	KindName = "loans"

	outboxTopicReviewed = "loan.reviewed"
	maxListLimit        = 500
)

var (
	// ErrInvalidStatus is returned when an update targets a non-terminal status.
	ErrInvalidStatus = errors.New("loan: invalid target status")
	// ErrInvalidApplication signals intake data that fails validation.
	ErrInvalidApplication = errors.New("loan: invalid application")
)

// Repository provides access to loans stored in PostgreSQL.
type Repository struct {
	pool    *pgxpool.Pool
	journal *ledger.Journal
}

func NewRepository(pool *pgxpool.Pool, journal *ledger.Journal) *Repository {
	if journal == nil {
		journal = ledger.NewJournal()
	}
	return &Repository{pool: pool, journal: journal}
}

const selectColumns = `id::text, name, amount, interest_rate, term_months, loan_type, loan_status, reviewed_by, reviewed_at, created_at, updated_at`

// List returns loans in every status, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Loan, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT ` + selectColumns + `
		FROM loans
		ORDER BY created_at DESC, id
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("loan: list: %w", err)
	}
	defer rows.Close()

	out := make([]Loan, 0, 16)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("loan: scan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loan: iterate: %w", err)
	}
	return out, nil
}

// Create stores a new application in the pending status.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Loan, error) {
	if err := validateApplication(&params); err != nil {
		return Loan{}, err
	}

	insertSQL := `
		INSERT INTO loans (name, amount, interest_rate, term_months, loan_type, loan_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + selectColumns

	l, err := scanLoan(r.pool.QueryRow(ctx, insertSQL,
		params.Name,
		params.Amount,
		params.InterestRate,
		params.TermMonths,
		params.Type,
		string(StatusPending),
	))
	if err != nil {
		return Loan{}, fmt.Errorf("loan: insert: %w", err)
	}
	return l, nil
}

// UpdateStatus moves a pending loan to a terminal status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, next review.Status) (review.Result, error) {
	if !review.IsTerminal(next) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	if uuid.Validate(id) != nil {
		return review.ResultNotFound, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("loan: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	if err := tx.QueryRow(ctx, `SELECT loan_status FROM loans WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return review.ResultNotFound, nil
		}
		return "", fmt.Errorf("loan: fetch current status: %w", err)
	}
	if review.Status(current) != StatusPending {
		return review.ResultAlreadyReviewed, nil
	}

	actor := review.ActorFrom(ctx)
	var actorPtr *string
	if actor != "" {
		actorPtr = &actor
	}

	if _, err := tx.Exec(ctx, `
		UPDATE loans
		SET loan_status = $1,
		    reviewed_by = $2,
		    reviewed_at = now(),
		    updated_at = now()
		WHERE id = $3
	`, string(next), actorPtr, id); err != nil {
		return "", fmt.Errorf("loan: update status: %w", err)
	}

	if err := r.journal.Record(ctx, tx, ledger.Decision{
		Kind:     KindName,
		RecordID: id,
		Previous: current,
		Next:     string(next),
		ActorID:  actor,
		Topic:    outboxTopicReviewed,
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("loan: commit status: %w", err)
	}
	return review.ResultSuccess, nil
}

func validateApplication(params *CreateParams) error {
	params.Name = strings.TrimSpace(params.Name)
	params.Type = strings.TrimSpace(params.Type)
	switch {
	case params.Name == "":
		return fmt.Errorf("%w: name required", ErrInvalidApplication)
	case params.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidApplication)
	case params.InterestRate < 0:
		return fmt.Errorf("%w: interest rate must not be negative", ErrInvalidApplication)
	case params.TermMonths <= 0:
		return fmt.Errorf("%w: term must be positive", ErrInvalidApplication)
	}
	return nil
}

func scanLoan(row pgx.Row) (Loan, error) {
	var (
		l      Loan
		status string
	)
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Amount,
		&l.InterestRate,
		&l.TermMonths,
		&l.Type,
		&status,
		&l.ReviewedBy,
		&l.ReviewedAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return Loan{}, err
	}
	l.Status = review.Status(status)
	return l, nil
}
