package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrReviewerNotFound signals that the reviewer does not exist.
	ErrReviewerNotFound = errors.New("auth: reviewer not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

// Repository handles data access for reviewer accounts.
type Repository interface {
	CreateReviewer(ctx context.Context, params CreateReviewerParams) (Reviewer, error)
	GetReviewerByEmail(ctx context.Context, email string) (Reviewer, error)
	GetReviewerByID(ctx context.Context, id string) (Reviewer, error)
}

// CreateReviewerParams contains write parameters for creating reviewers.
type CreateReviewerParams struct {
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const reviewerColumns = `id::text, email, full_name, password_hash, role, created_at, updated_at`

func (r *PGRepository) CreateReviewer(ctx context.Context, params CreateReviewerParams) (Reviewer, error) {
	insertSQL := `
		INSERT INTO reviewers (email, full_name, password_hash, role)
		VALUES (lower($1), $2, $3, $4)
		RETURNING ` + reviewerColumns

	rv, err := scanReviewer(r.pool.QueryRow(ctx, insertSQL, params.Email, params.FullName, params.PasswordHash, string(params.Role)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Reviewer{}, ErrDuplicateEmail
		}
		return Reviewer{}, fmt.Errorf("auth: create reviewer: %w", err)
	}
	return rv, nil
}

func (r *PGRepository) GetReviewerByEmail(ctx context.Context, email string) (Reviewer, error) {
	rv, err := scanReviewer(r.pool.QueryRow(ctx, `SELECT `+reviewerColumns+` FROM reviewers WHERE email = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reviewer{}, ErrReviewerNotFound
		}
		return Reviewer{}, fmt.Errorf("auth: get reviewer by email: %w", err)
	}
	return rv, nil
}

func (r *PGRepository) GetReviewerByID(ctx context.Context, id string) (Reviewer, error) {
	rv, err := scanReviewer(r.pool.QueryRow(ctx, `SELECT `+reviewerColumns+` FROM reviewers WHERE id::text = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reviewer{}, ErrReviewerNotFound
		}
		return Reviewer{}, fmt.Errorf("auth: get reviewer by id: %w", err)
	}
	return rv, nil
}

func scanReviewer(row pgx.Row) (Reviewer, error) {
	var (
		rv   Reviewer
		role string
	)
	if err := row.Scan(&rv.ID, &rv.Email, &rv.FullName, &rv.PasswordHash, &role, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
		return Reviewer{}, err
	}
	rv.Role = Role(role)
	return rv, nil
}
