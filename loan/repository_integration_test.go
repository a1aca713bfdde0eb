package loan

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"reviewdesk/review"
)

func TestLoanReviewLifecycle_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	var exists bool
	if err := pool.QueryRow(ctx, `SELECT to_regclass('public.loans') IS NOT NULL AND to_regclass('public.review_events') IS NOT NULL`).Scan(&exists); err != nil {
		t.Fatalf("check schema: %v", err)
	}
	if !exists {
		t.Skip("loans schema missing; apply migrations first")
	}

	repo := NewRepository(pool, nil)
	l, err := repo.Create(ctx, CreateParams{
		Name:         fmt.Sprintf("itest-loan-%d", time.Now().UnixNano()),
		Amount:       42000,
		InterestRate: 5.25,
		TermMonths:   48,
		Type:         "Auto",
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM outbox WHERE payload->>'record_id' = $1`, l.ID)
		pool.Exec(ctx2, `DELETE FROM review_events WHERE record_id = $1`, l.ID)
		pool.Exec(ctx2, `DELETE FROM loans WHERE id = $1`, l.ID)
	})

	if l.Status != StatusPending {
		t.Fatalf("new loan status = %q", l.Status)
	}

	res, err := repo.UpdateStatus(ctx, l.ID, review.StatusApproved)
	if err != nil || res != review.ResultSuccess {
		t.Fatalf("first review: %q, %v", res, err)
	}
	res, err = repo.UpdateStatus(ctx, l.ID, review.StatusRejected)
	if err != nil || res != review.ResultAlreadyReviewed {
		t.Fatalf("second review: %q, %v", res, err)
	}

	loans, err := repo.List(ctx, 500)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, got := range loans {
		if got.ID == l.ID {
			found = true
			if got.Status != review.StatusApproved || got.ReviewedAt == nil {
				t.Fatalf("reviewed loan = %+v", got)
			}
		}
	}
	if !found {
		t.Fatalf("decided loans stay listed")
	}

	if _, err := repo.UpdateStatus(ctx, l.ID, StatusPending); err == nil {
		t.Fatalf("expected ErrInvalidStatus for non-terminal target")
	}
	if res, err := repo.UpdateStatus(ctx, "not-a-uuid", review.StatusApproved); err != nil || res != review.ResultNotFound {
		t.Fatalf("malformed id: %q, %v", res, err)
	}
}
