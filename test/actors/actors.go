package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"reviewdesk/fraud"
	"reviewdesk/ledger"
	"reviewdesk/loan"
	"reviewdesk/review"
)

// Tally records what reviewers observed so the test can compare it with the
// database afterwards.
type Tally struct {
	mu        sync.Mutex
	successes map[string]string
	rejected  int
	transport int
	busy      int
}

func NewTally() *Tally {
	return &Tally{successes: make(map[string]string)}
}

// success records a won review and reports an error if the record was
// already won by someone else.
func (t *Tally) success(kind, id, actor string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := kind + "/" + id
	if prev, ok := t.successes[key]; ok {
		return fmt.Errorf("%s reviewed twice: by %s and %s", key, prev, actor)
	}
	t.successes[key] = actor
	return nil
}

func (t *Tally) count(field *int) {
	t.mu.Lock()
	*field++
	t.mu.Unlock()
}

// Successes returns the number of reviews that reported Success.
func (t *Tally) Successes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.successes)
}

func (t *Tally) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("success=%d rejected=%d transport=%d busy=%d", len(t.successes), t.rejected, t.transport, t.busy)
}

// Intake keeps feeding new loan applications and transactions.
func Intake(ctx context.Context, loans *loan.Repository, txns *fraud.Repository, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if i%2 == 0 {
			_, err := loans.Create(ctx, loan.CreateParams{
				Name:         fmt.Sprintf("stress-loan-%d", rand.Int63()),
				Amount:       float64(1000 + rand.Intn(500000)),
				InterestRate: float64(rand.Intn(1200)) / 100,
				TermMonths:   12 * (1 + rand.Intn(30)),
				Type:         "Personal",
			})
			if err != nil && !transient(ctx, err) {
				return fmt.Errorf("intake loan: %w", err)
			}
		} else {
			types := []string{"Deposit", "Withdrawal", "Transfer"}
			_, err := txns.Create(ctx, fraud.CreateParams{
				Name:                fmt.Sprintf("stress-txn-%d", rand.Int63()),
				Amount:              float64(rand.Intn(20000)),
				Type:                types[rand.Intn(len(types))],
				AccountBalanceAfter: float64(rand.Intn(2000) - 500),
			})
			if err != nil && !transient(ctx, err) {
				return fmt.Errorf("intake transaction: %w", err)
			}
		}
		time.Sleep(time.Duration(20+rand.Intn(30)) * time.Millisecond)
	}
}

// Reviewer picks random actionable rows from the panels it shares with other
// reviewers and approves or rejects them.
func Reviewer(ctx context.Context, actorID string, panels []*review.Panel, tally *Tally, stop <-chan struct{}) error {
	ctx = review.WithActor(ctx, actorID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		p := panels[rand.Intn(len(panels))]
		view := p.View()
		if !view.Loaded || view.Err != nil || rand.Intn(4) == 0 {
			view = p.Refresh(ctx)
		}

		actionable := make([]review.Row, 0, len(view.Rows))
		for _, row := range view.Rows {
			if len(row.Actions) > 0 {
				actionable = append(actionable, row)
			}
		}
		if len(actionable) == 0 {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		row := actionable[rand.Intn(len(actionable))]
		action := row.Actions[rand.Intn(len(row.Actions))]
		out, err := p.Act(ctx, row.ID, action.Name)
		switch {
		case errors.Is(err, review.ErrRowInFlight):
			tally.count(&tally.busy)
		case err != nil:
			return fmt.Errorf("reviewer %s: %w", actorID, err)
		case out.Succeeded():
			if err := tally.success(view.Kind, row.ID, actorID); err != nil {
				return err
			}
		default:
			var br *review.BusinessRejection
			if errors.As(out.Err, &br) {
				if br.Result != review.ResultAlreadyReviewed && br.Result != review.ResultNotFound {
					return fmt.Errorf("reviewer %s: unexpected result %q", actorID, br.Result)
				}
				tally.count(&tally.rejected)
			} else {
				tally.count(&tally.transport)
			}
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// OutboxWorker drains review messages through a relay whose publisher fails
// at random.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	flaky := ledger.PublisherFunc(func(context.Context, ledger.OutboxMessage) error {
		if rand.Intn(10) == 0 {
			return errors.New("downstream unavailable")
		}
		return nil
	})
	relay := ledger.NewRelay(pool, flaky).WithMaxAttempts(10)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := relay.Drain(ctx); err != nil && !transient(ctx, err) {
			return fmt.Errorf("outbox worker: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// transient reports errors caused by chaos or shutdown rather than by the
// code under test.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, loan.ErrInvalidApplication) || errors.Is(err, fraud.ErrInvalidTransaction) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "57"), strings.HasPrefix(pgErr.Code, "08"):
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return true
		}
		return false
	}
	// terminated backends surface as plain connection errors
	return true
}
