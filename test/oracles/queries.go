package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariants that must hold at any point during a review run.
// Each query returns offending rows.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_decision",
			SQL: `SELECT record_kind, record_id, COUNT(*) FROM review_events
                  GROUP BY record_kind, record_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_loan_status_matches_event",
			SQL: `SELECT l.id, l.loan_status, e.next_status FROM loans l
                  LEFT JOIN review_events e ON e.record_kind = 'loans' AND e.record_id = l.id
                  WHERE (l.loan_status = 'Pending') <> (e.id IS NULL)
                     OR (e.id IS NOT NULL AND e.next_status <> l.loan_status)`,
		},
		{
			Name: "O3_transaction_status_matches_event",
			SQL: `SELECT t.id, t.approval_status, e.next_status FROM transactions t
                  LEFT JOIN review_events e ON e.record_kind = 'transactions' AND e.record_id = t.id
                  WHERE (t.approval_status = 'unflagged') <> (e.id IS NULL)
                     OR (e.id IS NOT NULL AND e.next_status <> t.approval_status)`,
		},
		{
			Name: "O4_only_flagged_transactions_reviewed",
			SQL: `SELECT t.id FROM transactions t
                  JOIN review_events e ON e.record_kind = 'transactions' AND e.record_id = t.id
                  WHERE NOT t.fraud_flag`,
		},
		{
			Name: "O5_reviewed_at_set",
			SQL: `SELECT id::text FROM loans WHERE (loan_status = 'Pending') <> (reviewed_at IS NULL)
                  UNION ALL
                  SELECT id::text FROM transactions WHERE (approval_status = 'unflagged') <> (reviewed_at IS NULL)`,
		},
		{
			Name: "O6_outbox_per_event",
			SQL: `SELECT e.record_kind, e.record_id FROM review_events e
                  LEFT JOIN outbox o ON o.payload->>'record_id' = e.record_id::text
                                    AND o.payload->>'record_kind' = e.record_kind
                  GROUP BY e.record_kind, e.record_id
                  HAVING COUNT(o.id) <> 1`,
		},
		{
			Name: "O7_outbox_not_stale",
			SQL: `SELECT id FROM outbox
                  WHERE status = 'pending' AND now() - created_at > interval '5 minutes'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
