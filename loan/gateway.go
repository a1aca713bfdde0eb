package loan

import (
	"context"
	"fmt"

	"reviewdesk/review"
)

// Store abstracts the repository operations the gateway needs.
type Store interface {
	List(ctx context.Context, limit int) ([]Loan, error)
	UpdateStatus(ctx context.Context, id string, status review.Status) (review.Result, error)
}

// Gateway exposes loans as review records.
type Gateway struct {
	store Store
	limit int
}

func NewGateway(store Store, limit int) *Gateway {
	return &Gateway{store: store, limit: limit}
}

func (g *Gateway) FetchRecords(ctx context.Context) ([]review.Record, error) {
	loans, err := g.store.List(ctx, g.limit)
	if err != nil {
		return nil, err
	}
	records := make([]review.Record, 0, len(loans))
	for _, l := range loans {
		records = append(records, l.ToRecord())
	}
	return records, nil
}

func (g *Gateway) UpdateStatus(ctx context.Context, id string, status review.Status) (review.Result, error) {
	result, err := g.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return "", fmt.Errorf("loan: update loan %s: %w", id, err)
	}
	return result, nil
}

// PanelKind describes how loans are reviewed. The listing includes decided
// loans, so actions are gated on the pending status and the list is left to
// resynchronization after an update.
func PanelKind() review.Kind {
	return review.Kind{
		Name:          KindName,
		Label:         "Loan",
		FailurePrefix: "Failed to update loan status",
		Columns: []review.Column{
			{Label: "Loan Name", FieldName: FieldName, Type: "text"},
			{Label: "Loan Amount", FieldName: FieldAmount, Type: "currency"},
			{Label: "Interest Rate", FieldName: FieldInterestRate, Type: "percent"},
			{Label: "Loan Term", FieldName: FieldTermMonths, Type: "number"},
			{Label: "Loan Type", FieldName: FieldType, Type: "text"},
			{Label: "Status", FieldName: FieldStatus, Type: "text"},
			review.ActionColumn,
		},
		Annotator: review.PendingOnly(StatusPending),
		Strategy:  review.RefreshOnlyOnSuccess,
	}
}
