package fraud

import (
	"context"
	"fmt"

	"reviewdesk/review"
)

// Store abstracts the repository operations the gateway needs.
type Store interface {
	ListFlagged(ctx context.Context, limit int) ([]Transaction, error)
	UpdateStatus(ctx context.Context, id string, status review.Status) (review.Result, error)
}

// Gateway exposes flagged transactions as review records.
type Gateway struct {
	store Store
	limit int
}

func NewGateway(store Store, limit int) *Gateway {
	return &Gateway{store: store, limit: limit}
}

func (g *Gateway) FetchRecords(ctx context.Context) ([]review.Record, error) {
	txns, err := g.store.ListFlagged(ctx, g.limit)
	if err != nil {
		return nil, err
	}
	records := make([]review.Record, 0, len(txns))
	for _, txn := range txns {
		records = append(records, txn.ToRecord())
	}
	return records, nil
}

func (g *Gateway) UpdateStatus(ctx context.Context, id string, status review.Status) (review.Result, error) {
	result, err := g.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return "", fmt.Errorf("fraud: update transaction %s: %w", id, err)
	}
	return result, nil
}

// PanelKind describes how flagged transactions are reviewed. The listing only
// contains items awaiting review, so every row offers both actions and a
// decided row is dropped locally before resynchronization.
func PanelKind() review.Kind {
	return review.Kind{
		Name:          KindName,
		Label:         "Transaction",
		FailurePrefix: "Failed to update transaction",
		Columns: []review.Column{
			{Label: "Transaction Name", FieldName: FieldName, Type: "text"},
			{Label: "Amount", FieldName: FieldAmount, Type: "currency"},
			{Label: "Type", FieldName: FieldType, Type: "text"},
			{Label: "Fraud Status", FieldName: FieldFraudFlag, Type: "boolean"},
			{Label: "Approval Status", FieldName: FieldApprovalStatus, Type: "text"},
			review.ActionColumn,
		},
		Annotator: review.AlwaysReviewable,
		Strategy:  review.OptimisticRemoveOnSuccess,
	}
}
