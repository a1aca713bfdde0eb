package fraud

import (
	"time"

	"reviewdesk/review"
)

// StatusUnflagged is the approval status of a transaction nobody has
// reviewed yet.
const StatusUnflagged review.Status = "unflagged"

// Transaction mirrors the transactions table.
type Transaction struct {
	ID                  string
	Name                string
	Amount              float64
	Type                string
	AccountBalanceAfter float64
	FraudScore          int
	FraudFlag           bool
	ApprovalStatus      review.Status
	ReviewedBy          *string
	ReviewedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CreateParams contains the intake data for a new transaction.
type CreateParams struct {
	Name                string
	Amount              float64
	Type                string
	AccountBalanceAfter float64
}

// Display field names shared by the panel columns and the gateway records.
const (
	FieldName           = "name"
	FieldAmount         = "amount"
	FieldType           = "type"
	FieldFraudFlag      = "fraudFlag"
	FieldFraudScore     = "fraudScore"
	FieldApprovalStatus = "approvalStatus"
)

// ToRecord projects a transaction onto the generic review record.
func (t Transaction) ToRecord() review.Record {
	return review.Record{
		ID:     t.ID,
		Name:   t.Name,
		Status: t.ApprovalStatus,
		Fields: map[string]any{
			FieldName:           t.Name,
			FieldAmount:         t.Amount,
			FieldType:           t.Type,
			FieldFraudFlag:      t.FraudFlag,
			FieldFraudScore:     t.FraudScore,
			FieldApprovalStatus: string(t.ApprovalStatus),
		},
	}
}
