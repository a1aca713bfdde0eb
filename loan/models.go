package loan

import (
	"time"

	"reviewdesk/review"
)

// StatusPending is the only status from which a loan can be reviewed.
const StatusPending review.Status = "Pending"

// Loan mirrors the loans table.
type Loan struct {
	ID           string
	Name         string
	Amount       float64
	InterestRate float64
	TermMonths   int
	Type         string
	Status       review.Status
	ReviewedBy   *string
	ReviewedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateParams contains the intake data for a loan application.
type CreateParams struct {
	Name         string
	Amount       float64
	InterestRate float64
	TermMonths   int
	Type         string
}

const (
	FieldName         = "name"
	FieldAmount       = "amount"
	FieldInterestRate = "interestRate"
	FieldTermMonths   = "termMonths"
	FieldType         = "type"
	FieldStatus       = "status"
)

// ToRecord projects a loan onto the generic review record.
func (l Loan) ToRecord() review.Record {
	return review.Record{
		ID:     l.ID,
		Name:   l.Name,
		Status: l.Status,
		Fields: map[string]any{
			FieldName:         l.Name,
			FieldAmount:       l.Amount,
			FieldInterestRate: l.InterestRate,
			FieldTermMonths:   l.TermMonths,
			FieldType:         l.Type,
			FieldStatus:       string(l.Status),
		},
	}
}
