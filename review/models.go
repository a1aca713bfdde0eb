package review

import "time"

// Status is the review state of a record. Each record kind draws its values
// from a small closed set; Approved and Rejected are shared by every kind.
type Status string

const (
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// IsTerminal reports whether no further transition is defined from status.
func IsTerminal(status Status) bool {
	return status == StatusApproved || status == StatusRejected
}

// ActionName identifies a row action triggered by a reviewer.
type ActionName string

const (
	ActionApprove ActionName = "approve"
	ActionReject  ActionName = "reject"
)

// ResolveStatus maps a row action to the status it requests. Anything other
// than approve is treated as a rejection.
func ResolveStatus(action ActionName) Status {
	if action == ActionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// Record is a reviewable business row as returned by the gateway. Fields holds
// the read-only display attributes keyed by column field name.
type Record struct {
	ID     string
	Name   string
	Status Status
	Fields map[string]any
}

// RowAction is a permissible action on a displayed row. It is derived from the
// record status and never persisted.
type RowAction struct {
	Label string
	Name  ActionName
}

// Row is a record as displayed, decorated with its current row actions.
type Row struct {
	Record
	Actions []RowAction
}

// Snapshot is the binding's view of the last fetch. Exactly one of Records
// and Err is authoritative.
type Snapshot struct {
	Records   []Record
	Err       error
	Version   uint64
	FetchedAt time.Time
}

// Loaded reports whether at least one fetch has completed.
func (s Snapshot) Loaded() bool {
	return s.Version > 0
}

// Result is the outcome reported by a status update that reached the remote
// service. Any value other than ResultSuccess is a business-level failure
// message meant to be shown verbatim.
type Result string

const (
	ResultSuccess         Result = "Success"
	ResultAlreadyReviewed Result = "Already Reviewed"
	ResultNotFound        Result = "Record Not Found"
)

// Succeeded reports whether r is the success sentinel.
func (r Result) Succeeded() bool {
	return r == ResultSuccess
}
