package review

// Annotator derives the row actions permitted for a record from its status.
type Annotator func(Record) []RowAction

func reviewActions() []RowAction {
	return []RowAction{
		{Label: "Approve", Name: ActionApprove},
		{Label: "Reject", Name: ActionReject},
	}
}

// AlwaysReviewable offers approve and reject for every listed record. It is
// used by kinds whose listing query only returns items awaiting review.
func AlwaysReviewable(Record) []RowAction {
	return reviewActions()
}

// PendingOnly offers approve and reject only while the record is in the
// pending status, so rows that already left it after a delayed refresh show
// no actions.
func PendingOnly(pending Status) Annotator {
	return func(rec Record) []RowAction {
		if rec.Status != pending {
			return []RowAction{}
		}
		return reviewActions()
	}
}

// Annotate decorates records with the actions produced by annotate.
func Annotate(records []Record, annotate Annotator) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{Record: rec, Actions: annotate(rec)})
	}
	return rows
}
