package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlwaysReviewable(t *testing.T) {
	for _, status := range []Status{"unflagged", StatusApproved, StatusRejected, ""} {
		actions := AlwaysReviewable(Record{ID: "t1", Status: status})
		assert.Equal(t, []RowAction{
			{Label: "Approve", Name: ActionApprove},
			{Label: "Reject", Name: ActionReject},
		}, actions, "status %q", status)
	}
}

func TestPendingOnly(t *testing.T) {
	annotate := PendingOnly("Pending")

	assert.Len(t, annotate(Record{ID: "l1", Status: "Pending"}), 2)

	for _, status := range []Status{StatusApproved, StatusRejected, "pending", ""} {
		actions := annotate(Record{ID: "l1", Status: status})
		assert.NotNil(t, actions)
		assert.Empty(t, actions, "status %q", status)
	}
}

func TestAnnotate_PreservesOrder(t *testing.T) {
	rows := Annotate([]Record{
		{ID: "a", Status: "Pending"},
		{ID: "b", Status: StatusApproved},
	}, PendingOnly("Pending"))

	assert.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Len(t, rows[0].Actions, 2)
	assert.Equal(t, "b", rows[1].ID)
	assert.Empty(t, rows[1].Actions)
}

func TestResolveStatus(t *testing.T) {
	assert.Equal(t, StatusApproved, ResolveStatus(ActionApprove))
	assert.Equal(t, StatusRejected, ResolveStatus(ActionReject))
	assert.Equal(t, StatusRejected, ResolveStatus("escalate"))
}
