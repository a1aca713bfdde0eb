package review

import (
	"context"
	"slices"
	"sync"
)

type updateCall struct {
	ID     string
	Status Status
}

type fakeGateway struct {
	mu        sync.Mutex
	records   []Record
	fetchErr  error
	fetches   int
	result    Result
	updateErr error
	updates   []updateCall
	// block, when set, holds UpdateStatus until it is closed.
	block   chan struct{}
	started chan struct{}
	// applied removes the updated record from subsequent fetches on success.
	applied bool
	// fetchHold, when set, holds the next FetchRecords after it has read the
	// records; fetchEntered is signalled once that fetch is holding.
	fetchHold    chan struct{}
	fetchEntered chan struct{}
}

func (f *fakeGateway) FetchRecords(context.Context) ([]Record, error) {
	f.mu.Lock()
	f.fetches++
	err := f.fetchErr
	records := slices.Clone(f.records)
	hold, entered := f.fetchHold, f.fetchEntered
	f.fetchHold, f.fetchEntered = nil, nil
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

// holdNextFetch makes the next FetchRecords block until the returned release
// func is called. The returned channel receives once the fetch is blocked.
func (f *fakeGateway) holdNextFetch() (entered <-chan struct{}, release func()) {
	hold := make(chan struct{})
	in := make(chan struct{}, 1)
	f.mu.Lock()
	f.fetchHold, f.fetchEntered = hold, in
	f.mu.Unlock()
	return in, func() { close(hold) }
}

func (f *fakeGateway) setRecords(records []Record) {
	f.mu.Lock()
	f.records = records
	f.mu.Unlock()
}

func (f *fakeGateway) UpdateStatus(_ context.Context, id string, status Status) (Result, error) {
	f.mu.Lock()
	f.updates = append(f.updates, updateCall{ID: id, Status: status})
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return "", f.updateErr
	}
	if f.result.Succeeded() && f.applied {
		f.records = slices.DeleteFunc(f.records, func(r Record) bool { return r.ID == id })
	}
	return f.result, nil
}

func (f *fakeGateway) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeGateway) updateCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.updates)
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

func transactionKind() Kind {
	return Kind{
		Name:          "transactions",
		Label:         "Transaction",
		FailurePrefix: "Failed to update transaction",
		Annotator:     AlwaysReviewable,
		Strategy:      OptimisticRemoveOnSuccess,
	}
}

func loanKind() Kind {
	return Kind{
		Name:          "loans",
		Label:         "Loan",
		FailurePrefix: "Failed to update loan status",
		Annotator:     PendingOnly("Pending"),
		Strategy:      RefreshOnlyOnSuccess,
	}
}

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
