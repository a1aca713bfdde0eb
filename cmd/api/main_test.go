package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"reviewdesk/auth"
	"reviewdesk/fraud"
	"reviewdesk/loan"
	"reviewdesk/remote"
	"reviewdesk/review"
)

type stubGateway struct {
	mu       sync.Mutex
	records  []review.Record
	fetchErr error
	result   review.Result
	err      error
	actors   []string
	block    chan struct{}
	started  chan struct{}
}

func (s *stubGateway) FetchRecords(context.Context) ([]review.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return append([]review.Record(nil), s.records...), nil
}

func (s *stubGateway) UpdateStatus(ctx context.Context, id string, status review.Status) (review.Result, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors = append(s.actors, review.ActorFrom(ctx))
	if s.err == nil && s.result.Succeeded() {
		for i, rec := range s.records {
			if rec.ID == id {
				s.records[i].Status = status
			}
		}
	}
	return s.result, s.err
}

type stubVerifier struct {
	principal auth.Principal
	err       error
}

func (s stubVerifier) VerifyToken(string) (auth.Principal, error) {
	return s.principal, s.err
}

type stubKeys struct{ key string }

func (s stubKeys) Enabled() bool { return true }
func (s stubKeys) Verify(key string) error {
	if key != s.key {
		return auth.ErrServiceKeyRejected
	}
	return nil
}

type stubLoanIntake struct {
	err error
}

func (s stubLoanIntake) Create(_ context.Context, p loan.CreateParams) (loan.Loan, error) {
	if s.err != nil {
		return loan.Loan{}, s.err
	}
	return loan.Loan{ID: "L9", Name: p.Name, Amount: p.Amount, TermMonths: p.TermMonths, Status: loan.StatusPending, CreatedAt: time.Now()}, nil
}

func newTestServer(t *testing.T, gw *stubGateway, kind review.Kind) (*Server, *review.Panel) {
	t.Helper()
	feed := review.NewFeed(10)
	panel, err := review.NewPanel(kind, gw, feed, nil)
	if err != nil {
		t.Fatalf("NewPanel: %v", err)
	}
	panel.Start(context.Background(), nil)
	reg := review.NewRegistry()
	reg.Register(panel)
	return &Server{panels: reg, feed: feed, scorer: fraud.NewScorer(fraud.DefaultReviewThreshold)}, panel
}

func loanRecords() []review.Record {
	return []review.Record{
		{ID: "L1", Name: "Home", Status: loan.StatusPending, Fields: map[string]any{loan.FieldAmount: 1000.0}},
		{ID: "L2", Name: "Car", Status: review.StatusApproved},
	}
}

func TestHandlePanel_View(t *testing.T) {
	server, _ := newTestServer(t, &stubGateway{records: loanRecords()}, loan.PanelKind())

	req := httptest.NewRequest(http.MethodGet, "/api/panels/loans", nil)
	rec := httptest.NewRecorder()
	server.handlePanelDetail(rec, req.WithContext(context.WithValue(req.Context(), ctxKeyRole, auth.RoleReviewer)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp panelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Rows) != 2 || !resp.Loaded {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if len(resp.Rows[0].Actions) != 2 || len(resp.Rows[1].Actions) != 0 {
		t.Fatalf("actions must follow the pending status: %+v", resp.Rows)
	}
	if resp.Columns[len(resp.Columns)-1].Type != "action" {
		t.Fatalf("last column should be the action column: %+v", resp.Columns)
	}
}

func TestHandlePanel_ErrorReplacesTable(t *testing.T) {
	server, _ := newTestServer(t, &stubGateway{fetchErr: &review.TransportFailure{Message: "records service down"}}, loan.PanelKind())

	rec := httptest.NewRecorder()
	server.handlePanelDetail(rec, httptest.NewRequest(http.MethodGet, "/api/panels/loans", nil))

	var resp panelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "records service down" || len(resp.Rows) != 0 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandlePanel_UnknownKind(t *testing.T) {
	server, _ := newTestServer(t, &stubGateway{}, loan.PanelKind())

	rec := httptest.NewRecorder()
	server.handlePanelDetail(rec, httptest.NewRequest(http.MethodGet, "/api/panels/invoices", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlePanelAction_Success(t *testing.T) {
	gw := &stubGateway{records: loanRecords(), result: review.ResultSuccess}
	server, panel := newTestServer(t, gw, loan.PanelKind())

	req := httptest.NewRequest(http.MethodPost, "/api/panels/loans/actions", strings.NewReader(`{"rowId":"L1","action":"approve"}`))
	ctx := context.WithValue(req.Context(), ctxKeyUserID, "rev-1")
	ctx = context.WithValue(ctx, ctxKeyRole, auth.RoleReviewer)
	rec := httptest.NewRecorder()

	server.handlePanelDetail(rec, req.WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp outcomeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Succeeded || resp.Notification == nil {
		t.Fatalf("unexpected outcome: %+v", resp)
	}
	if resp.Notification.Title != "Success" || resp.Notification.Message != "Loan Approved" || resp.Notification.Variant != "success" {
		t.Fatalf("unexpected notification: %+v", resp.Notification)
	}
	if resp.Removed {
		t.Fatalf("loans are refreshed, not removed optimistically")
	}
	if len(gw.actors) != 1 || gw.actors[0] != "rev-1" {
		t.Fatalf("actor not propagated: %v", gw.actors)
	}
	if actions := panel.View().Rows[0].Actions; len(actions) != 0 {
		t.Fatalf("approved loan should lose its actions after refresh: %+v", actions)
	}

	notes := httptest.NewRecorder()
	server.handleNotifications(notes, httptest.NewRequest(http.MethodGet, "/api/notifications?limit=5", nil))
	if !strings.Contains(notes.Body.String(), "Loan Approved") {
		t.Fatalf("notification feed missing entry: %s", notes.Body.String())
	}
}

func TestHandlePanelAction_BusinessRejection(t *testing.T) {
	gw := &stubGateway{records: loanRecords(), result: review.ResultAlreadyReviewed}
	server, _ := newTestServer(t, gw, loan.PanelKind())

	req := httptest.NewRequest(http.MethodPost, "/api/panels/loans/actions", strings.NewReader(`{"rowId":"L1","action":"reject"}`))
	rec := httptest.NewRecorder()
	server.handlePanelDetail(rec, req.WithContext(context.WithValue(req.Context(), ctxKeyRole, auth.RoleReviewer)))

	var resp outcomeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Succeeded || resp.Error != "Already Reviewed" || resp.Invalidated {
		t.Fatalf("unexpected outcome: %+v", resp)
	}
}

func TestHandlePanelAction_ForbiddenForObserver(t *testing.T) {
	server, _ := newTestServer(t, &stubGateway{records: loanRecords()}, loan.PanelKind())

	req := httptest.NewRequest(http.MethodPost, "/api/panels/loans/actions", strings.NewReader(`{"rowId":"L1","action":"approve"}`))
	rec := httptest.NewRecorder()
	server.handlePanelDetail(rec, req.WithContext(context.WithValue(req.Context(), ctxKeyRole, auth.RoleObserver)))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandlePanelAction_MissingRowID(t *testing.T) {
	server, _ := newTestServer(t, &stubGateway{records: loanRecords()}, loan.PanelKind())

	req := httptest.NewRequest(http.MethodPost, "/api/panels/loans/actions", strings.NewReader(`{"action":"approve"}`))
	rec := httptest.NewRecorder()
	server.handlePanelDetail(rec, req.WithContext(context.WithValue(req.Context(), ctxKeyRole, auth.RoleReviewer)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlePanelAction_InFlightConflict(t *testing.T) {
	gw := &stubGateway{
		records: loanRecords(),
		result:  review.ResultSuccess,
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	server, _ := newTestServer(t, gw, fraud.PanelKind())

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/panels/transactions/actions", strings.NewReader(`{"rowId":"L1","action":"approve"}`))
		rec := httptest.NewRecorder()
		server.handlePanelDetail(rec, req.WithContext(context.WithValue(req.Context(), ctxKeyRole, auth.RoleReviewer)))
		return rec
	}

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- do() }()
	<-gw.started

	if rec := do(); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while first update is pending, got %d", rec.Code)
	}
	close(gw.block)
	if rec := <-first; rec.Code != http.StatusOK {
		t.Fatalf("first action: expected 200, got %d", rec.Code)
	}
}

func TestRequireReviewer(t *testing.T) {
	server := &Server{tokens: stubVerifier{principal: auth.Principal{ReviewerID: "rev-2", Role: auth.RoleSupervisor}}}
	var seen string
	h := server.requireReviewer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = userIDFrom(r.Context())
		if !roleFrom(r.Context()).CanReview() {
			t.Errorf("supervisor should be able to review")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/panels/loans", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/panels/loans", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "rev-2" {
		t.Fatalf("expected reviewer id in context, got %q", seen)
	}

	server.tokens = stubVerifier{err: auth.ErrInvalidToken}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rec.Code)
	}
}

func TestHandleRecords_RoundTripThroughRemoteClient(t *testing.T) {
	gw := &stubGateway{records: loanRecords(), result: review.ResultSuccess}
	server := &Server{records: map[string]review.Gateway{loan.KindName: gw}, keys: stubKeys{key: "k-123"}}
	ts := httptest.NewServer(server.routes())
	defer ts.Close()

	client, err := remote.NewClient(ts.URL, loan.KindName, "k-123")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	records, err := client.FetchRecords(context.Background())
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if len(records) != 2 || records[0].Status != loan.StatusPending {
		t.Fatalf("unexpected records: %+v", records)
	}

	res, err := client.UpdateStatus(review.WithActor(context.Background(), "rev-9"), "L1", review.StatusRejected)
	if err != nil || res != review.ResultSuccess {
		t.Fatalf("UpdateStatus: %q, %v", res, err)
	}
	if len(gw.actors) != 1 || gw.actors[0] != "rev-9" {
		t.Fatalf("actor header not honoured: %v", gw.actors)
	}

	bad, _ := remote.NewClient(ts.URL, loan.KindName, "wrong")
	_, err = bad.FetchRecords(context.Background())
	var tf *review.TransportFailure
	if !errors.As(err, &tf) || tf.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 transport failure, got %v", err)
	}
}

func TestHandleRecords_RejectsNonTerminalStatus(t *testing.T) {
	server := &Server{records: map[string]review.Gateway{loan.KindName: &stubGateway{}}}

	req := httptest.NewRequest(http.MethodPost, "/api/records/loans/L1/status", strings.NewReader(`{"status":"Pending"}`))
	rec := httptest.NewRecorder()
	server.handleRecords(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleCreateLoan_Validation(t *testing.T) {
	server := &Server{loans: stubLoanIntake{err: loan.ErrInvalidApplication}}

	req := httptest.NewRequest(http.MethodPost, "/api/loans", strings.NewReader(`{"name":"","amount":0}`))
	rec := httptest.NewRecorder()
	server.handleCreateLoan(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleCreateLoan_Created(t *testing.T) {
	server := &Server{loans: stubLoanIntake{}}

	req := httptest.NewRequest(http.MethodPost, "/api/loans", strings.NewReader(`{"name":"Boat","amount":9000,"interestRate":7.5,"termMonths":24,"type":"Marine"}`))
	rec := httptest.NewRecorder()
	server.handleCreateLoan(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp loanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "Pending" || resp.Name != "Boat" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleFraudDetection(t *testing.T) {
	server := &Server{scorer: fraud.NewScorer(fraud.DefaultReviewThreshold)}

	req := httptest.NewRequest(http.MethodPost, "/fraud-detection", strings.NewReader(`{"transactionAmount":15000,"transactionType":"Transfer","accountBalanceAfter":-20}`))
	rec := httptest.NewRecorder()
	server.handleFraudDetection(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp fraudDetectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.FraudScore != 150 || resp.Decision != "Review" {
		t.Fatalf("unexpected payload: %+v", resp)
	}

	rec = httptest.NewRecorder()
	server.handleFraudDetection(rec, httptest.NewRequest(http.MethodGet, "/fraud-detection", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleFraudDetection_MissingTypeScoresAsUnknown(t *testing.T) {
	server := &Server{scorer: fraud.NewScorer(fraud.DefaultReviewThreshold)}

	req := httptest.NewRequest(http.MethodPost, "/fraud-detection", strings.NewReader(`{"transactionAmount":6000,"accountBalanceAfter":100}`))
	rec := httptest.NewRecorder()
	server.handleFraudDetection(rec, req)

	var resp fraudDetectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.FraudScore != 60 || resp.Decision != "Approve" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleNotifications_LimitBoundedByFeed(t *testing.T) {
	feed := review.NewFeed(3)
	for i := 0; i < 5; i++ {
		feed.Notify(context.Background(), review.Notification{Title: "Success", Message: "Loan Approved", Severity: review.SeveritySuccess})
	}
	server := &Server{feed: feed}

	rec := httptest.NewRecorder()
	server.handleNotifications(rec, httptest.NewRequest(http.MethodGet, "/api/notifications?limit=5000000", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Items []notificationResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("expected the 3 retained notifications, got %d", len(resp.Items))
	}

	rec = httptest.NewRecorder()
	(&Server{}).handleNotifications(rec, httptest.NewRequest(http.MethodGet, "/api/notifications?limit=5000000", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty list without a feed, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePanels_ListsColumns(t *testing.T) {
	server, _ := newTestServer(t, &stubGateway{records: loanRecords()}, loan.PanelKind())

	rec := httptest.NewRecorder()
	server.handlePanels(rec, httptest.NewRequest(http.MethodGet, "/api/panels", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Items []panelSummary `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Kind != loan.KindName || resp.Items[0].Label != "Loan" {
		t.Fatalf("unexpected panels: %+v", resp.Items)
	}
	cols := resp.Items[0].Columns
	if len(cols) != len(loan.PanelKind().Columns) {
		t.Fatalf("expected %d columns, got %d", len(loan.PanelKind().Columns), len(cols))
	}
	if cols[1].FieldName != loan.FieldAmount || cols[1].Type != "currency" {
		t.Fatalf("unexpected column: %+v", cols[1])
	}
}

func TestHandleRecords_RequiresReviewerTokenWithoutServiceKey(t *testing.T) {
	gw := &stubGateway{records: loanRecords(), result: review.ResultSuccess}
	server := &Server{
		records: map[string]review.Gateway{loan.KindName: gw},
		tokens:  stubVerifier{principal: auth.Principal{ReviewerID: "rev-5", Role: auth.RoleReviewer}},
	}
	h := server.routes()

	post := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/records/loans/L1/status", strings.NewReader(`{"status":"Approved"}`))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if len(gw.actors) != 0 {
		t.Fatalf("gateway must not be called without a token")
	}

	if rec := post("abc"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with reviewer token, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(gw.actors) != 1 || gw.actors[0] != "rev-5" {
		t.Fatalf("expected decision stamped with reviewer, got %v", gw.actors)
	}

	server.tokens = stubVerifier{principal: auth.Principal{ReviewerID: "obs-1", Role: auth.RoleObserver}}
	if rec := post("abc"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for observer, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/records/loans", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("observer should still read records, got %d", rec.Code)
	}
}
