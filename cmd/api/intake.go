package main

import (
	"errors"
	"net/http"
	"time"

	"reviewdesk/fraud"
	"reviewdesk/loan"
)

type createLoanRequest struct {
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	InterestRate float64 `json:"interestRate"`
	TermMonths   int     `json:"termMonths"`
	Type         string  `json:"type"`
}

type loanResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	InterestRate float64 `json:"interestRate"`
	TermMonths   int     `json:"termMonths"`
	Type         string  `json:"type"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"createdAt"`
}

type createTransactionRequest struct {
	Name                string  `json:"name"`
	Amount              float64 `json:"amount"`
	Type                string  `json:"type"`
	AccountBalanceAfter float64 `json:"accountBalanceAfter"`
}

type transactionResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Amount         float64 `json:"amount"`
	Type           string  `json:"type"`
	FraudScore     int     `json:"fraudScore"`
	FraudFlag      bool    `json:"fraudFlag"`
	ApprovalStatus string  `json:"approvalStatus"`
	CreatedAt      string  `json:"createdAt"`
}

// fraudDetectionRequest keeps the field names of the standalone scoring
// service so existing callers work unchanged.
type fraudDetectionRequest struct {
	TransactionAmount   float64 `json:"transactionAmount"`
	TransactionType     string  `json:"transactionType"`
	AccountBalanceAfter float64 `json:"accountBalanceAfter"`
}

type fraudDetectionResponse struct {
	FraudScore int    `json:"fraudScore"`
	Decision   string `json:"decision"`
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.loans == nil {
		writeError(w, http.StatusNotFound, "loan intake is not enabled")
		return
	}
	var req createLoanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	l, err := s.loans.Create(r.Context(), loan.CreateParams{
		Name:         req.Name,
		Amount:       req.Amount,
		InterestRate: req.InterestRate,
		TermMonths:   req.TermMonths,
		Type:         req.Type,
	})
	if err != nil {
		if errors.Is(err, loan.ErrInvalidApplication) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log().ErrorContext(r.Context(), "api: create loan", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, loanResponse{
		ID:           l.ID,
		Name:         l.Name,
		Amount:       l.Amount,
		InterestRate: l.InterestRate,
		TermMonths:   l.TermMonths,
		Type:         l.Type,
		Status:       string(l.Status),
		CreatedAt:    l.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.transactions == nil {
		writeError(w, http.StatusNotFound, "transaction intake is not enabled")
		return
	}
	var req createTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	txn, err := s.transactions.Create(r.Context(), fraud.CreateParams{
		Name:                req.Name,
		Amount:              req.Amount,
		Type:                req.Type,
		AccountBalanceAfter: req.AccountBalanceAfter,
	})
	if err != nil {
		if errors.Is(err, fraud.ErrInvalidTransaction) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log().ErrorContext(r.Context(), "api: create transaction", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, transactionResponse{
		ID:             txn.ID,
		Name:           txn.Name,
		Amount:         txn.Amount,
		Type:           txn.Type,
		FraudScore:     txn.FraudScore,
		FraudFlag:      txn.FraudFlag,
		ApprovalStatus: string(txn.ApprovalStatus),
		CreatedAt:      txn.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// handleFraudDetection scores a transaction without storing it.
func (s *Server) handleFraudDetection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req fraudDetectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TransactionType == "" {
		req.TransactionType = "Unknown"
	}
	a := s.scorer.Assess(fraud.ScoreInput{
		Amount:              req.TransactionAmount,
		Type:                req.TransactionType,
		AccountBalanceAfter: req.AccountBalanceAfter,
	})
	writeJSON(w, http.StatusOK, fraudDetectionResponse{FraudScore: a.Score, Decision: string(a.Decision)})
}
