package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"reviewdesk/auth"
	"reviewdesk/fraud"
	"reviewdesk/loan"
	"reviewdesk/review"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRole
)

type tokenVerifier interface {
	VerifyToken(token string) (auth.Principal, error)
}

type accountService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Reviewer, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
}

type serviceKeyVerifier interface {
	Enabled() bool
	Verify(key string) error
}

type loanIntake interface {
	Create(ctx context.Context, params loan.CreateParams) (loan.Loan, error)
}

type transactionIntake interface {
	Create(ctx context.Context, params fraud.CreateParams) (fraud.Transaction, error)
}

// Server wires the HTTP surface. Nil dependencies disable the routes that
// need them.
type Server struct {
	panels   *review.Registry
	feed     *review.Feed
	tokens   tokenVerifier
	accounts accountService
	keys     serviceKeyVerifier
	// records are the gateways served to remote panels, keyed by kind name.
	records      map[string]review.Gateway
	loans        loanIntake
	transactions transactionIntake
	scorer       fraud.Scorer
	logger       *slog.Logger
}

func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.Handle("/api/panels", s.requireReviewer(http.HandlerFunc(s.handlePanels)))
	mux.Handle("/api/panels/", s.requireReviewer(http.HandlerFunc(s.handlePanelDetail)))
	mux.Handle("/api/notifications", s.requireReviewer(http.HandlerFunc(s.handleNotifications)))
	mux.Handle("/api/loans", s.requireReviewer(http.HandlerFunc(s.handleCreateLoan)))
	mux.Handle("/api/transactions", s.requireReviewer(http.HandlerFunc(s.handleCreateTransaction)))
	mux.Handle("/api/records/", s.requireServiceKey(http.HandlerFunc(s.handleRecords)))
	mux.HandleFunc("/fraud-detection", s.handleFraudDetection)
	return otelhttp.NewHandler(mux, "reviewdesk.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireReviewer resolves the bearer token into a reviewer identity. With no
// verifier configured every caller acts anonymously with the reviewer role.
func (s *Server) requireReviewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokens == nil {
			ctx := context.WithValue(r.Context(), ctxKeyRole, auth.RoleReviewer)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := s.tokens.VerifyToken(strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, principal.ReviewerID)
		ctx = context.WithValue(ctx, ctxKeyRole, principal.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireServiceKey guards the record endpoints consumed by remote panels.
// Without a service key the endpoints fall back to reviewer tokens when
// those are configured, and are open otherwise.
func (s *Server) requireServiceKey(next http.Handler) http.Handler {
	tokenGuarded := s.requireReviewer(requireReviewRole(next))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.keys == nil || !s.keys.Enabled() {
			if s.tokens != nil {
				tokenGuarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		if err := s.keys.Verify(r.Header.Get("X-Service-Key")); err != nil {
			writeError(w, http.StatusUnauthorized, "service key rejected")
			return
		}
		ctx := r.Context()
		if actor := r.Header.Get("X-Review-Actor"); actor != "" {
			ctx = context.WithValue(ctx, ctxKeyUserID, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireReviewRole rejects writes from roles that may not review.
func requireReviewRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && !roleFrom(r.Context()).CanReview() {
			writeError(w, http.StatusForbidden, "role may not review records")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}

func roleFrom(ctx context.Context) auth.Role {
	role, _ := ctx.Value(ctxKeyRole).(auth.Role)
	return role
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.accounts == nil {
		writeError(w, http.StatusNotFound, "accounts are not enabled")
		return
	}
	var req auth.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rv, err := s.accounts.Register(r.Context(), req)
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already registered")
		return
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidRegistration):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log().ErrorContext(r.Context(), "api: register reviewer", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":       rv.ID,
		"email":    rv.Email,
		"fullName": rv.FullName,
		"role":     string(rv.Role),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.accounts == nil {
		writeError(w, http.StatusNotFound, "accounts are not enabled")
		return
	}
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.accounts.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.log().ErrorContext(r.Context(), "api: login", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":     res.Token,
		"expiresAt": res.ExpiresAt.UTC().Format(time.RFC3339),
		"reviewer":  res.Reviewer.ID,
		"role":      string(res.Reviewer.Role),
	})
}
