package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrInvalidRegistration signals missing or malformed registration data.
	ErrInvalidRegistration = errors.New("auth: invalid registration")
	// ErrInvalidToken signals a bearer token that cannot be trusted.
	ErrInvalidToken = errors.New("auth: invalid token")
)

const defaultTokenTTL = 12 * time.Hour

// Service handles reviewer authentication.
type Service struct {
	repo      Repository
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// LoginResult bundles the token and reviewer returned after a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Reviewer  Reviewer
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		ttl:       defaultTokenTTL,
		now:       time.Now,
	}
}

func (s *Service) WithTokenTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates a reviewer account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Reviewer, error) {
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}
	email := strings.TrimSpace(req.Email)
	name := strings.TrimSpace(req.FullName)
	if email == "" || name == "" {
		return nil, fmt.Errorf("%w: email and full_name are required", ErrInvalidRegistration)
	}

	role := Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleReviewer
	}
	if !isValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidRegistration, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	rv, err := s.repo.CreateReviewer(ctx, CreateReviewerParams{
		Email:        email,
		FullName:     name,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// Login authenticates a reviewer and issues a bearer token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	rv, err := s.repo.GetReviewerByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, ErrReviewerNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rv.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, exp, err := s.IssueToken(rv.ID, rv.Role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: exp, Reviewer: rv}, nil
}

// IssueToken signs an HS256 token for reviewerID.
func (s *Service) IssueToken(reviewerID string, role Role) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reviewerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyToken validates a bearer token and returns its principal.
func (s *Service) VerifyToken(tokenString string) (Principal, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role := Role(claims.Role)
	if !isValidRole(role) {
		return Principal{}, fmt.Errorf("%w: role %q", ErrInvalidToken, claims.Role)
	}
	return Principal{ReviewerID: claims.Subject, Role: role}, nil
}

// GetReviewerByID retrieves reviewer information by ID.
func (s *Service) GetReviewerByID(ctx context.Context, id string) (*Reviewer, error) {
	rv, err := s.repo.GetReviewerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func isValidRole(role Role) bool {
	switch role {
	case RoleReviewer, RoleSupervisor, RoleObserver:
		return true
	default:
		return false
	}
}
