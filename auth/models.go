package auth

import "time"

type Role string

const (
	RoleReviewer   Role = "reviewer"
	RoleSupervisor Role = "supervisor"
	RoleObserver   Role = "observer"
)

// CanReview reports whether the role may approve or reject records.
func (r Role) CanReview() bool {
	return r == RoleReviewer || r == RoleSupervisor
}

// Reviewer mirrors the reviewers table. It carries no JSON annotations so
// presentation layers pick their own shape.
type Reviewer struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the identity extracted from a verified token.
type Principal struct {
	ReviewerID string
	Role       Role
}

// RegisterRequest contains reviewer registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains reviewer login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
