package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrServiceKeyRejected signals a missing or wrong service key.
var ErrServiceKeyRejected = errors.New("auth: service key rejected")

// ServiceKeyVerifier checks the shared key presented by gateway clients
// against a bcrypt hash.
type ServiceKeyVerifier struct {
	hash []byte
}

// NewServiceKeyVerifier accepts a bcrypt hash. An empty hash yields a
// verifier that is not Enabled, so no service key is checked.
func NewServiceKeyVerifier(hash string) (*ServiceKeyVerifier, error) {
	if hash == "" {
		return &ServiceKeyVerifier{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("auth: service key hash: %w", err)
	}
	return &ServiceKeyVerifier{hash: []byte(hash)}, nil
}

// Enabled reports whether a hash is configured.
func (v *ServiceKeyVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

func (v *ServiceKeyVerifier) Verify(key string) error {
	if !v.Enabled() || key == "" {
		return ErrServiceKeyRejected
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrServiceKeyRejected
	}
	return nil
}

// HashServiceKey produces the value expected in SERVICE_KEY_HASH.
func HashServiceKey(key string) (string, error) {
	if len(key) < 16 {
		return "", fmt.Errorf("auth: service key must be at least 16 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash service key: %w", err)
	}
	return string(hash), nil
}
