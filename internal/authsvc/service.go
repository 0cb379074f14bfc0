// Package authsvc defines the authentication service boundary. The session
// layer depends only on the Service interface; a mock with an in-memory user
// table stands in for the backend during development, and Client speaks to
// the real HTTP API.
package authsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casaro.io/internal/auth"
)

var (
	// ErrInvalidCredentials signals a wrong password for a known account.
	ErrInvalidCredentials = errors.New("authsvc: invalid credentials")
	// ErrAccountNotFound signals that no account exists for the email.
	ErrAccountNotFound = errors.New("authsvc: account not found")
	// ErrEmailExists signals a registration against a taken address.
	ErrEmailExists = errors.New("authsvc: email already registered")
	// ErrValidation signals rejected registration input; the wrapped message
	// is safe to display.
	ErrValidation = errors.New("authsvc: validation failed")
	// ErrUnavailable signals the service could not be reached.
	ErrUnavailable = errors.New("authsvc: service unavailable")
)

// Credentials is the result of a successful login, registration or refresh.
type Credentials struct {
	Token     string
	ExpiresAt time.Time
	Identity  auth.Identity
}

// Registration carries the sign-up form fields.
type Registration struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	Role            auth.Role
}

// Validate checks required fields and returns a displayable ErrValidation.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return fmt.Errorf("%w: first name is required", ErrValidation)
	}
	if strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("%w: last name is required", ErrValidation)
	}
	email := auth.NormalizeEmail(r.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrValidation)
	}
	if len(r.Password) < auth.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, auth.MinPasswordLength)
	}
	if r.Password != r.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	if !r.Role.Valid() {
		return fmt.Errorf("%w: role selection is required", ErrValidation)
	}
	return nil
}

// Service is the network boundary of the authentication backend. Tokens are
// opaque strings to callers; only the backend interprets them.
type Service interface {
	Login(ctx context.Context, email, password string) (Credentials, error)
	Register(ctx context.Context, reg Registration) (Credentials, error)
	ForgotPassword(ctx context.Context, email string) error
	Refresh(ctx context.Context, token string) (Credentials, error)
	VerifyToken(ctx context.Context, token string) (auth.Identity, error)
}
