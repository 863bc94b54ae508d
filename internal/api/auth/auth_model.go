package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quantleap/brokerage/internal/types"
)

// Error taxonomy. Handlers map these to HTTP statuses; everything else is a
// generic 500 with the detail kept server-side.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrValidation      = errors.New("invalid input")
)

// Specific failures returned by the service. Each wraps its category so
// callers can match either the exact failure or the broad class.
var (
	ErrMissingFields    = fmt.Errorf("all fields are required: %w", ErrValidation)
	ErrPasswordMismatch = fmt.Errorf("passwords do not match: %w", ErrValidation)
	ErrEmailTaken       = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrUsernameTaken    = fmt.Errorf("username already taken: %w", ErrConflict)
	// ErrBadCredentials is deliberately identical for unknown email and wrong
	// password so responses cannot be used to enumerate accounts.
	ErrBadCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthenticated)
)

// SignupRequest represents the signup request body
type SignupRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body returned by signup and login.
type TokenResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    types.UserSummary `json:"user"`
}

// VerifyResponse is the body returned by the verify endpoint.
type VerifyResponse struct {
	Message string            `json:"message"`
	User    types.UserSummary `json:"user"`
}

// Claims carried inside the session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
