// Package identity abstracts the external authentication provider. The
// rest of the application only sees this contract; error values carry the
// provider's raw wire messages, which callers pattern-match.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/safetylearn/safetylearn-web/internal/models"
)

// Identity is the externally-managed authenticated subject.
type Identity struct {
	ID               string     `db:"id"`
	Email            string     `db:"email"`
	Name             string     `db:"name"`
	Age              int        `db:"age"`
	AgeGroup         string     `db:"age_group"`
	EmailConfirmedAt *time.Time `db:"email_confirmed_at"`
	CreatedAt        time.Time  `db:"created_at"`
}

// Metadata is the signup metadata stored alongside the credential. It seeds
// the lazily-created profile on first read.
type Metadata struct {
	Name     string
	Age      int
	AgeGroup models.AgeGroup
}

// Event names an identity transition delivered to change listeners.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Raw provider error messages. Callers match on substrings of these, the
// same strings the hosted provider emits on its wire.
var (
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("Email not confirmed")
	ErrTooManyRequests    = errors.New("Too many requests")
	ErrAlreadyRegistered  = errors.New("User already registered")
	ErrSessionMissing     = errors.New("Auth session missing!")
	ErrInvalidJWT         = errors.New("Invalid JWT")
	ErrJWTExpired         = errors.New("JWT expired")
	ErrSessionNotFound    = errors.New("session_not_found")
)

// Provider is the identity provider contract.
type Provider interface {
	// SignUp creates a credential and returns the identity plus a session
	// token. The token is empty when email confirmation is still pending.
	SignUp(ctx context.Context, email, password string, meta Metadata) (*Identity, string, error)

	// SignIn validates the credential and returns the identity plus a
	// fresh session token.
	SignIn(ctx context.Context, email, password string) (*Identity, string, error)

	// SignOut revokes the session token.
	SignOut(ctx context.Context, token string) error

	// GetIdentity resolves a session token to its identity.
	GetIdentity(ctx context.Context, token string) (*Identity, error)

	// OnIdentityChange registers a listener for sign-in, sign-out and
	// token-refresh transitions. The returned function unsubscribes.
	OnIdentityChange(cb func(event Event, token string)) func()
}

// sessionErrorMarkers are the substrings that identify a stale or missing
// credential in a provider error message.
var sessionErrorMarkers = []string{
	"Auth session missing!",
	"Invalid JWT",
	"session_not_found",
	"JWT expired",
	"JWT",
	"401",
	"403",
}

// IsSessionError reports whether the error indicates a stale, expired or
// missing credential that should trigger a session purge.
func IsSessionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range sessionErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
