// Package session owns the authoritative view of "who is the current
// user" for one authenticated session: it coalesces concurrent fetches,
// recovers from stale credentials, and translates raw provider errors
// into user-facing messages.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/safetylearn/safetylearn-web/internal/identity"
	"github.com/safetylearn/safetylearn-web/internal/logger"
	"github.com/safetylearn/safetylearn-web/internal/models"
)

// ErrNotAuthenticated is returned by mutations when no identity is current.
var ErrNotAuthenticated = errors.New("not authenticated")

const (
	currentUserKey = "current-user"

	// propagationDelay gives a fresh credential time to reach the backing
	// store before the post-transition fetch runs.
	propagationDelay = 100 * time.Millisecond
)

// Assembler builds and mutates the assembled user for an identity.
type Assembler interface {
	Assemble(ctx context.Context, ident *identity.Identity) (*models.AuthUser, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) error
	CompleteLesson(ctx context.Context, userID, lessonID string) error
}

// Manager binds a credential token to the single-flight user fetch.
type Manager struct {
	provider identity.Provider
	users    Assembler
	logger   *logger.Log

	flight singleflight.Group

	mu          sync.Mutex
	token       string
	listenerSet bool
}

// NewManager creates a manager bound to the given token; an empty token
// means no one is signed in yet.
func NewManager(provider identity.Provider, users Assembler, token string) *Manager {
	return &Manager{
		provider: provider,
		users:    users,
		logger:   logger.New(),
		token:    token,
	}
}

// Token returns the current credential token, empty when signed out.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) setToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// CurrentUser returns the assembled current user, or nil when no one is
// signed in or any part of the fetch fails. Concurrent callers share one
// underlying fetch; the shared entry is dropped as soon as it settles so
// the next call starts fresh. Errors never escape to the caller.
func (m *Manager) CurrentUser(ctx context.Context) *models.AuthUser {
	v, err, _ := m.flight.Do(currentUserKey, func() (interface{}, error) {
		return m.fetchCurrentUser(ctx)
	})
	if err != nil || v == nil {
		return nil
	}
	user, ok := v.(*models.AuthUser)
	if !ok {
		return nil
	}
	return user
}

// Invalidate drops the cached in-flight fetch so the next CurrentUser call
// starts fresh. The external credential is untouched.
func (m *Manager) Invalidate() {
	m.flight.Forget(currentUserKey)
}

func (m *Manager) fetchCurrentUser(ctx context.Context) (*models.AuthUser, error) {
	token := m.Token()

	ident, err := m.provider.GetIdentity(ctx, token)
	if err != nil {
		m.logger.WithError(err).Warn("identity lookup failed")
		m.purgeIfStale(ctx, token, err)
		return nil, nil
	}
	if ident == nil {
		return nil, nil
	}

	user, err := m.users.Assemble(ctx, ident)
	if err != nil {
		m.logger.WithError(err).Error("failed to assemble user")
		m.purgeIfStale(ctx, token, err)
		return nil, nil
	}

	return user, nil
}

// purgeIfStale signs the credential out of the provider when the error
// indicates a stale session, so subsequent calls do not keep hitting the
// same bad credential. The sign-out itself is best-effort.
func (m *Manager) purgeIfStale(ctx context.Context, token string, err error) {
	if !identity.IsSessionError(err) {
		return
	}

	m.logger.Info("detected stale session, cleaning up")
	if signOutErr := m.provider.SignOut(ctx, token); signOutErr != nil {
		m.logger.WithError(signOutErr).Error("stale session cleanup failed")
	}
	m.setToken("")
}

// OnIdentityChange registers exactly one listener for identity
// transitions. A second registration is a no-op returning an unsubscribe
// handle that does nothing, so the callback never fires twice per
// transition. On each transition the cache is invalidated, the new
// credential is given a moment to propagate, and the freshly fetched user
// (possibly nil) is delivered to the callback.
func (m *Manager) OnIdentityChange(cb func(user *models.AuthUser)) func() {
	m.mu.Lock()
	if m.listenerSet {
		m.mu.Unlock()
		m.logger.Warn("identity change listener already set up, skipping")
		return func() {}
	}
	m.listenerSet = true
	m.mu.Unlock()

	unsubscribe := m.provider.OnIdentityChange(func(event identity.Event, token string) {
		m.Invalidate()

		if event == identity.EventSignedOut {
			m.setToken("")
			cb(nil)
			return
		}

		if token != "" {
			m.setToken(token)
		}

		time.Sleep(propagationDelay)
		cb(m.CurrentUser(context.Background()))
	})

	return func() {
		m.mu.Lock()
		m.listenerSet = false
		m.mu.Unlock()
		unsubscribe()
	}
}

// AuthResult is the outcome of an explicit sign-in or sign-up call: a user
// on success, otherwise a user-facing message.
type AuthResult struct {
	User  *models.AuthUser
	Error string
}

// SignUp creates an account and, when a session is issued immediately,
// returns the assembled user. Provider errors come back as user-facing
// strings, never as Go errors.
func (m *Manager) SignUp(ctx context.Context, req models.SignUpRequest) AuthResult {
	m.Invalidate()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	ageGroup := req.AgeGroup
	if !ageGroup.IsValid() {
		ageGroup = models.AgeGroupForAge(req.Age)
	}

	_, token, err := m.provider.SignUp(ctx, email, req.Password, identity.Metadata{
		Name:     req.Name,
		Age:      req.Age,
		AgeGroup: ageGroup,
	})
	if err != nil {
		m.logger.WithError(err).Error("sign up failed")
		return AuthResult{Error: signUpErrorMessage(err)}
	}

	if token == "" {
		// Email confirmation pending; no session yet.
		return AuthResult{Error: "Please check your email and click the confirmation link to complete your account setup."}
	}

	m.setToken(token)
	m.Invalidate()

	user := m.CurrentUser(ctx)
	if user == nil {
		return AuthResult{Error: "Failed to create account. Please try again."}
	}
	return AuthResult{User: user}
}

// SignIn validates the credential and returns the assembled user.
func (m *Manager) SignIn(ctx context.Context, email, password string) AuthResult {
	m.Invalidate()

	email = strings.ToLower(strings.TrimSpace(email))
	_, token, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		m.logger.WithError(err).Error("sign in failed")
		return AuthResult{Error: signInErrorMessage(err)}
	}

	m.setToken(token)
	m.Invalidate()

	// Give the fresh credential a moment to propagate before assembling.
	time.Sleep(propagationDelay)

	user := m.CurrentUser(ctx)
	if user == nil {
		return AuthResult{Error: "Failed to load user profile. Please try again."}
	}
	return AuthResult{User: user}
}

// SignOut revokes the credential. Returns a user-facing message on failure.
func (m *Manager) SignOut(ctx context.Context) string {
	m.Invalidate()

	token := m.Token()
	m.setToken("")

	if err := m.provider.SignOut(ctx, token); err != nil {
		m.logger.WithError(err).Error("sign out failed")
		return err.Error()
	}
	return ""
}

// UpdateProfile writes the provided profile fields for the current
// identity and invalidates the cached fetch.
func (m *Manager) UpdateProfile(ctx context.Context, update models.ProfileUpdate) error {
	ident, err := m.requireIdentity(ctx)
	if err != nil {
		return err
	}

	if err := m.users.UpdateProfile(ctx, ident.ID, update); err != nil {
		return err
	}

	m.Invalidate()
	return nil
}

// CompleteLesson records a lesson completion for the current identity and
// invalidates the cached fetch whether or not anything was unlocked.
func (m *Manager) CompleteLesson(ctx context.Context, lessonID string) error {
	ident, err := m.requireIdentity(ctx)
	if err != nil {
		return err
	}

	err = m.users.CompleteLesson(ctx, ident.ID, lessonID)
	m.Invalidate()
	return err
}

func (m *Manager) requireIdentity(ctx context.Context) (*identity.Identity, error) {
	token := m.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	ident, err := m.provider.GetIdentity(ctx, token)
	if err != nil {
		m.purgeIfStale(ctx, token, err)
		return nil, ErrNotAuthenticated
	}
	if ident == nil {
		return nil, ErrNotAuthenticated
	}
	return ident, nil
}

// signUpErrorMessage maps raw provider sign-up errors to friendly text.
func signUpErrorMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "User already registered"):
		return "An account with this email already exists. Please try signing in instead."
	case strings.Contains(msg, "Invalid email"):
		return "Please enter a valid email address."
	case strings.Contains(msg, "Password should be at least"):
		return "Password must be at least 6 characters long."
	case strings.Contains(msg, "Signup is disabled"):
		return "Account creation is currently disabled. Please contact support."
	}
	return msg
}

// signInErrorMessage maps raw provider sign-in errors to friendly text.
func signInErrorMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Invalid login credentials"):
		return "Invalid email or password. Please check your credentials and try again."
	case strings.Contains(msg, "Email not confirmed"):
		return "Please check your email and click the confirmation link before signing in."
	case strings.Contains(msg, "Too many requests"):
		return "Too many sign-in attempts. Please wait a moment and try again."
	case strings.Contains(msg, "User not found"):
		return "No account found with this email address. Please check your email or create a new account."
	case strings.Contains(msg, "Invalid password"):
		return "Incorrect password. Please try again."
	}
	return msg
}
