package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/safetylearn/safetylearn-web/internal/database"
	"github.com/safetylearn/safetylearn-web/internal/logger"
)

const (
	maxSignInAttempts = 5
	attemptWindow     = time.Minute
)

// LocalProvider implements Provider against the local database: bcrypt
// password hashes in auth_users and HS256 session tokens with an in-memory
// revocation set so sign-out invalidates outstanding tokens.
type LocalProvider struct {
	db             *database.DB
	secret         []byte
	tokenTTL       time.Duration
	requireConfirm bool
	logger         *logger.Log

	mu        sync.Mutex
	revoked   map[string]struct{} // jti
	attempts  map[string][]time.Time
	listeners map[int]func(event Event, token string)
	nextSub   int
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewLocalProvider creates a provider backed by the given database.
func NewLocalProvider(db *database.DB, secret string, tokenTTL time.Duration, requireConfirm bool) *LocalProvider {
	return &LocalProvider{
		db:             db,
		secret:         []byte(secret),
		tokenTTL:       tokenTTL,
		requireConfirm: requireConfirm,
		logger:         logger.New(),
		revoked:        make(map[string]struct{}),
		attempts:       make(map[string][]time.Time),
		listeners:      make(map[int]func(event Event, token string)),
	}
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string, meta Metadata) (*Identity, string, error) {
	var count int
	if err := p.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM auth_users WHERE email = ?`, email); err != nil {
		return nil, "", fmt.Errorf("failed to check existing account: %w", err)
	}
	if count > 0 {
		return nil, "", ErrAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	ident := &Identity{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      meta.Name,
		Age:       meta.Age,
		AgeGroup:  string(meta.AgeGroup),
		CreatedAt: time.Now(),
	}
	if !p.requireConfirm {
		now := time.Now()
		ident.EmailConfirmedAt = &now
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO auth_users (id, email, password_hash, name, age, age_group, email_confirmed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ident.ID, ident.Email, string(hash), ident.Name, ident.Age, ident.AgeGroup, ident.EmailConfirmedAt, ident.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create account: %w", err)
	}

	// Confirmation pending: the account exists but no session is issued yet.
	if p.requireConfirm {
		return ident, "", nil
	}

	token, err := p.issueToken(ident)
	if err != nil {
		return nil, "", err
	}

	p.emit(EventSignedIn, token)
	return ident, token, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Identity, string, error) {
	if p.throttled(email) {
		return nil, "", ErrTooManyRequests
	}

	var row Identity
	var hash string
	err := p.db.QueryRowxContext(ctx, `
		SELECT id, email, password_hash, name, age, age_group, email_confirmed_at, created_at
		FROM auth_users WHERE email = ?`, email).
		Scan(&row.ID, &row.Email, &hash, &row.Name, &row.Age, &row.AgeGroup, &row.EmailConfirmedAt, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		p.recordAttempt(email)
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		p.recordAttempt(email)
		return nil, "", ErrInvalidCredentials
	}

	if p.requireConfirm && row.EmailConfirmedAt == nil {
		return nil, "", ErrEmailNotConfirmed
	}

	token, err := p.issueToken(&row)
	if err != nil {
		return nil, "", err
	}

	p.clearAttempts(email)
	p.emit(EventSignedIn, token)
	return &row, token, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	c, err := p.parseToken(token)
	if err == nil {
		p.mu.Lock()
		p.revoked[c.ID] = struct{}{}
		p.mu.Unlock()
	}

	p.emit(EventSignedOut, "")
	return nil
}

func (p *LocalProvider) GetIdentity(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrSessionMissing
	}

	c, err := p.parseToken(token)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	_, gone := p.revoked[c.ID]
	p.mu.Unlock()
	if gone {
		return nil, ErrSessionNotFound
	}

	var ident Identity
	err = p.db.GetContext(ctx, &ident, `
		SELECT id, email, name, age, age_group, email_confirmed_at, created_at
		FROM auth_users WHERE id = ?`, c.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	return &ident, nil
}

func (p *LocalProvider) OnIdentityChange(cb func(event Event, token string)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.listeners[id] = cb
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// ConfirmEmail marks an account as confirmed. Exposed for the confirmation
// endpoint and for tests; the hosted provider does this via a mailed link.
func (p *LocalProvider) ConfirmEmail(ctx context.Context, email string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE auth_users SET email_confirmed_at = ? WHERE email = ?`, time.Now(), email)
	return err
}

func (p *LocalProvider) issueToken(ident *Identity) (string, error) {
	now := time.Now()
	c := claims{
		Email: ident.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

func (p *LocalProvider) parseToken(token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrJWTExpired
		}
		return nil, ErrInvalidJWT
	}
	return &c, nil
}

func (p *LocalProvider) emit(event Event, token string) {
	p.mu.Lock()
	cbs := make([]func(Event, string), 0, len(p.listeners))
	for _, cb := range p.listeners {
		cbs = append(cbs, cb)
	}
	p.mu.Unlock()

	for _, cb := range cbs {
		go cb(event, token)
	}
}

func (p *LocalProvider) throttled(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-attemptWindow)
	recent := p.attempts[email][:0]
	for _, t := range p.attempts[email] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	p.attempts[email] = recent
	return len(recent) >= maxSignInAttempts
}

func (p *LocalProvider) recordAttempt(email string) {
	p.mu.Lock()
	p.attempts[email] = append(p.attempts[email], time.Now())
	p.mu.Unlock()
}

func (p *LocalProvider) clearAttempts(email string) {
	p.mu.Lock()
	delete(p.attempts, email)
	p.mu.Unlock()
}
