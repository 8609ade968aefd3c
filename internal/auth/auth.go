// Package auth binds browser cookie sessions to session managers. Each
// cookie session gets its own manager, keyed by a random session ID, so
// one signed-in browser never sees another's cached user.
package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/safetylearn/safetylearn-web/internal/identity"
	"github.com/safetylearn/safetylearn-web/internal/session"
)

const (
	sessionName = "safetylearn-session"
	sidKey      = "sid"
	tokenKey    = "token"
)

type contextKey string

const managerContextKey contextKey = "session-manager"

// Registry hands out one session.Manager per browser cookie session.
type Registry struct {
	store    *sessions.CookieStore
	provider identity.Provider
	users    session.Assembler

	mu       sync.Mutex
	managers map[string]*session.Manager
}

func NewRegistry(sessionSecret string, provider identity.Provider, users session.Assembler) *Registry {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Registry{
		store:    store,
		provider: provider,
		users:    users,
		managers: make(map[string]*session.Manager),
	}
}

// managerFor resolves the manager for the request's cookie session,
// creating the session and manager on first sight.
func (reg *Registry) managerFor(w http.ResponseWriter, r *http.Request) (*session.Manager, error) {
	cookieSession, err := reg.store.Get(r, sessionName)
	if err != nil {
		// A tampered or re-keyed cookie decodes to a fresh session.
		cookieSession, _ = reg.store.New(r, sessionName)
	}

	sid, _ := cookieSession.Values[sidKey].(string)
	token, _ := cookieSession.Values[tokenKey].(string)

	if sid == "" {
		sid = uuid.NewString()
		cookieSession.Values[sidKey] = sid
		if err := cookieSession.Save(r, w); err != nil {
			return nil, err
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	manager, ok := reg.managers[sid]
	if !ok {
		manager = session.NewManager(reg.provider, reg.users, token)
		reg.managers[sid] = manager
	}
	return manager, nil
}

// SaveToken writes the manager's current credential back into the cookie,
// so a restarted server can rebuild the manager from the cookie alone.
func (reg *Registry) SaveToken(w http.ResponseWriter, r *http.Request, manager *session.Manager) error {
	cookieSession, err := reg.store.Get(r, sessionName)
	if err != nil {
		cookieSession, _ = reg.store.New(r, sessionName)
	}
	cookieSession.Values[tokenKey] = manager.Token()
	return cookieSession.Save(r, w)
}

// Evict drops the cookie session's manager so a signed-out visitor does
// not keep one cached server-side. The next request rebuilds a manager
// from the cookie's (now empty) token.
func (reg *Registry) Evict(r *http.Request) {
	cookieSession, err := reg.store.Get(r, sessionName)
	if err != nil {
		return
	}
	sid, _ := cookieSession.Values[sidKey].(string)
	if sid == "" {
		return
	}

	reg.mu.Lock()
	delete(reg.managers, sid)
	reg.mu.Unlock()
}

// Middleware attaches the request's session manager to the context.
func (reg *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manager, err := reg.managerFor(w, r)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), managerContextKey, manager)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ManagerFromContext returns the session manager the middleware attached,
// nil when the middleware did not run.
func ManagerFromContext(ctx context.Context) *session.Manager {
	manager, _ := ctx.Value(managerContextKey).(*session.Manager)
	return manager
}
