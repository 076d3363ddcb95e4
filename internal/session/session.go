// Package session adapts the remote identity provider to the rest of the
// app. Sign-in is passwordless: the provider emails a magic link that lands
// on a short-lived localhost callback server. Auth state is advisory; any
// provider failure degrades to the signed-out state so learning features
// keep working anonymously.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"traintty/internal/store"
)

// User is the authenticated identity, nil when signed out.
type User struct {
	ID    string
	Email string
}

// Provider is the remote identity service.
type Provider interface {
	// SendMagicLink emails a sign-in link that redirects to redirectTo with
	// an access_token parameter.
	SendMagicLink(ctx context.Context, email, redirectTo string) error
	// GetUser resolves an access token to a user.
	GetUser(ctx context.Context, accessToken string) (*User, error)
}

// Manager owns the current session and notifies subscribers on change.
type Manager struct {
	provider Provider
	store    *store.Store
	logger   *slog.Logger

	mu      sync.RWMutex
	current *User
	subs    []func(*User)
}

// New builds a Manager and restores the session from the persisted token.
// Restore failures are logged and leave the manager signed out.
func New(provider Provider, st *store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{provider: provider, store: st, logger: logger}
	m.restore()
	return m
}

func (m *Manager) restore() {
	token, err := m.store.GetSetting(store.KeyAuthToken)
	if err != nil || token == "" {
		if err != nil {
			m.logger.Warn("reading persisted auth token", "error", err)
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	user, err := m.provider.GetUser(ctx, token)
	if err != nil {
		m.logger.Warn("session restore failed, continuing signed out", "error", err)
		return
	}
	m.setUser(user)
}

// CurrentUser returns the signed-in user, or nil.
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// UserID returns the current user's id, or "anonymous" when signed out.
func (m *Manager) UserID() string {
	if u := m.CurrentUser(); u != nil {
		return u.ID
	}
	return "anonymous"
}

// Subscribe registers fn to be called on every session change, including
// sign-out (nil user).
func (m *Manager) Subscribe(fn func(*User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Manager) setUser(u *User) {
	m.mu.Lock()
	m.current = u
	subs := make([]func(*User), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(u)
	}
}

// SignInWithMagicLink requests a magic link for email and blocks until the
// link is clicked and the callback server captures the token, or ctx expires.
func (m *Manager) SignInWithMagicLink(ctx context.Context, email string) (*User, error) {
	srv, err := newCallbackServer()
	if err != nil {
		return nil, fmt.Errorf("starting callback listener: %w", err)
	}
	defer srv.close()

	if err := m.provider.SendMagicLink(ctx, email, srv.url()); err != nil {
		return nil, fmt.Errorf("requesting magic link: %w", err)
	}
	m.logger.Info("magic link sent", "email", email, "callback", srv.url())

	var token string
	select {
	case token = <-srv.tokens:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for sign-in: %w", ctx.Err())
	}

	user, err := m.provider.GetUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolving signed-in user: %w", err)
	}
	if err := m.store.SetSetting(store.KeyAuthToken, token); err != nil {
		return nil, fmt.Errorf("persisting auth token: %w", err)
	}
	if err := m.store.SetSetting(store.KeyUserID, user.ID); err != nil {
		return nil, fmt.Errorf("persisting user id: %w", err)
	}
	if err := m.store.SetSetting(store.KeyUserEmail, user.Email); err != nil {
		return nil, fmt.Errorf("persisting user email: %w", err)
	}
	m.setUser(user)
	return user, nil
}

// SignOut forgets the session locally. The provider-side session is left to
// expire on its own.
func (m *Manager) SignOut() error {
	for _, key := range []string{store.KeyAuthToken, store.KeyUserID, store.KeyUserEmail} {
		if err := m.store.DeleteSetting(key); err != nil {
			return fmt.Errorf("clearing %s: %w", key, err)
		}
	}
	m.setUser(nil)
	return nil
}

// callbackServer is a one-shot localhost HTTP server that captures the
// access token from the magic-link redirect.
type callbackServer struct {
	listener net.Listener
	server   *http.Server
	tokens   chan string
	once     sync.Once
}

func newCallbackServer() (*callbackServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	cs := &callbackServer{listener: ln, tokens: make(chan string, 1)}

	r := chi.NewRouter()
	r.Get("/auth/callback", cs.handleCallback)
	cs.server = &http.Server{Handler: r}
	go cs.server.Serve(ln)
	return cs, nil
}

func (cs *callbackServer) url() string {
	return "http://" + cs.listener.Addr().String() + "/auth/callback"
}

func (cs *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		// Some providers put the token in the URL fragment, which never
		// reaches the server. Serve a tiny page that re-requests with the
		// fragment promoted to a query parameter.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fragmentRelayPage)
		return
	}
	cs.once.Do(func() { cs.tokens <- token })
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, signedInPage)
}

func (cs *callbackServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cs.server.Shutdown(ctx)
}

const fragmentRelayPage = `<!DOCTYPE html>
<html><body><script>
const p = new URLSearchParams(window.location.hash.slice(1));
const t = p.get("access_token");
if (t) { window.location.replace(window.location.pathname + "?access_token=" + encodeURIComponent(t)); }
else { document.body.textContent = "Sign-in failed: no token in callback."; }
</script></body></html>`

const signedInPage = `<!DOCTYPE html>
<html><body><p>Signed in. You can close this tab and return to the terminal.</p></body></html>`
