// Package session owns the client's authentication state: the token and user snapshot,
// their persisted mirror, and the transitions between them.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"medconnect/client/internal/backend"
	"medconnect/client/internal/security"
	"medconnect/client/internal/storage"
	"medconnect/client/internal/telemetry"
	userdomain "medconnect/client/internal/user/domain"
)

// AuthAPI is the subset of the backend the session needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Validate(ctx context.Context, token string) (*userdomain.User, error)
}

// Manager is the single owner of session state. Token and user are only ever assigned together
// under mu, so a Snapshot never has exactly one of them.
type Manager struct {
	store   storage.Store
	api     AuthAPI
	logger  *slog.Logger
	emitter telemetry.EventEmitter
	nowF    func() time.Time

	loginMu sync.Mutex

	mu             sync.RWMutex
	token          string
	user           *userdomain.User
	authenticating bool
	loading        bool
	version        uint64

	subMu     sync.Mutex
	subs      map[int]func(Snapshot)
	nextSub   int
	pubMu     sync.Mutex
	published uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithEmitter sets the telemetry emitter for login, logout and invalidation events.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// WithClock overrides time.Now, used for the stored-token expiry check.
func WithClock(nowF func() time.Time) Option {
	return func(m *Manager) {
		if nowF != nil {
			m.nowF = nowF
		}
	}
}

// New returns a Manager in the loading state. Call Init to restore any persisted session.
func New(store storage.Store, api AuthAPI, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		api:     api,
		logger:  slog.Default(),
		nowF:    time.Now,
		loading: true,
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// Init derives the initial state from the persisted store without contacting the backend.
// A token and user restore the session; a partial pair or a visibly expired JWT is cleared.
func (m *Manager) Init(ctx context.Context) {
	token, user := m.readPersisted(ctx)

	switch {
	case token != "" && user != nil && security.Expired(token, m.nowF()):
		m.logger.Info("stored token expired, starting signed out", "user_id", user.ID)
		token, user = "", nil
		m.clearPersisted(ctx)
	case (token == "") != (user == nil):
		m.logger.Warn("partial stored session discarded")
		token, user = "", nil
		m.clearPersisted(ctx)
	}

	m.mu.Lock()
	m.token, m.user = token, user
	m.loading = false
	m.version++
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) readPersisted(ctx context.Context) (string, *userdomain.User) {
	token, _, err := storage.GetString(ctx, m.store, storage.KeyToken)
	if err != nil {
		m.logger.Warn("read stored token failed", "error", err)
		return "", nil
	}
	var u userdomain.User
	ok, err := storage.GetJSON(ctx, m.store, storage.KeyUser, &u)
	if err != nil {
		m.logger.Warn("read stored user failed", "error", err)
		return token, nil
	}
	if !ok || u.Validate() != nil {
		return token, nil
	}
	return token, &u
}

// Login authenticates with the backend. On success token and user are persisted and the
// role's landing route is returned. On failure the session stays signed out and the error
// (a *backend.StatusError for rejected credentials) is returned unchanged.
func (m *Manager) Login(ctx context.Context, email, password string) (string, error) {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	m.setAuthenticating(true)
	res, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.setAuthenticating(false)
		m.logger.Info("login failed", "status", backend.StatusCode(err), "error", err)
		telemetry.EmitAsync(m.emitter, ctx, &telemetry.Event{Type: telemetry.EventLoginFailure, Detail: err.Error()})
		return "", err
	}

	user := res.User
	m.persistSession(ctx, res.Token, &user)

	m.mu.Lock()
	m.token = res.Token
	m.user = &user
	m.authenticating = false
	m.loading = false
	m.version++
	m.mu.Unlock()
	m.publish()

	m.logger.Info("login succeeded", "user_id", user.ID, "role", user.Role)
	telemetry.EmitAsync(m.emitter, ctx, &telemetry.Event{Type: telemetry.EventLoginSuccess, UserID: user.ID, Role: string(user.Role)})
	return userdomain.DashboardPath(user.Role), nil
}

func (m *Manager) setAuthenticating(v bool) {
	m.mu.Lock()
	m.authenticating = v
	m.version++
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) persistSession(ctx context.Context, token string, user *userdomain.User) {
	if token != "" {
		if err := storage.SetString(ctx, m.store, storage.KeyToken, token); err != nil {
			m.logger.Warn("persist token failed", "error", err)
		}
	}
	m.persistUser(ctx, user)
}

func (m *Manager) persistUser(ctx context.Context, user *userdomain.User) {
	if err := storage.SetJSON(ctx, m.store, storage.KeyUser, user); err != nil {
		m.logger.Warn("persist user failed", "error", err)
	}
	if err := storage.SetString(ctx, m.store, storage.KeyRole, string(user.Role)); err != nil {
		m.logger.Warn("persist role failed", "error", err)
	}
	if err := storage.SetString(ctx, m.store, storage.KeyName, user.Name); err != nil {
		m.logger.Warn("persist name failed", "error", err)
	}
}

// Logout notifies the backend (best effort), then clears every persisted key and the in-memory
// session. It always completes the local clear and returns the login route.
func (m *Manager) Logout(ctx context.Context) string {
	snap := m.Snapshot()
	if snap.Token != "" {
		if err := m.api.Logout(ctx, snap.Token); err != nil {
			m.logger.Info("backend logout failed, clearing locally", "error", err)
		}
	}
	m.clear(context.WithoutCancel(ctx))
	ev := &telemetry.Event{Type: telemetry.EventLogout}
	if snap.User != nil {
		ev.UserID, ev.Role = snap.User.ID, string(snap.User.Role)
	}
	telemetry.EmitAsync(m.emitter, ctx, ev)
	return userdomain.LoginPath
}

// Invalidate clears the session locally without calling the backend. Used when another
// component has already seen a 401 for the current token.
func (m *Manager) Invalidate(ctx context.Context, reason string) {
	snap := m.Snapshot()
	if !snap.Authenticated() {
		m.clearPersisted(context.WithoutCancel(ctx))
		return
	}
	m.clear(context.WithoutCancel(ctx))
	m.logger.Info("session invalidated", "user_id", snap.User.ID, "reason", reason)
	telemetry.EmitAsync(m.emitter, ctx, &telemetry.Event{
		Type:   telemetry.EventSessionInvalidated,
		UserID: snap.User.ID,
		Role:   string(snap.User.Role),
		Detail: reason,
	})
}

func (m *Manager) clear(ctx context.Context) {
	m.clearPersisted(ctx)
	m.mu.Lock()
	m.token, m.user = "", nil
	m.loading = false
	m.version++
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) clearPersisted(ctx context.Context) {
	if err := storage.ClearAll(ctx, m.store); err != nil {
		m.logger.Error("clear persisted session failed", "error", err)
	}
}

// ValidateSession asks the backend whether the current token is still good. On success the
// user snapshot is refreshed and true is returned. Any failure returns false; logging out is
// left to the caller.
func (m *Manager) ValidateSession(ctx context.Context) bool {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	if token == "" {
		return false
	}

	user, err := m.api.Validate(ctx, token)
	if err != nil {
		m.logger.Debug("session validation failed", "error", err)
		return false
	}

	m.mu.Lock()
	if m.token != token {
		// Replaced or cleared while in flight; the newer state stands.
		m.mu.Unlock()
		return true
	}
	fresh := *user
	m.user = &fresh
	m.version++
	m.mu.Unlock()
	m.persistUser(ctx, &fresh)
	m.publish()
	return true
}

// RefreshAuth re-validates the session and discards the result.
func (m *Manager) RefreshAuth(ctx context.Context) {
	_ = m.ValidateSession(ctx)
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{Token: m.token, Loading: m.loading, Version: m.version}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	switch {
	case s.Authenticated():
		s.State = StateAuthenticated
	case m.authenticating:
		s.State = StateAuthenticating
	default:
		s.State = StateUnauthenticated
	}
	return s
}

// Subscribe registers fn to receive every new snapshot. Snapshots are delivered in order and never
// concurrently; fn must not call Manager methods that change state synchronously.
// The returned function unsubscribes.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) publish() {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	snap := m.Snapshot()
	if snap.Version <= m.published {
		return
	}
	m.published = snap.Version

	m.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
