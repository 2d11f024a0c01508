// Package fakebackend is an in-memory implementation of the MedConnect REST surface used by
// the client: auth (login, logout, validate) and notifications. It backs local development
// and end-to-end tests.
package fakebackend

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"

	"medconnect/client/internal/backend"
	"medconnect/client/internal/security"
	userdomain "medconnect/client/internal/user/domain"
)

// ErrDuplicateEmail is returned by AddUser for an email already seeded.
var ErrDuplicateEmail = errors.New("fakebackend: email already registered")

// ErrUnknownUser is returned when a user id or email is not seeded.
var ErrUnknownUser = errors.New("fakebackend: unknown user")

// SeedUser describes an account to create.
type SeedUser struct {
	Name     string
	Email    string
	Password string
	Role     userdomain.Role
	Status   userdomain.UserStatus
}

type account struct {
	user         userdomain.User
	passwordHash string
}

// Backend holds users and notifications in memory.
type Backend struct {
	issuer *security.TokenIssuer
	hasher *security.Hasher
	logger *slog.Logger
	nowF   func() time.Time

	mu            sync.Mutex
	accounts      map[string]*account
	byEmail       map[string]string
	notifications map[string][]backend.Notification

	app *fiber.App
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithHasher sets the password hasher (tests use bcrypt.MinCost).
func WithHasher(h *security.Hasher) Option {
	return func(b *Backend) {
		if h != nil {
			b.hasher = h
		}
	}
}

// WithClock overrides time.Now for notification timestamps.
func WithClock(nowF func() time.Time) Option {
	return func(b *Backend) {
		if nowF != nil {
			b.nowF = nowF
		}
	}
}

// New returns a Backend issuing tokens with issuer.
func New(issuer *security.TokenIssuer, opts ...Option) *Backend {
	b := &Backend{
		issuer:        issuer,
		hasher:        security.NewHasher(0),
		logger:        slog.Default(),
		nowF:          time.Now,
		accounts:      make(map[string]*account),
		byEmail:       make(map[string]string),
		notifications: make(map[string][]backend.Notification),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "fakebackend")
	b.app = b.newApp()
	return b
}

// AddUser seeds an account with a bcrypt-hashed password.
func (b *Backend) AddUser(u SeedUser) (userdomain.User, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" || u.Password == "" {
		return userdomain.User{}, errors.New("fakebackend: email and password are required")
	}
	if !u.Role.Valid() {
		return userdomain.User{}, fmt.Errorf("fakebackend: invalid role %q", u.Role)
	}
	if u.Status == "" {
		u.Status = userdomain.UserStatusActive
	}
	hash, err := b.hasher.Hash([]byte(u.Password))
	if err != nil {
		return userdomain.User{}, fmt.Errorf("fakebackend: hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byEmail[email]; ok {
		return userdomain.User{}, ErrDuplicateEmail
	}
	user := userdomain.User{ID: uuid.NewString(), Name: u.Name, Email: email, Role: u.Role, Status: u.Status}
	b.accounts[user.ID] = &account{user: user, passwordHash: hash}
	b.byEmail[email] = user.ID
	return user, nil
}

// SetStatus changes a seeded user's account status.
func (b *Backend) SetStatus(userID string, status userdomain.UserStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[userID]
	if !ok {
		return ErrUnknownUser
	}
	a.user.Status = status
	return nil
}

// RemoveUser deletes a seeded user and their notifications. Tokens already issued to them
// are rejected with 401 from then on.
func (b *Backend) RemoveUser(userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[userID]
	if !ok {
		return ErrUnknownUser
	}
	delete(b.byEmail, a.user.Email)
	delete(b.accounts, userID)
	delete(b.notifications, userID)
	return nil
}

// Push creates a server-side notification for userID, as the real backend does for
// appointments, prescriptions and security alerts.
func (b *Backend) Push(userID, typ, title, message string, data map[string]any) (backend.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[userID]; !ok {
		return backend.Notification{}, ErrUnknownUser
	}
	return b.pushLocked(userID, typ, title, message, data), nil
}

func (b *Backend) pushLocked(userID, typ, title, message string, data map[string]any) backend.Notification {
	if typ == "" {
		typ = "info"
	}
	n := backend.Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: b.nowF().UTC(),
		Data:      data,
	}
	b.notifications[userID] = append([]backend.Notification{n}, b.notifications[userID]...)
	return n
}

// Notifications returns a copy of userID's notifications, newest first.
func (b *Backend) Notifications(userID string) []backend.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backend.Notification(nil), b.notifications[userID]...)
}

// App returns the fiber app serving the REST surface.
func (b *Backend) App() *fiber.App {
	return b.app
}

// Serve serves the app on ln until Shutdown.
func (b *Backend) Serve(ln net.Listener) error {
	return b.app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops a running Serve.
func (b *Backend) Shutdown() error {
	return b.app.Shutdown()
}

func (b *Backend) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "medconnect-fakebackend",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())

	auth := app.Group("/api/auth")
	auth.Post("/login", b.login)
	auth.Post("/logout", b.authenticate, b.logout)
	auth.Get("/validate", b.authenticate, b.validate)

	n := app.Group("/api/notifications", b.authenticate)
	n.Get("/", b.listNotifications)
	n.Post("/", b.createNotification)
	n.Put("/mark-all-read", b.markAllRead)
	n.Put("/:id/read", b.markRead)
	n.Delete("/:id", b.deleteNotification)
	n.Delete("/", b.deleteAllNotifications)
	return app
}
