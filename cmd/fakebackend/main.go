// fakebackend serves an in-memory MedConnect REST backend with seeded demo accounts for local
// development of the agent.
//
// Env: FAKE_BACKEND_ADDR (default :5000), JWT_SECRET, SEED_PASSWORD, APP_ENV.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"medconnect/client/internal/fakebackend"
	"medconnect/client/internal/logging"
	"medconnect/client/internal/security"
	userdomain "medconnect/client/internal/user/domain"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := logging.New(envOr("APP_ENV", logging.EnvLocal), os.Stdout)
	addr := envOr("FAKE_BACKEND_ADDR", ":5000")
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "medconnect-dev-secret"
		logger.Warn("JWT_SECRET not set, using the development secret")
	}
	password := envOr("SEED_PASSWORD", "password123")

	b := fakebackend.New(security.NewTokenIssuer([]byte(secret), 24*time.Hour), fakebackend.WithLogger(logger))

	seeds := []fakebackend.SeedUser{
		{Name: "Admin", Email: "admin@medconnect.local", Role: userdomain.RoleAdmin},
		{Name: "Sarah Chen", Email: "doctor@medconnect.local", Role: userdomain.RoleDoctor},
		{Name: "James Okafor", Email: "pending.doctor@medconnect.local", Role: userdomain.RoleDoctor, Status: userdomain.UserStatusPending},
		{Name: "Maria Lopez", Email: "patient@medconnect.local", Role: userdomain.RolePatient},
	}
	for _, s := range seeds {
		s.Password = password
		u, err := b.AddUser(s)
		if err != nil {
			logger.Error("seed user failed", "email", s.Email, "error", err)
			os.Exit(1)
		}
		logger.Info("seeded user", "email", u.Email, "role", u.Role, "status", u.Status)
		if u.Role == userdomain.RolePatient {
			_, _ = b.Push(u.ID, "info", "Welcome to MedConnect", "Your account is ready.", nil)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("listen failed", "addr", addr, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down fake backend")
		_ = b.Shutdown()
	}()

	logger.Info("fake backend listening", "addr", ln.Addr().String())
	if err := b.Serve(ln); err != nil {
		logger.Error("serve failed", "error", err)
		os.Exit(1)
	}
}
