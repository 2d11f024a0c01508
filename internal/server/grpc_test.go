package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"medconnect/client/internal/health"
)

type mockPolicyChecker struct {
	err error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error { return m.err }

func startHealth(t *testing.T, h *Health) healthpb.HealthClient {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewGRPCServer()
	h.Register(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeListener(ctx, lis, s, nil) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("ServeListener: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealth_SessionStatusFollowsAuthentication(t *testing.T) {
	h := NewHealth(health.Checker{}, nil)
	c := startHealth(t, h)

	if got := status(t, c, SessionService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("initial = %v, want NOT_SERVING", got)
	}
	h.SetAuthenticated(true)
	if got := status(t, c, SessionService); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("after sign-in = %v, want SERVING", got)
	}
	h.SetAuthenticated(false)
	if got := status(t, c, SessionService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after sign-out = %v, want NOT_SERVING", got)
	}
}

func TestHealth_RefreshFollowsReadiness(t *testing.T) {
	policy := &mockPolicyChecker{}
	h := NewHealth(health.Checker{PolicyChecker: policy}, nil)
	c := startHealth(t, h)

	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := status(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("ready = %v, want SERVING", got)
	}

	policy.err = errors.New("policy broken")
	if err := h.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh should report the failing check")
	}
	if got := status(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("not ready = %v, want NOT_SERVING", got)
	}
}

func TestServe_InvalidAddr(t *testing.T) {
	if err := Serve(context.Background(), "not-an-addr", NewGRPCServer(), nil); err == nil {
		t.Fatal("expected listen error")
	}
}
