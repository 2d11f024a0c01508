// Package server exposes the agent's gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"medconnect/client/internal/health"
)

// SessionService is the health service name that tracks authentication.
const SessionService = "medconnect.session"

// NewGRPCServer returns a gRPC server instrumented with otelgrpc.
func NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	return grpc.NewServer(opts...)
}

// Health wraps the standard gRPC health server. The overall status ("") follows readiness;
// SessionService follows authentication.
type Health struct {
	srv     *grpchealth.Server
	checker health.Checker
	logger  *slog.Logger
}

// NewHealth returns a Health with every service NOT_SERVING.
func NewHealth(checker health.Checker, logger *slog.Logger) *Health {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Health{srv: grpchealth.NewServer(), checker: checker, logger: logger.With("component", "health")}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.srv.SetServingStatus(SessionService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register adds the health service to s.
func (h *Health) Register(s grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// SetAuthenticated flips SessionService.
func (h *Health) SetAuthenticated(ok bool) {
	h.srv.SetServingStatus(SessionService, servingStatus(ok))
}

// Refresh runs the readiness checks and updates the overall status.
func (h *Health) Refresh(ctx context.Context) error {
	err := h.checker.Check(ctx)
	if err != nil {
		h.logger.Warn("readiness check failed", "error", err)
	}
	h.srv.SetServingStatus("", servingStatus(err == nil))
	return err
}

// Shutdown sets every service NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Serve listens on addr and serves s until ctx is cancelled, then stops gracefully.
func Serve(ctx context.Context, addr string, s *grpc.Server, logger *slog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, lis, s, logger)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, lis net.Listener, s *grpc.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC health listening", "component", "server", "addr", lis.Addr().String())
		errCh <- s.Serve(lis)
	}()
	select {
	case <-ctx.Done():
		logger.Info("shutting down gRPC server", "component", "server")
		s.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
