// agent runs the headless MedConnect client: it restores or establishes a session, keeps it
// validated, syncs notifications and serves gRPC health until interrupted.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medconnect/client/internal/agent"
	"medconnect/client/internal/config"
	"medconnect/client/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.EnvProd, os.Stderr).Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Env, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := agent.New(ctx, cfg,
		agent.WithLogger(logger),
		agent.WithAlertPrompter(newTerminalPrompter(os.Stdin, os.Stdout)))
	if err != nil {
		logger.Error("agent setup failed", "error", err)
		os.Exit(1)
	}

	runErr := a.Run(ctx)
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Warn("agent shutdown", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("agent stopped", "error", runErr)
		os.Exit(1)
	}
	logger.Info("agent stopped")
}
