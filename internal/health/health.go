// Package health reports agent readiness from its dependencies.
package health

import (
	"context"
	"fmt"
)

// Pinger checks the persisted store connection (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the route policy evaluator (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs the readiness checks. Nil dependencies are skipped.
type Checker struct {
	Pinger        Pinger
	PolicyChecker PolicyChecker
}

// Check returns the first failing dependency, or nil when ready.
func (c Checker) Check(ctx context.Context) error {
	if c.Pinger != nil {
		if err := c.Pinger.PingContext(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}
	if c.PolicyChecker != nil {
		if err := c.PolicyChecker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	return nil
}
