package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	userdomain "medconnect/client/internal/user/domain"
)

const decisionQuery = "data.medconnect.route_guard.decision"

// DefaultRegoPolicy mirrors DefaultEvaluator. A replacement module must define
// data.medconnect.route_guard.decision with the same shape.
const DefaultRegoPolicy = `package medconnect.route_guard

dashboards := {
	"patient": "/dashboard",
	"doctor": "/doctor/dashboard",
	"admin": "/admin/dashboard",
}

role_mismatch if {
	input.required_role != ""
	input.user.role != input.required_role
}

inactive_doctor if {
	input.user.role == "doctor"
	input.user.status != "active"
}

default redirect = ""

redirect = object.get(dashboards, input.user.role, "/unauthorized") if role_mismatch

default block = false

block if {
	not role_mismatch
	inactive_doctor
}

default allow = false

allow if {
	not role_mismatch
	not inactive_doctor
}

default reason = ""

reason = "role_mismatch" if role_mismatch

reason = "account_not_active" if block

decision := {
	"allow": allow,
	"block": block,
	"redirect": redirect,
	"reason": reason,
}
`

// OPAEvaluator evaluates the route gate with an OPA Rego module compiled once at construction.
// Evaluation failures fall back to DefaultEvaluator.
type OPAEvaluator struct {
	query    rego.PreparedEvalQuery
	fallback DefaultEvaluator
	logger   *slog.Logger
}

// NewOPAEvaluator compiles module (DefaultRegoPolicy when empty) and prepares the decision query.
func NewOPAEvaluator(ctx context.Context, module string, logger *slog.Logger) (*OPAEvaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(module) == "" {
		module = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"route_guard.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile route policy: %w", err)
	}
	q, err := rego.New(rego.Query(decisionQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare route policy: %w", err)
	}
	return &OPAEvaluator{query: q, logger: logger.With("component", "policy")}, nil
}

// NewOPAEvaluatorFromFile loads a Rego module from path. An empty path uses DefaultRegoPolicy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string, logger *slog.Logger) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "", logger)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(raw), logger)
}

// HealthCheck verifies that the in-process engine can compile and evaluate the default policy.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	probe, err := NewOPAEvaluator(ctx, DefaultRegoPolicy, nil)
	if err != nil {
		return err
	}
	res, err := probe.eval(ctx, &userdomain.User{ID: "health", Role: userdomain.RolePatient, Status: userdomain.UserStatusActive}, "")
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if !res.Allow {
		return fmt.Errorf("default policy denied an active patient")
	}
	return nil
}

// EvaluateAccess evaluates the prepared policy for user.
func (e *OPAEvaluator) EvaluateAccess(ctx context.Context, user *userdomain.User, requiredRole userdomain.Role) (AccessResult, error) {
	if user == nil {
		return AccessResult{}, ErrNoUser
	}
	res, err := e.eval(ctx, user, requiredRole)
	if err != nil {
		e.logger.Warn("route policy evaluation failed, using default gate", "error", err)
		return e.fallback.EvaluateAccess(ctx, user, requiredRole)
	}
	return res, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, user *userdomain.User, requiredRole userdomain.Role) (AccessResult, error) {
	input := map[string]interface{}{
		"required_role": string(requiredRole),
		"user": map[string]interface{}{
			"id":     user.ID,
			"role":   string(user.Role),
			"status": string(user.Status),
		},
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return AccessResult{}, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return AccessResult{}, fmt.Errorf("policy query returned no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return AccessResult{}, fmt.Errorf("policy decision has type %T", rs[0].Expressions[0].Value)
	}
	var out AccessResult
	out.Allow, _ = obj["allow"].(bool)
	out.Block, _ = obj["block"].(bool)
	out.Redirect, _ = obj["redirect"].(string)
	out.Reason, _ = obj["reason"].(string)

	n := 0
	for _, set := range []bool{out.Allow, out.Block, out.Redirect != ""} {
		if set {
			n++
		}
	}
	if n != 1 {
		return AccessResult{}, fmt.Errorf("policy decision is ambiguous: %+v", out)
	}
	return out, nil
}
