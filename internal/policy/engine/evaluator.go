// Package engine evaluates the role/status gate applied to authenticated users on protected routes.
package engine

import (
	"context"
	"errors"

	userdomain "medconnect/client/internal/user/domain"
)

// Decision reasons.
const (
	ReasonRoleMismatch     = "role_mismatch"
	ReasonAccountNotActive = "account_not_active"
)

// ErrNoUser is returned when access is evaluated without a user.
var ErrNoUser = errors.New("policy: user is required")

// AccessResult is the outcome of the role/status gate. Exactly one of Allow, Block or a
// non-empty Redirect holds.
type AccessResult struct {
	Allow    bool
	Redirect string
	Block    bool
	Reason   string
}

// Evaluator decides whether an authenticated user may see a route requiring requiredRole
// (empty means any role).
type Evaluator interface {
	EvaluateAccess(ctx context.Context, user *userdomain.User, requiredRole userdomain.Role) (AccessResult, error)
}

// DefaultEvaluator is the built-in gate: a role mismatch redirects to the user's own dashboard,
// a doctor whose account is not active is blocked, everyone else is allowed.
type DefaultEvaluator struct{}

// EvaluateAccess applies the built-in gate.
func (DefaultEvaluator) EvaluateAccess(ctx context.Context, user *userdomain.User, requiredRole userdomain.Role) (AccessResult, error) {
	if user == nil {
		return AccessResult{}, ErrNoUser
	}
	if requiredRole != "" && user.Role != requiredRole {
		return AccessResult{Redirect: userdomain.DashboardPath(user.Role), Reason: ReasonRoleMismatch}, nil
	}
	if user.Role == userdomain.RoleDoctor && user.Status != userdomain.UserStatusActive {
		return AccessResult{Block: true, Reason: ReasonAccountNotActive}, nil
	}
	return AccessResult{Allow: true}, nil
}
