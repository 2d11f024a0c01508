// Package guard decides what a protected route shows for the current session snapshot.
// Decisions consult only the last known state and never perform I/O.
package guard

import (
	"context"
	"fmt"

	"medconnect/client/internal/policy/engine"
	"medconnect/client/internal/session"
	userdomain "medconnect/client/internal/user/domain"
)

// Kind is the decision category.
type Kind int

const (
	ShowLoading Kind = iota
	RedirectLogin
	RedirectDashboard
	Block
	Allow
)

func (k Kind) String() string {
	switch k {
	case ShowLoading:
		return "show_loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	case Block:
		return "block"
	case Allow:
		return "allow"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is what a blocked page offers the user.
type Action string

// ActionLogout signs the user out and returns to the login page.
const ActionLogout Action = "logout"

// Request describes the route being rendered.
type Request struct {
	RequiredRole userdomain.Role
	Location     string
}

// Decision is the guard's verdict. Target is set for redirects; From carries the requested
// location for post-login return; Message and Action are set for Block.
type Decision struct {
	Kind    Kind
	Target  string
	From    string
	Message string
	Action  Action
}

// Guard evaluates the role/status gate with a pluggable evaluator.
type Guard struct {
	evaluator engine.Evaluator
}

// New returns a Guard using evaluator, or the built-in gate when nil.
func New(evaluator engine.Evaluator) *Guard {
	if evaluator == nil {
		evaluator = engine.DefaultEvaluator{}
	}
	return &Guard{evaluator: evaluator}
}

var defaultGuard = New(nil)

// Decide applies the built-in gate.
func Decide(snap session.Snapshot, req Request) Decision {
	return defaultGuard.Decide(context.Background(), snap, req)
}

// Decide returns the decision for snap. Loading wins over everything; a signed-out session
// redirects to login; the evaluator handles role and account status.
func (g *Guard) Decide(ctx context.Context, snap session.Snapshot, req Request) Decision {
	if snap.Loading {
		return Decision{Kind: ShowLoading}
	}
	if !snap.Authenticated() {
		return Decision{Kind: RedirectLogin, Target: userdomain.LoginPath, From: req.Location}
	}

	res, err := g.evaluator.EvaluateAccess(ctx, snap.User, req.RequiredRole)
	if err != nil {
		res, _ = engine.DefaultEvaluator{}.EvaluateAccess(ctx, snap.User, req.RequiredRole)
	}
	switch {
	case res.Redirect != "":
		return Decision{Kind: RedirectDashboard, Target: res.Redirect}
	case res.Block:
		return Decision{
			Kind:    Block,
			Message: fmt.Sprintf("Your doctor account is currently %s. Please contact the administrator for assistance.", snap.User.Status),
			Action:  ActionLogout,
		}
	case res.Allow:
		return Decision{Kind: Allow}
	}
	// An evaluator that neither allows nor redirects is treated as a block.
	return Decision{Kind: Block, Message: "Access denied.", Action: ActionLogout}
}
