package session

import (
	userdomain "medconnect/client/internal/user/domain"
)

// State is the session state machine position.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unauthenticated"
}

// Snapshot is an immutable view of the session. User is a private copy.
type Snapshot struct {
	Token   string
	User    *userdomain.User
	State   State
	Loading bool
	// Version increases with every change; subscribers may use it to drop stale snapshots.
	Version uint64
}

// Authenticated reports whether both token and user are present.
func (s Snapshot) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Role returns the user's role, or "" when unauthenticated.
func (s Snapshot) Role() userdomain.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}
