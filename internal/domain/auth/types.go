package auth

// Package auth contains domain-level types for portal callers and their session.
// It is pure and free of framework/adapter concerns.

import "strings"

// Role represents a caller's canonical portal role.
// The string form matches the values issued by the backend after normalisation.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
	RoleHR      Role = "HR"
	RoleTrainer Role = "TRAINER"
	RoleUser    Role = "USER"
	RoleGuest   Role = "GUEST"
)

// Roles lists every valid Role in declaration order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleStudent, RoleHR, RoleTrainer, RoleUser, RoleGuest}
}

// ParseRole converts a case-insensitive role name into a Role.
// It does not strip any prefix; claim normalisation lives in the role mapper.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// User is the authenticated caller. Token is the raw signed token, kept so it can be
// attached to later backend calls.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Token    string `json:"-"`
}

// Phase is the lifecycle of the process-wide session.
type Phase int

const (
	// PhaseUninitialized is the state before start-up restoration has begun.
	PhaseUninitialized Phase = iota
	// PhaseLoading covers the start-up restoration window.
	PhaseLoading
	// PhaseReady is every state after restoration has completed.
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Session is a read-only snapshot of who the current caller is.
// IsAuthenticated is true exactly when CurrentUser is non-nil.
type Session struct {
	CurrentUser     *User `json:"user"`
	IsAuthenticated bool  `json:"authenticated"`
	IsLoading       bool  `json:"loading"`
}

// Anonymous returns the ready, signed-out snapshot.
func Anonymous() Session {
	return Session{}
}

// Authenticated returns the ready snapshot for u.
func Authenticated(u User) Session {
	return Session{CurrentUser: &u, IsAuthenticated: true}
}

// Loading returns the snapshot used while restoration has not finished.
func Loading() Session {
	return Session{IsLoading: true}
}

// Role returns the current caller's role, or empty when signed out.
func (s Session) Role() Role {
	if s.CurrentUser == nil {
		return ""
	}
	return s.CurrentUser.Role
}

// Clone returns a deep copy so callers can never mutate store-owned state.
func (s Session) Clone() Session {
	if s.CurrentUser == nil {
		return s
	}
	u := *s.CurrentUser
	s.CurrentUser = &u
	return s
}
