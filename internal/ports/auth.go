package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
)

// TokenStore persists the raw session token in one named durable slot.
type TokenStore interface {
	// Load returns the stored token; ok is false when the slot is empty.
	Load(ctx context.Context) (token string, ok bool, err error)
	Save(ctx context.Context, token string) error
	// Delete empties the slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context) error
}

// TokenDecoder reads the claim set out of a raw token without verifying it.
type TokenDecoder interface {
	Decode(raw string) (domainauth.ClaimSet, error)
}

// RoleMapper maps decoded claims to exactly one application role.
type RoleMapper interface {
	Map(claims domainauth.ClaimSet) domainauth.Role
}

// Credentials are submitted on sign-in.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is submitted on account creation.
type Registration struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domainauth.Role `json:"role"`
}

// ErrNoTokenInResponse is returned by a Backend whose successful login response
// carried no usable token.
var ErrNoTokenInResponse = errors.New("no token in login response")

// Backend is the external authentication service.
type Backend interface {
	// Login exchanges credentials for a raw token.
	Login(ctx context.Context, in Credentials) (string, error)
	Register(ctx context.Context, in Registration) error
}
