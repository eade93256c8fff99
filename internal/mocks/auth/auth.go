package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
	"github.com/target/mmk-portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.TokenStore = (*MemoryTokenStore)(nil)
	_ ports.Backend    = (*FakeBackend)(nil)
	_ ports.RoleMapper = FixedRoleMapper("")
)

// MemoryTokenStore is an in-memory token slot for unit tests.
// Set the *Err fields to make the next calls fail.
type MemoryTokenStore struct {
	mu      sync.Mutex
	token   string
	present bool

	LoadErr   error
	SaveErr   error
	DeleteErr error

	Saves   int
	Deletes int
}

// NewMemoryTokenStore creates a store, optionally pre-seeded with token.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token, present: token != ""}
}

func (m *MemoryTokenStore) Load(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return "", false, m.LoadErr
	}
	return m.token, m.present, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}
	m.Saves++
	m.token, m.present = token, true
	return nil
}

func (m *MemoryTokenStore) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deletes++
	m.token, m.present = "", false
	return nil
}

// Token returns the stored value and whether the slot is occupied.
func (m *MemoryTokenStore) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.present
}

// FakeBackend simulates the authentication backend.
type FakeBackend struct {
	LoginFunc    func(ctx context.Context, in ports.Credentials) (string, error)
	RegisterFunc func(ctx context.Context, in ports.Registration) error

	// Token is returned by Login when LoginFunc is nil.
	Token string

	mu            sync.Mutex
	Logins        []ports.Credentials
	Registrations []ports.Registration
}

func (f *FakeBackend) Login(ctx context.Context, in ports.Credentials) (string, error) {
	f.mu.Lock()
	f.Logins = append(f.Logins, in)
	f.mu.Unlock()
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, in)
	}
	return f.Token, nil
}

func (f *FakeBackend) Register(ctx context.Context, in ports.Registration) error {
	f.mu.Lock()
	f.Registrations = append(f.Registrations, in)
	f.mu.Unlock()
	if f.RegisterFunc != nil {
		return f.RegisterFunc(ctx, in)
	}
	return nil
}

// FixedRoleMapper returns the same role for every claim set. The empty value maps to USER.
type FixedRoleMapper domainauth.Role

func (m FixedRoleMapper) Map(domainauth.ClaimSet) domainauth.Role {
	if m == "" {
		return domainauth.RoleUser
	}
	return domainauth.Role(m)
}
