// Package testutil provides testing utilities and helpers for the portal.
package testutil

import (
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSigningKey signs fixture tokens. Nothing in the portal verifies it.
var TestSigningKey = []byte("portal-test-signing-key")

// TokenBuilder provides a fluent interface for minting signed fixture tokens.
type TokenBuilder struct {
	claims jwt.MapClaims
}

// NewToken creates a TokenBuilder for subject with an expiry one hour after TestTime.
func NewToken(subject string) *TokenBuilder {
	return &TokenBuilder{
		claims: jwt.MapClaims{
			"sub": subject,
			"exp": TestTime().Add(time.Hour).Unix(),
		},
	}
}

// WithID sets the explicit id claim.
func (b *TokenBuilder) WithID(id any) *TokenBuilder {
	b.claims["id"] = id
	return b
}

// WithRole sets the single role claim.
func (b *TokenBuilder) WithRole(role any) *TokenBuilder {
	b.claims["role"] = role
	return b
}

// WithRoles sets the role-list claim.
func (b *TokenBuilder) WithRoles(roles ...any) *TokenBuilder {
	b.claims["roles"] = roles
	return b
}

// WithAuthorities sets the authority-list claim. Entries may be strings or maps.
func (b *TokenBuilder) WithAuthorities(entries ...any) *TokenBuilder {
	b.claims["authorities"] = entries
	return b
}

// WithAuthorityRecords sets authorities as {"authority": name} records.
func (b *TokenBuilder) WithAuthorityRecords(names ...string) *TokenBuilder {
	entries := make([]any, 0, len(names))
	for _, n := range names {
		entries = append(entries, map[string]any{"authority": n})
	}
	return b.WithAuthorities(entries...)
}

// ExpiresAt sets exp in epoch seconds.
func (b *TokenBuilder) ExpiresAt(t time.Time) *TokenBuilder {
	b.claims["exp"] = t.Unix()
	return b
}

// WithClaim sets an arbitrary claim.
func (b *TokenBuilder) WithClaim(key string, v any) *TokenBuilder {
	b.claims[key] = v
	return b
}

// Without removes a claim.
func (b *TokenBuilder) Without(key string) *TokenBuilder {
	delete(b.claims, key)
	return b
}

// Build signs the token with HS256 and TestSigningKey.
func (b *TokenBuilder) Build() string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, b.claims).SignedString(TestSigningKey)
	if err != nil {
		panic("testutil: sign fixture token: " + err.Error())
	}
	return s
}

// RawToken wraps an arbitrary payload string as the middle segment of an unsigned token.
func RawToken(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString([]byte(payload)) + ".sig"
}
