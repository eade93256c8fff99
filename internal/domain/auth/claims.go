package auth

import "time"

// ClaimKind tags the shape a single claim entry arrived in.
type ClaimKind int

const (
	// ClaimAbsent covers missing entries and shapes that carry no string (numbers, nested lists).
	ClaimAbsent ClaimKind = iota
	// ClaimString is a bare string entry, e.g. "ROLE_ADMIN".
	ClaimString
	// ClaimRecord is a single-field record whose field holds the string, e.g. {"authority":"ROLE_ADMIN"}.
	ClaimRecord
)

// ClaimValue is one role-bearing claim entry.
type ClaimValue struct {
	Kind ClaimKind
	Text string
}

// StringClaim builds a bare string entry.
func StringClaim(s string) ClaimValue { return ClaimValue{Kind: ClaimString, Text: s} }

// RecordClaim builds a record entry carrying s.
func RecordClaim(s string) ClaimValue { return ClaimValue{Kind: ClaimRecord, Text: s} }

// Value returns the carried string and whether one exists.
func (c ClaimValue) Value() (string, bool) {
	if c.Kind == ClaimAbsent {
		return "", false
	}
	return c.Text, true
}

// ClaimSet is the decoded token payload.
type ClaimSet struct {
	Subject     string       `mapstructure:"sub"`
	ID          string       `mapstructure:"id"`
	Role        ClaimValue   `mapstructure:"role"`
	Roles       []ClaimValue `mapstructure:"roles"`
	Authorities []ClaimValue `mapstructure:"authorities"`
	// Expiration is seconds since the Unix epoch.
	Expiration int64 `mapstructure:"exp"`
}

// UserID returns the explicit id claim, falling back to the subject.
func (c ClaimSet) UserID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Subject
}

// ExpiresAt interprets Expiration as epoch seconds.
func (c ClaimSet) ExpiresAt() time.Time {
	return time.Unix(c.Expiration, 0)
}

// ExpiredAt reports whether the token is expired at now, i.e. exp is not after
// the current whole second.
func (c ClaimSet) ExpiredAt(now time.Time) bool {
	return c.Expiration <= now.Unix()
}
