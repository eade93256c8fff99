package devauth

// Package devauth provides an in-process authentication backend for local development.
// It issues HS256 tokens shaped like the Spring Security backend's.

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
	apperrors "github.com/target/mmk-portal/internal/errors"
	"github.com/target/mmk-portal/internal/ports"
)

// argon2id parameters for stored password hashes.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 2
	argonKeyLen  = 32
	saltLen      = 16
)

// SeedUser is an account present at start-up.
type SeedUser struct {
	Username string
	Password string
	Role     domainauth.Role
}

// Config controls the dev backend.
type Config struct {
	Users           []SeedUser
	SessionDuration time.Duration // default 8h when zero
	// SigningKey signs issued tokens; a random key is generated when empty.
	SigningKey []byte
	Now        func() time.Time
}

type account struct {
	id    int64
	email string
	role  domainauth.Role
	salt  []byte
	hash  []byte
}

// Provider implements ports.Backend for local development.
type Provider struct {
	mu       sync.RWMutex
	accounts map[string]*account
	nextID   int64

	key             []byte
	sessionDuration time.Duration
	now             func() time.Time
}

var _ ports.Backend = (*Provider)(nil)

// NewProvider constructs a dev backend from Config.
func NewProvider(cfg Config) (*Provider, error) {
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	key := cfg.SigningKey
	if len(key) == 0 {
		s, err := randomString(48)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		key = []byte(s)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	p := &Provider{
		accounts:        make(map[string]*account),
		key:             key,
		sessionDuration: dur,
		now:             now,
	}
	for _, u := range cfg.Users {
		if err := p.add(u.Username, "", u.Password, u.Role); err != nil {
			return nil, fmt.Errorf("dev auth: seed %q: %w", u.Username, err)
		}
	}
	return p, nil
}

// Login verifies the password and issues a signed token.
func (p *Provider) Login(_ context.Context, in ports.Credentials) (string, error) {
	p.mu.RLock()
	acct, ok := p.accounts[strings.ToLower(in.Username)]
	p.mu.RUnlock()
	if !ok || !acct.matches(in.Password) {
		return "", apperrors.Unauthorized("Invalid username or password")
	}
	return p.issue(in.Username, acct)
}

// Register creates an account. Usernames are case-insensitive.
func (p *Provider) Register(_ context.Context, in ports.Registration) error {
	return p.add(in.Username, in.Email, in.Password, in.Role)
}

func (p *Provider) add(username, email, password string, role domainauth.Role) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return apperrors.Validation("Username and password are required")
	}
	if !role.Valid() {
		return apperrors.ValidationField("role", fmt.Sprintf("Unknown role %q", role))
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	k := strings.ToLower(username)
	if _, exists := p.accounts[k]; exists {
		return apperrors.Conflict("Username is already taken")
	}
	p.nextID++
	p.accounts[k] = &account{
		id:    p.nextID,
		email: email,
		role:  role,
		salt:  salt,
		hash:  hashPassword(password, salt),
	}
	return nil
}

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func (a *account) matches(password string) bool {
	return subtle.ConstantTimeCompare(hashPassword(password, a.salt), a.hash) == 1
}

func (p *Provider) issue(username string, acct *account) (string, error) {
	now := p.now()
	claims := jwt.MapClaims{
		"sub":         username,
		"id":          acct.id,
		"authorities": []map[string]string{{"authority": "ROLE_" + string(acct.role)}},
		"iat":         now.Unix(),
		"exp":         now.Add(p.sessionDuration).Unix(),
	}
	if acct.email != "" {
		claims["email"] = acct.email
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseUsers reads "name:password:ROLE" entries separated by commas. The password
// may itself contain colons.
func ParseUsers(spec string) ([]SeedUser, error) {
	var out []SeedUser
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		first, last := strings.Index(entry, ":"), strings.LastIndex(entry, ":")
		if first <= 0 || first == last {
			return nil, fmt.Errorf("dev auth user %q: want name:password:ROLE", entry)
		}
		name := entry[:first]
		role, ok := domainauth.ParseRole(entry[last+1:])
		if !ok {
			return nil, fmt.Errorf("dev auth user %q: %w", name, errUnknownRole)
		}
		out = append(out, SeedUser{Username: name, Password: entry[first+1 : last], Role: role})
	}
	return out, nil
}

var errUnknownRole = errors.New("unknown role")

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
