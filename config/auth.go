package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects which ports.Backend handles sign-in and registration.
type AuthMode string

const (
	// AuthModeBackend posts credentials to the JSON authentication API.
	AuthModeBackend AuthMode = "backend"
	// AuthModeOAuth2 exchanges credentials at an OAuth2 token endpoint.
	AuthModeOAuth2 AuthMode = "oauth2"
	// AuthModeMock uses the in-process dev backend (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "backend", "oauth2", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: backend, oauth2, mock)", v)
	}
}

// OAuth2Config contains password-grant settings (used when Mode=oauth2).
type OAuth2Config struct {
	TokenURL     string   `env:"TOKEN_URL"`
	ClientID     string   `env:"CLIENT_ID"     envDefault:"portal"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	Scopes       []string `env:"SCOPES"        envDefault:"openid;profile" envSeparator:";"`
	// TokenField picks the token adopted as the session: access_token or id_token.
	TokenField string        `env:"TOKEN_FIELD" envDefault:"access_token"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"10s"`
}

// DevAuthConfig seeds the mock backend (used when Mode=mock).
type DevAuthConfig struct {
	// Users is "name:password:ROLE" entries separated by commas.
	Users           string        `env:"USERS"            envDefault:"admin:admin:ADMIN,student:student:STUDENT,hr:hr:HR,trainer:trainer:TRAINER"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
	SigningKey      string        `env:"SIGNING_KEY"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"backend"`

	// OAuth2 configuration (used when Mode=oauth2).
	OAuth2 OAuth2Config `envPrefix:"OAUTH2_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims free-form values.
func (c *AuthConfig) Sanitize() {
	c.OAuth2.TokenURL = strings.TrimSpace(c.OAuth2.TokenURL)
	c.OAuth2.TokenField = strings.TrimSpace(c.OAuth2.TokenField)
	if c.OAuth2.Timeout <= 0 {
		c.OAuth2.Timeout = 10 * time.Second
	}
	if c.DevAuth.SessionDuration <= 0 {
		c.DevAuth.SessionDuration = 8 * time.Hour
	}
}
