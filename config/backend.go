package config

import (
	"strings"
	"time"
)

// BackendConfig configures the JSON authentication API client.
type BackendConfig struct {
	BaseURL      string        `env:"BASE_URL"      envDefault:"http://localhost:8080"`
	LoginPath    string        `env:"LOGIN_PATH"    envDefault:"/api/auth/login"`
	RegisterPath string        `env:"REGISTER_PATH" envDefault:"/api/auth/register"`
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"10s"`

	// TokenFields are JMESPath expressions tried in order against the login response.
	TokenFields []string `env:"TOKEN_FIELDS" envDefault:"accessToken;token;jwt" envSeparator:";"`

	// RateLimit caps outbound requests per second; zero disables pacing.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"0"`
	Burst     int     `env:"BURST"      envDefault:"5"`
}

// Sanitize applies guardrails to backend client values.
func (c *BackendConfig) Sanitize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	fields := c.TokenFields[:0]
	for _, f := range c.TokenFields {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	c.TokenFields = fields
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
}
