package config

import (
	"fmt"
	"strings"
)

// TokenStoreKind selects where the raw token slot lives.
type TokenStoreKind string

const (
	// TokenStoreFile keeps the slot in a file under Dir.
	TokenStoreFile TokenStoreKind = "file"
	// TokenStoreRedis keeps the slot under a Redis key.
	TokenStoreRedis TokenStoreKind = "redis"
	// TokenStorePostgres keeps the slot in the token_slots table.
	TokenStorePostgres TokenStoreKind = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for TokenStoreKind.
func (k *TokenStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "file", "redis", "postgres":
		*k = TokenStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid TokenStoreKind: %q (valid options: file, redis, postgres)", v)
	}
}

// StorageConfig configures the durable token slot.
type StorageConfig struct {
	Kind TokenStoreKind `env:"TOKEN_STORE" envDefault:"file"`
	Slot string         `env:"TOKEN_SLOT"  envDefault:"jwt_token"`
	// Dir holds the slot file when Kind=file.
	Dir string `env:"TOKEN_DIR" envDefault:".portal"`
	// RedisPrefix namespaces the slot key when Kind=redis.
	RedisPrefix string `env:"TOKEN_REDIS_PREFIX" envDefault:"portal:"`
}

// Sanitize applies defaults to blank values.
func (c *StorageConfig) Sanitize() {
	if c.Slot = strings.TrimSpace(c.Slot); c.Slot == "" {
		c.Slot = "jwt_token"
	}
	if c.Dir = strings.TrimSpace(c.Dir); c.Dir == "" {
		c.Dir = ".portal"
	}
}

// SessionConfig controls the session lifecycle.
type SessionConfig struct {
	// ExpirySweep is a cron spec for the periodic expiry check.
	ExpirySweep string `env:"EXPIRY_SWEEP" envDefault:"@every 30s"`
	// ExpMillisThreshold treats exp values at or above it as milliseconds.
	// Zero keeps the built-in default and a negative value disables the check.
	ExpMillisThreshold int64 `env:"EXP_MILLIS_THRESHOLD" envDefault:"0"`
}

// Sanitize applies defaults to blank values.
func (c *SessionConfig) Sanitize() {
	if c.ExpirySweep = strings.TrimSpace(c.ExpirySweep); c.ExpirySweep == "" {
		c.ExpirySweep = "@every 30s"
	}
}
