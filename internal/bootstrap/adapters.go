package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-portal/config"
	"github.com/target/mmk-portal/internal/adapters/backend"
	"github.com/target/mmk-portal/internal/adapters/devauth"
	"github.com/target/mmk-portal/internal/adapters/filestore"
	"github.com/target/mmk-portal/internal/adapters/oauth2pw"
	redisstore "github.com/target/mmk-portal/internal/adapters/redis"
	"github.com/target/mmk-portal/internal/data"
	"github.com/target/mmk-portal/internal/observability/statsd"
	"github.com/target/mmk-portal/internal/ports"
)

// Infrastructure holds the connections the configured token store needs.
// Either field may be nil.
type Infrastructure struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

// InitInfrastructure connects only what cfg.Storage.Kind requires and applies
// migrations when Postgres is in use.
func InitInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Infrastructure, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	infra := &Infrastructure{}
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	switch cfg.Storage.Kind {
	case config.TokenStorePostgres:
		db, err := ConnectDB(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		infra.DB = db
		if !cfg.Postgres.RunMigrationsOnStart {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
			return infra, nil
		}
		if err := RunMigrations(ctx, db, logger); err != nil {
			return nil, errors.Join(err, infra.Close())
		}
	case config.TokenStoreRedis:
		client, err := ConnectRedis(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		infra.Redis = client
	}
	return infra, nil
}

// Close releases whichever connections were opened.
func (i *Infrastructure) Close() error {
	if i == nil {
		return nil
	}
	var errs []error
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// BuildTokenStore returns the durable slot for cfg.Storage.Kind.
//
//nolint:ireturn // the concrete store depends on configuration.
func BuildTokenStore(cfg *config.AppConfig, infra *Infrastructure) (ports.TokenStore, error) {
	switch cfg.Storage.Kind {
	case config.TokenStoreRedis:
		if infra == nil || infra.Redis == nil {
			return nil, errors.New("redis token store requires a redis client")
		}
		return redisstore.NewTokenStoreWithPrefix(infra.Redis, cfg.Storage.RedisPrefix, cfg.Storage.Slot), nil
	case config.TokenStorePostgres:
		if infra == nil || infra.DB == nil {
			return nil, errors.New("postgres token store requires a database")
		}
		return data.NewTokenSlotRepo(infra.DB, cfg.Storage.Slot), nil
	case config.TokenStoreFile, "":
		return filestore.New(cfg.Storage.Dir, cfg.Storage.Slot), nil
	default:
		return nil, fmt.Errorf("unsupported token store %q", cfg.Storage.Kind)
	}
}

// BuildBackend returns the sign-in and registration backend for cfg.Auth.Mode.
//
//nolint:ireturn // the concrete backend depends on configuration.
func BuildBackend(cfg *config.AppConfig, logger *slog.Logger) (ports.Backend, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		users, err := devauth.ParseUsers(cfg.Auth.DevAuth.Users)
		if err != nil {
			return nil, fmt.Errorf("parse dev auth users: %w", err)
		}
		logger.Warn("using in-process dev authentication; do not run this in production",
			"seeded_users", len(users))
		return devauth.NewProvider(devauth.Config{
			Users:           users,
			SessionDuration: cfg.Auth.DevAuth.SessionDuration,
			SigningKey:      []byte(cfg.Auth.DevAuth.SigningKey),
		})
	case config.AuthModeOAuth2:
		// Registration still goes to the JSON API when one is configured.
		var registrar ports.Backend
		if cfg.Backend.BaseURL != "" {
			client, err := newBackendClient(cfg.Backend, logger)
			if err != nil {
				return nil, err
			}
			registrar = client
		}
		oc := cfg.Auth.OAuth2
		return oauth2pw.New(oauth2pw.Config{
			TokenURL:     oc.TokenURL,
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			Scopes:       oc.Scopes,
			TokenField:   oc.TokenField,
			Timeout:      oc.Timeout,
			Registrar:    registrar,
		})
	case config.AuthModeBackend, "":
		return newBackendClient(cfg.Backend, logger)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func newBackendClient(cfg config.BackendConfig, logger *slog.Logger) (*backend.Client, error) {
	client, err := backend.NewClient(backend.Config{
		BaseURL:      cfg.BaseURL,
		LoginPath:    cfg.LoginPath,
		RegisterPath: cfg.RegisterPath,
		Timeout:      cfg.Timeout,
		TokenFields:  cfg.TokenFields,
		RateLimit:    cfg.RateLimit,
		Burst:        cfg.Burst,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build backend client: %w", err)
	}
	return client, nil
}

// BuildMetrics returns the statsd client. When metrics are disabled the client
// is a no-op but still non-nil.
func BuildMetrics(cfg *config.AppConfig, logger *slog.Logger) (*statsd.Client, error) {
	m := cfg.Observability.Metrics
	client, err := statsd.NewClient(statsd.Config{
		Enabled: m.IsEnabled(),
		Address: m.StatsdAddress,
		Prefix:  m.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	if client.Enabled() {
		logger.Info("statsd metrics enabled", "address", m.StatsdAddress, "prefix", m.Prefix)
	}
	return client, nil
}
