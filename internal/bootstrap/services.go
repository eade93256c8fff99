package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-portal/config"
	"github.com/target/mmk-portal/internal/adapters/authroles"
	"github.com/target/mmk-portal/internal/adapters/jwtclaims"
	"github.com/target/mmk-portal/internal/adapters/sweeper"
	"github.com/target/mmk-portal/internal/data"
	"github.com/target/mmk-portal/internal/observability/statsd"
	"github.com/target/mmk-portal/internal/ports"
	"github.com/target/mmk-portal/internal/service"
)

// ServiceContainer holds all initialized services.
type ServiceContainer struct {
	Sessions *service.SessionStore
	Auth     *service.AuthService
	Sweeper  *sweeper.Runner // nil unless the session-sweeper service is enabled
	Metrics  *statsd.Client
}

// ServiceDeps contains dependencies needed to create services.
type ServiceDeps struct {
	Config  *config.AppConfig
	Tokens  ports.TokenStore
	Backend ports.Backend
	Metrics *statsd.Client
	// TimeProvider overrides the wall clock; nil means real time.
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// NewServices wires the session store, auth service and optional sweeper.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	if deps.Tokens == nil {
		return ServiceContainer{}, errors.New("token store is required")
	}
	if deps.Backend == nil {
		return ServiceContainer{}, errors.New("auth backend is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sink statsd.Sink
	if deps.Metrics != nil {
		sink = deps.Metrics
	}

	sessions := service.NewSessionStore(service.SessionStoreOptions{
		Tokens:          deps.Tokens,
		Decoder:         jwtclaims.New(),
		Roles:           authroles.ClaimRoleMapper{},
		TimeProvider:    deps.TimeProvider,
		Metrics:         sink,
		Logger:          logger,
		MillisThreshold: deps.Config.Session.ExpMillisThreshold,
	})
	auth := service.NewAuthService(service.AuthServiceOptions{
		Backend:  deps.Backend,
		Sessions: sessions,
		Metrics:  sink,
		Logger:   logger,
	})

	container := ServiceContainer{Sessions: sessions, Auth: auth, Metrics: deps.Metrics}
	if deps.Config.IsSessionSweeperEnabled() {
		runner, err := sweeper.NewRunner(sweeper.RunnerOptions{
			Sessions: sessions,
			Schedule: deps.Config.Session.ExpirySweep,
			Logger:   logger,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("create session sweeper: %w", err)
		}
		container.Sweeper = runner
	}
	return container, nil
}

// ServiceOrchestrationConfig contains dependencies for running services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts every enabled runnable, restores the persisted
// session in the background and blocks until SIGINT/SIGTERM, ctx cancellation or
// the first runnable failure. The HTTP server is up before restoration settles,
// so early requests see the pending session.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("orchestration config is required")
	}
	if cfg.Services.Sessions == nil || cfg.Services.Auth == nil {
		return errors.New("session services are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Config.IsHTTPServerEnabled() {
		server := NewHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
		g.Go(func() error { return ServeHTTP(server, logger) })
		g.Go(func() error {
			<-gctx.Done()
			return ShutdownHTTPServer(ShutdownConfig{
				Server:  server,
				Timeout: cfg.Config.HTTP.ShutdownTimeout,
				Logger:  logger,
			})
		})
	}

	g.Go(func() error {
		if err := cfg.Services.Sessions.Restore(gctx); err != nil {
			// The session is already settled as signed out; keep serving.
			logger.WarnContext(gctx, "session restore failed", "error", err)
		}
		return nil
	})

	if cfg.Services.Sweeper != nil {
		g.Go(func() error {
			if err := cfg.Services.Sweeper.Run(gctx); err != nil {
				return fmt.Errorf("session sweeper: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logger.Error("service failed", "error", err)
		return err
	}
	logger.Info("all services stopped")
	return nil
}
