package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/mmk-portal/internal/data"
	domainauth "github.com/target/mmk-portal/internal/domain/auth"
	"github.com/target/mmk-portal/internal/observability/metrics"
	"github.com/target/mmk-portal/internal/observability/statsd"
	"github.com/target/mmk-portal/internal/ports"
)

// DefaultMillisThreshold is the exp value at or above which a token is assumed to
// carry epoch milliseconds. 1e11 seconds is roughly the year 5138.
const DefaultMillisThreshold int64 = 100_000_000_000

var (
	// ErrUnauthenticated is returned by operations that need a current user.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrUndecodableToken wraps decoder failures surfaced by Login.
	ErrUndecodableToken = errors.New("undecodable token")
	// ErrTokenNotPersisted wraps token store failures surfaced by Login.
	ErrTokenNotPersisted = errors.New("token not persisted")
)

// SessionStoreOptions holds the dependencies for creating a SessionStore.
type SessionStoreOptions struct {
	Tokens       ports.TokenStore
	Decoder      ports.TokenDecoder
	Roles        ports.RoleMapper
	TimeProvider data.TimeProvider
	Metrics      statsd.Sink
	Logger       *slog.Logger
	// MillisThreshold enables the exp unit check; zero uses DefaultMillisThreshold
	// and a negative value disables it.
	MillisThreshold int64
}

// SessionStore owns the process-wide session. All mutations are serialised and
// each one replaces the whole state value; readers only ever see snapshots.
type SessionStore struct {
	tokens    ports.TokenStore
	decoder   ports.TokenDecoder
	roles     ports.RoleMapper
	clock     data.TimeProvider
	sink      statsd.Sink
	logger    *slog.Logger
	threshold int64

	// mutate serialises Restore/Login/Logout/Expire, including their slot I/O.
	mutate sync.Mutex
	// staleSlot is set when a logout could not delete the persisted token.
	// Guarded by mutate.
	staleSlot bool

	mu     sync.RWMutex
	phase  domainauth.Phase
	state  domainauth.Session
	claims domainauth.ClaimSet
}

// NewSessionStore creates an uninitialized SessionStore. Call Restore once at start-up.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	if opts.Tokens == nil {
		panic("TokenStore is required")
	}
	if opts.Decoder == nil {
		panic("TokenDecoder is required")
	}
	if opts.Roles == nil {
		panic("RoleMapper is required")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MillisThreshold == 0 {
		opts.MillisThreshold = DefaultMillisThreshold
	}
	return &SessionStore{
		tokens:    opts.Tokens,
		decoder:   opts.Decoder,
		roles:     opts.Roles,
		clock:     opts.TimeProvider,
		sink:      opts.Metrics,
		logger:    opts.Logger.With("component", "session"),
		threshold: opts.MillisThreshold,
		phase:     domainauth.PhaseUninitialized,
		state:     domainauth.Loading(),
	}
}

// Snapshot returns a copy of the current session.
func (s *SessionStore) Snapshot() domainauth.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Phase reports the lifecycle phase.
func (s *SessionStore) Phase() domainauth.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// ExpiresAt returns the current token's expiry, or the zero time when unauthenticated.
func (s *SessionStore) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.IsAuthenticated {
		return time.Time{}
	}
	return s.expiry(s.claims)
}

func (s *SessionStore) replace(phase domainauth.Phase, state domainauth.Session, claims domainauth.ClaimSet) {
	s.mu.Lock()
	s.phase, s.state, s.claims = phase, state, claims
	s.mu.Unlock()
}

// Restore loads the persisted token, if any, and settles the session. Only the
// first call does work; later calls return immediately. A store read failure
// still leaves the session ready and unauthenticated.
func (s *SessionStore) Restore(ctx context.Context) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	if s.Phase() != domainauth.PhaseUninitialized {
		return nil
	}
	s.replace(domainauth.PhaseLoading, domainauth.Loading(), domainauth.ClaimSet{})

	raw, ok, err := s.tokens.Load(ctx)
	if err != nil {
		s.replace(domainauth.PhaseReady, domainauth.Anonymous(), domainauth.ClaimSet{})
		s.emit(metrics.TransitionRestore, metrics.ResultError, "", err)
		return fmt.Errorf("load token: %w", err)
	}
	if !ok {
		s.replace(domainauth.PhaseReady, domainauth.Anonymous(), domainauth.ClaimSet{})
		s.emit(metrics.TransitionRestore, metrics.ResultNoop, "", nil)
		return nil
	}

	claims, err := s.decoder.Decode(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "discarding undecodable persisted token", "error", err)
		s.clearSlot(ctx)
		s.replace(domainauth.PhaseReady, domainauth.Anonymous(), domainauth.ClaimSet{})
		s.emit(metrics.TransitionRestore, metrics.ResultError, "", err)
		return nil
	}

	if s.expired(ctx, claims) {
		s.logger.InfoContext(ctx, "persisted token expired", "sub", claims.Subject, "exp", claims.Expiration)
		s.clearSlot(ctx)
		s.replace(domainauth.PhaseReady, domainauth.Anonymous(), domainauth.ClaimSet{})
		s.emit(metrics.TransitionExpire, metrics.ResultSuccess, "", nil)
		return nil
	}

	user := s.userFrom(raw, claims)
	s.replace(domainauth.PhaseReady, domainauth.Authenticated(user), claims)
	s.logger.InfoContext(ctx, "session restored", "user", user.Username, "role", user.Role)
	s.emit(metrics.TransitionRestore, metrics.ResultSuccess, user.Role.String(), nil)
	return nil
}

// Login adopts raw as the session token. On a decode or persistence failure the
// session is left exactly as it was. Any previous session is replaced.
func (s *SessionStore) Login(ctx context.Context, raw string) (domainauth.User, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	claims, err := s.decoder.Decode(raw)
	if err != nil {
		s.emit(metrics.TransitionLogin, metrics.ResultError, "", err)
		return domainauth.User{}, fmt.Errorf("%w: %w", ErrUndecodableToken, err)
	}
	if err := s.tokens.Save(ctx, raw); err != nil {
		s.emit(metrics.TransitionLogin, metrics.ResultError, "", err)
		return domainauth.User{}, fmt.Errorf("%w: %w", ErrTokenNotPersisted, err)
	}

	user := s.userFrom(raw, claims)
	s.staleSlot = false
	s.replace(domainauth.PhaseReady, domainauth.Authenticated(user), claims)
	s.logger.InfoContext(ctx, "session started", "user", user.Username, "role", user.Role)
	s.emit(metrics.TransitionLogin, metrics.ResultSuccess, user.Role.String(), nil)
	return user, nil
}

// Logout clears the persisted token and the session. It is idempotent. The
// in-memory session is cleared even when the slot delete fails; the delete is
// then retried by ExpireIfStale until it succeeds.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	prev := s.Snapshot()
	err := s.tokens.Delete(ctx)
	s.replace(domainauth.PhaseReady, domainauth.Anonymous(), domainauth.ClaimSet{})
	s.staleSlot = err != nil

	if err != nil {
		s.emit(metrics.TransitionLogout, metrics.ResultError, "", err)
		return fmt.Errorf("delete token: %w", err)
	}
	if prev.IsAuthenticated {
		s.logger.InfoContext(ctx, "session ended", "user", prev.CurrentUser.Username)
		s.emit(metrics.TransitionLogout, metrics.ResultSuccess, prev.Role().String(), nil)
	} else {
		s.emit(metrics.TransitionLogout, metrics.ResultNoop, "", nil)
	}
	return nil
}

// ExpireIfStale ends the session when its token has expired. It reports whether
// the session was ended. A token left behind by a failed logout or expiry is
// deleted here as well.
func (s *SessionStore) ExpireIfStale(ctx context.Context) (bool, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.RLock()
	authenticated, claims := s.state.IsAuthenticated, s.claims
	s.mu.RUnlock()

	if !authenticated {
		return false, s.retryStaleDelete(ctx)
	}
	if !s.expired(ctx, claims) {
		return false, nil
	}

	err := s.tokens.Delete(ctx)
	s.replace(domainauth.PhaseReady, domainauth.Anonymous(), domainauth.ClaimSet{})
	s.staleSlot = err != nil
	s.logger.InfoContext(ctx, "session expired", "sub", claims.Subject, "exp", claims.Expiration)
	if err != nil {
		s.emit(metrics.TransitionExpire, metrics.ResultError, "", err)
		return true, fmt.Errorf("delete expired token: %w", err)
	}
	s.emit(metrics.TransitionExpire, metrics.ResultSuccess, "", nil)
	return true, nil
}

// PendingSlotDelete reports whether a signed-out token is still persisted
// because its delete failed.
func (s *SessionStore) PendingSlotDelete() bool {
	s.mutate.Lock()
	defer s.mutate.Unlock()
	return s.staleSlot
}

// retryStaleDelete must be called with mutate held.
func (s *SessionStore) retryStaleDelete(ctx context.Context) error {
	if !s.staleSlot {
		return nil
	}
	if err := s.tokens.Delete(ctx); err != nil {
		s.emit(metrics.TransitionLogout, metrics.ResultError, "", err)
		return fmt.Errorf("retry token delete: %w", err)
	}
	s.staleSlot = false
	s.logger.InfoContext(ctx, "deleted token left by an earlier sign-out")
	s.emit(metrics.TransitionLogout, metrics.ResultSuccess, "", nil)
	return nil
}

func (s *SessionStore) userFrom(raw string, claims domainauth.ClaimSet) domainauth.User {
	return domainauth.User{
		ID:       claims.UserID(),
		Username: claims.Subject,
		Role:     s.roles.Map(claims),
		Token:    raw,
	}
}

// looksLikeMillis reports whether exp is past the configured unit threshold.
func (s *SessionStore) looksLikeMillis(exp int64) bool {
	return s.threshold > 0 && exp >= s.threshold
}

func (s *SessionStore) expired(ctx context.Context, c domainauth.ClaimSet) bool {
	now := s.clock.Now()
	if s.looksLikeMillis(c.Expiration) {
		s.logger.WarnContext(ctx, "token exp looks like epoch milliseconds", "exp", c.Expiration)
		return c.Expiration <= now.UnixMilli()
	}
	return c.ExpiredAt(now)
}

func (s *SessionStore) expiry(c domainauth.ClaimSet) time.Time {
	if s.looksLikeMillis(c.Expiration) {
		return time.UnixMilli(c.Expiration)
	}
	return c.ExpiresAt()
}

func (s *SessionStore) clearSlot(ctx context.Context) {
	if err := s.tokens.Delete(ctx); err != nil {
		s.staleSlot = true
		s.logger.ErrorContext(ctx, "failed to clear persisted token", "error", err)
	}
}

func (s *SessionStore) emit(transition, result, role string, err error) {
	metrics.EmitSessionTransition(s.sink, metrics.SessionMetric{
		Transition: transition,
		Result:     result,
		Role:       role,
		Err:        err,
	})
}
