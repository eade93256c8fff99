package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
	"github.com/target/mmk-portal/internal/domain/portal"
	apperrors "github.com/target/mmk-portal/internal/errors"
	"github.com/target/mmk-portal/internal/observability/metrics"
	"github.com/target/mmk-portal/internal/observability/statsd"
	"github.com/target/mmk-portal/internal/ports"
)

// User-visible failure messages.
const (
	MsgInvalidCredentials   = "Invalid username or password"
	MsgNoToken              = "Server did not return an authentication token"
	MsgConnectionFailed     = "Connection failed. Is the backend running?"
	MsgUnreadableToken      = "Server returned an unreadable authentication token"
	MsgSessionNotSaved      = "Could not save your session. Please try again."
	MsgRegistrationFailed   = "Registration failed"
	MsgRegisterUnreachable  = "Failed to connect to backend server."
	MsgSubmissionInProgress = "A request is already being processed. Please wait."
)

// ErrSubmissionInProgress is returned when a sign-in or registration is attempted
// while another one is still outstanding.
var ErrSubmissionInProgress = errors.New("submission already in progress")

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Backend  ports.Backend
	Sessions *SessionStore
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// AuthService runs credential submissions against the backend and feeds the
// resulting token into the session store.
type AuthService struct {
	backend  ports.Backend
	sessions *SessionStore
	sink     statsd.Sink
	logger   *slog.Logger

	// inflight admits one outstanding submission at a time.
	inflight *semaphore.Weighted
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Backend == nil {
		panic("Backend is required")
	}
	if opts.Sessions == nil {
		panic("SessionStore is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &AuthService{
		backend:  opts.Backend,
		sessions: opts.Sessions,
		sink:     opts.Metrics,
		logger:   opts.Logger.With("component", "auth"),
		inflight: semaphore.NewWeighted(1),
	}
}

// SignInResult is returned by a successful SignIn.
type SignInResult struct {
	User domainauth.User
	// Destination is where the caller should be sent next.
	Destination string
}

// SignIn submits credentials, adopts the returned token and resolves the post-login
// destination. captured is the originally requested path, if any. On failure the
// session is unchanged.
func (s *AuthService) SignIn(ctx context.Context, in ports.Credentials, captured string) (*SignInResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, apperrors.ValidationField("username", "Username is required")
	}
	if in.Password == "" {
		return nil, apperrors.ValidationField("password", "Password is required")
	}

	if !s.inflight.TryAcquire(1) {
		return nil, ErrSubmissionInProgress
	}
	defer s.inflight.Release(1)

	start := time.Now()
	raw, err := s.backend.Login(ctx, in)
	s.recordBackend("login", start, err)
	if err != nil {
		s.logger.WarnContext(ctx, "backend login failed", "user", in.Username, "error", err)
		return nil, fmt.Errorf("backend login: %w", err)
	}

	user, err := s.sessions.Login(ctx, raw)
	if err != nil {
		s.logger.ErrorContext(ctx, "could not adopt login token", "user", in.Username, "error", err)
		return nil, fmt.Errorf("adopt token: %w", err)
	}

	return &SignInResult{
		User:        user,
		Destination: portal.PostLoginPath(&user, captured),
	}, nil
}

// RegisterableRoles lists the roles offered on the registration form, in display order.
func RegisterableRoles() []domainauth.Role {
	return []domainauth.Role{
		domainauth.RoleStudent,
		domainauth.RoleTrainer,
		domainauth.RoleHR,
		domainauth.RoleAdmin,
	}
}

func registerable(r domainauth.Role) bool {
	for _, c := range RegisterableRoles() {
		if c == r {
			return true
		}
	}
	return false
}

// Register creates an account on the backend. It never touches the session.
func (s *AuthService) Register(ctx context.Context, in ports.Registration) error {
	if err := validateRegistration(&in); err != nil {
		return err
	}

	if !s.inflight.TryAcquire(1) {
		return ErrSubmissionInProgress
	}
	defer s.inflight.Release(1)

	start := time.Now()
	err := s.backend.Register(ctx, in)
	s.recordBackend("register", start, err)
	if err != nil {
		s.logger.WarnContext(ctx, "backend registration failed", "user", in.Username, "error", err)
		return fmt.Errorf("backend register: %w", err)
	}
	s.logger.InfoContext(ctx, "account registered", "user", in.Username, "role", in.Role)
	return nil
}

func validateRegistration(in *ports.Registration) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return apperrors.ValidationField("username", "Username is required")
	}
	if in.Email == "" {
		return apperrors.ValidationField("email", "Email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperrors.ValidationField("email", "Email is not valid")
	}
	if in.Password == "" {
		return apperrors.ValidationField("password", "Password is required")
	}
	if in.Role == "" {
		in.Role = domainauth.RoleStudent
	}
	in.Role = domainauth.Role(strings.ToUpper(string(in.Role)))
	if !registerable(in.Role) {
		return apperrors.ValidationField("role", "Role must be one of STUDENT, TRAINER, HR or ADMIN")
	}
	return nil
}

// SignOut ends the current session.
func (s *AuthService) SignOut(ctx context.Context) error {
	return s.sessions.Logout(ctx)
}

// CurrentUser returns the signed-in user or ErrUnauthenticated.
func (s *AuthService) CurrentUser() (domainauth.User, error) {
	snap := s.sessions.Snapshot()
	if !snap.IsAuthenticated || snap.CurrentUser == nil {
		return domainauth.User{}, ErrUnauthenticated
	}
	return *snap.CurrentUser, nil
}

// Session returns the current session snapshot.
func (s *AuthService) Session() domainauth.Session {
	return s.sessions.Snapshot()
}

// ExpiresAt returns the expiry of the current token, or the zero time when signed out.
func (s *AuthService) ExpiresAt() time.Time {
	return s.sessions.ExpiresAt()
}

func (s *AuthService) recordBackend(op string, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitBackendCall(s.sink, metrics.BackendMetric{
		Operation: op,
		Result:    result,
		Duration:  time.Since(start),
		Err:       err,
	})
}

// LoginFailureMessage turns a SignIn error into the text shown on the sign-in form.
func LoginFailureMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSubmissionInProgress):
		return MsgSubmissionInProgress
	case errors.Is(err, ports.ErrNoTokenInResponse):
		return MsgNoToken
	case errors.Is(err, ErrUndecodableToken):
		return MsgUnreadableToken
	case errors.Is(err, ErrTokenNotPersisted):
		return MsgSessionNotSaved
	}
	return backendMessage(err, MsgInvalidCredentials, MsgConnectionFailed)
}

// RegisterFailureMessage turns a Register error into the text shown on the registration form.
func RegisterFailureMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSubmissionInProgress):
		return MsgSubmissionInProgress
	}
	return backendMessage(err, MsgRegistrationFailed, MsgRegisterUnreachable)
}

// backendMessage prefers the message carried by an AppError. Without one, an
// AppError with no cause is a backend response (rejected); anything else failed
// before the backend answered.
func backendMessage(err error, rejected, unreachable string) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return unreachable
	}
	if appErr.Message != "" {
		return appErr.Message
	}
	if appErr.Cause != nil {
		return unreachable
	}
	return rejected
}
