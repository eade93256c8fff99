package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
	"github.com/target/mmk-portal/internal/domain/portal"
	"github.com/target/mmk-portal/internal/observability/metrics"
	"github.com/target/mmk-portal/internal/observability/statsd"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestID returns a middleware that tags each request with an ID, reusing a
// well-formed inbound X-Request-Id.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", RequestIDFromContext(r.Context())),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection returns a middleware that records whether the caller wants HTML.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowserRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest returns true if the current request is from a browser.
func IsBrowserRequest(r *http.Request) bool {
	if isBrowser, ok := r.Context().Value(browserRequestKey{}).(bool); ok {
		return isBrowser
	}
	return isBrowserRequest(r)
}

// isBrowserRequest treats /auth/ and /static/ as non-browser, JSON bodies as API
// calls, and otherwise trusts the Accept header. A missing Accept means browser.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/auth/") || strings.HasPrefix(r.URL.Path, "/static/") {
		return false
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

// SessionSource exposes the current session snapshot.
type SessionSource interface {
	Session() domainauth.Session
}

// RouteGuard enforces portal.Guard decisions on HTTP routes.
type RouteGuard struct {
	Sessions SessionSource
	// Pending renders the placeholder shown while the session is still being restored.
	Pending http.Handler
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// Require returns a middleware admitting only callers the route accepts.
// Browsers are redirected; API callers get 401/403/503 JSON responses.
func (g *RouteGuard) Require(route portal.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := g.Sessions.Session()
			d := portal.Guard(snap, route, r.URL.RequestURI())
			metrics.EmitGuardDecision(g.Metrics, route.Path, d.Outcome.String())

			switch d.Outcome {
			case portal.OutcomeRender:
				next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), snap)))
			case portal.OutcomePending:
				g.pending(w, r)
			case portal.OutcomeLogin:
				g.deny(w, r, d.Location, http.StatusUnauthorized, "authentication_required")
			default:
				if g.Logger != nil {
					g.Logger.InfoContext(r.Context(), "role mismatch",
						"path", route.Path, "role", snap.Role(), "request_id", RequestIDFromContext(r.Context()))
				}
				g.deny(w, r, d.Location, http.StatusForbidden, "insufficient_permissions")
			}
		})
	}
}

func (g *RouteGuard) pending(w http.ResponseWriter, r *http.Request) {
	if IsBrowserRequest(r) && g.Pending != nil {
		g.Pending.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Retry-After", "1")
	WriteError(w, ErrorParams{
		Code:    http.StatusServiceUnavailable,
		ErrCode: "session_loading",
		Err:     errors.New("session is still loading"),
	})
}

func (g *RouteGuard) deny(w http.ResponseWriter, r *http.Request, location string, status int, code string) {
	if IsBrowserRequest(r) {
		http.Redirect(w, r, location, http.StatusSeeOther)
		return
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: errors.New(strings.ReplaceAll(code, "_", " "))})
}
