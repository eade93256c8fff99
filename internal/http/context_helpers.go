package httpx

import (
	"context"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
)

// Context keys are centralized in this file so all handlers/middleware use the same ones.
type (
	sessionKey   struct{}
	requestIDKey struct{}
)

// SetSessionInContext returns a child context that carries the session snapshot
// the guard admitted the request with.
func SetSessionInContext(ctx context.Context, s domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// GetSessionFromContext returns the admitted session snapshot, if any.
func GetSessionFromContext(ctx context.Context) (domainauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domainauth.Session)
	return s, ok
}

// CurrentUser returns the user of the admitted session, or nil.
func CurrentUser(ctx context.Context) *domainauth.User {
	s, ok := GetSessionFromContext(ctx)
	if !ok || !s.IsAuthenticated {
		return nil
	}
	return s.CurrentUser
}

// RequestIDFromContext returns the request ID set by the RequestID middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
