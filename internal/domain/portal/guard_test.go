package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
)

func session(role domainauth.Role) domainauth.Session {
	return domainauth.Authenticated(domainauth.User{ID: "1", Username: "u", Role: role})
}

func dashboard(path string) Route {
	for _, r := range Dashboards() {
		if r.Path == path {
			return r
		}
	}
	panic("unknown dashboard " + path)
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name      string
		session   domainauth.Session
		route     Route
		requested string
		want      Decision
	}{
		{
			name:    "loading renders placeholder",
			session: domainauth.Loading(),
			route:   dashboard(PathAdmin),
			want:    Decision{Outcome: OutcomePending},
		},
		{
			name:      "unauthenticated captures destination",
			session:   domainauth.Anonymous(),
			route:     dashboard(PathHR),
			requested: "/portal/hr",
			want:      Decision{Outcome: OutcomeLogin, Location: "/login?redirect_uri=%2Fportal%2Fhr"},
		},
		{
			name:    "matching role renders",
			session: session(domainauth.RoleTrainer),
			route:   dashboard(PathTrainer),
			want:    Decision{Outcome: OutcomeRender},
		},
		{
			name:    "wrong role is forbidden",
			session: session(domainauth.RoleStudent),
			route:   dashboard(PathTrainer),
			want:    Decision{Outcome: OutcomeForbidden, Location: PathForbidden},
		},
		{
			name:    "admin is not a superuser",
			session: session(domainauth.RoleAdmin),
			route:   dashboard(PathStudent),
			want:    Decision{Outcome: OutcomeForbidden, Location: PathForbidden},
		},
		{
			name:    "unrestricted route admits any role",
			session: session(domainauth.RoleUser),
			route:   Route{Path: PathPortal},
			want:    Decision{Outcome: OutcomeRender},
		},
		{
			name:    "authenticated flag without user is treated as anonymous",
			session: domainauth.Session{IsAuthenticated: true},
			route:   Route{Path: PathPortal},
			want:    Decision{Outcome: OutcomeLogin, Location: PathLogin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Guard(tt.session, tt.route, tt.requested))
		})
	}
}

func TestGuardThenSignInReturnsToCapturedRoute(t *testing.T) {
	d := Guard(domainauth.Anonymous(), dashboard(PathHR), "/portal/hr")
	assert.Equal(t, OutcomeLogin, d.Outcome)

	hr := &domainauth.User{Username: "hana", Role: domainauth.RoleHR}
	assert.Equal(t, "/portal/hr", PostLoginPath(hr, "/portal/hr"))
	assert.Equal(t, OutcomeRender, Guard(session(domainauth.RoleHR), dashboard(PathHR), "/portal/hr").Outcome)
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login", LoginURL(""))
	assert.Equal(t, "/login", LoginURL("https://evil.example/portal"))
	assert.Equal(t, "/login?redirect_uri=%2Fportal%2Fadmin%3Ftab%3D2", LoginURL("/portal/admin?tab=2"))
}

func TestSafeRedirectPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/portal/hr", "/portal/hr"},
		{" /portal ", "/portal"},
		{"/portal/admin?tab=2", "/portal/admin?tab=2"},
		{"portal/hr", ""},
		{"//evil.example/x", ""},
		{"/\\evil.example", ""},
		{"https://evil.example/portal", ""},
		{"javascript:alert(1)", ""},
		{"/login", ""},
		{"/login?redirect_uri=%2Fportal", ""},
		{"/register", ""},
		{"/logout", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeRedirectPath(tt.in))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "pending", OutcomePending.String())
	assert.Equal(t, "render", OutcomeRender.String())
	assert.Equal(t, "login", OutcomeLogin.String())
	assert.Equal(t, "forbidden", OutcomeForbidden.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
