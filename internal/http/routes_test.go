package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/mmk-portal/internal/errors"
	"github.com/target/mmk-portal/internal/ports"
	"github.com/target/mmk-portal/internal/testutil"
)

func TestRouter_Health(t *testing.T) {
	f := newPortalFixture(t, "", true)

	rec := f.getJSON("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, healthResponse, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRouter_PendingWhileRestoring(t *testing.T) {
	f := newPortalFixture(t, "", false)

	rec := f.get("/portal/hr")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.True(t, ContainsAll(rec.Body.String(), []string{`http-equiv="refresh"`, "Loading your session"}))

	rec = f.getJSON("/portal/hr")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, []string{"pending", "pending"}, f.sink.outcomes())
}

func TestRouter_UnauthenticatedIsSentToLogin(t *testing.T) {
	f := newPortalFixture(t, "", true)

	rec := f.get("/portal/hr")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?redirect_uri=%2Fportal%2Fhr", rec.Header().Get("Location"))

	rec = f.getJSON("/portal/hr")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestRouter_CapturedDestinationSurvivesLogin(t *testing.T) {
	f := newPortalFixture(t, "", true)
	f.backend.Token = testutil.NewToken("hank").WithRole("HR").Build()

	rec := f.get("/portal/hr")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loginURL, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	rec = f.get(loginURL.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="redirect_uri" value="/portal/hr"`)

	rec = f.postForm("/login", url.Values{
		"username":     {"hank"},
		"password":     {"pw"},
		"redirect_uri": {loginURL.Query().Get("redirect_uri")},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/portal/hr", rec.Header().Get("Location"))

	rec = f.get("/portal/hr")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ContainsAll(rec.Body.String(), []string{"HR dashboard", "hank", "HR"}))
}

func TestRouter_LandingDispatchesByRole(t *testing.T) {
	tests := []struct {
		role string
		want string
	}{
		{"ROLE_ADMIN", "/portal/admin"},
		{"ROLE_STUDENT", "/portal/student"},
		{"ROLE_HR", "/portal/hr"},
		{"ROLE_TRAINER", "/portal/trainer"},
		{"ROLE_GUEST", "/unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			raw := testutil.NewToken("u").WithAuthorityRecords(tt.role).Build()
			f := newPortalFixture(t, raw, true)

			rec := f.get("/portal")
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestRouter_WrongRoleIsForbidden(t *testing.T) {
	raw := testutil.NewToken("alice").WithAuthorities("ROLE_ADMIN").Build()
	f := newPortalFixture(t, raw, true)

	rec := f.get("/portal/student")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/unauthorized", rec.Header().Get("Location"))

	rec = f.getJSON("/portal/student")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.get("/unauthorized")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access denied")

	rec = f.get("/portal/admin")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Admin dashboard")
}

func TestRouter_UnknownPathsGoToPortal(t *testing.T) {
	f := newPortalFixture(t, "", true)

	for _, path := range []string{"/", "/nope", "/portal/unknown"} {
		rec := f.get(path)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/portal", rec.Header().Get("Location"), path)
	}
}

func TestRouter_LoginPage(t *testing.T) {
	t.Run("registered notice", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		rec := f.get("/login?registered=1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), noticeRegistered)
	})

	t.Run("unsafe redirect dropped", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		rec := f.get("/login?redirect_uri=https%3A%2F%2Fevil.example%2F")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "evil.example")
	})

	t.Run("already signed in", func(t *testing.T) {
		raw := testutil.NewToken("tom").WithRoles("TRAINER").Build()
		f := newPortalFixture(t, raw, true)
		rec := f.get("/login")
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/portal/trainer", rec.Header().Get("Location"))
	})
}

func TestRouter_LoginFailureRerendersForm(t *testing.T) {
	f := newPortalFixture(t, "", true)
	f.backend.LoginFunc = func(context.Context, ports.Credentials) (string, error) {
		return "", apperrors.FromHTTPStatus(http.StatusUnauthorized, "")
	}

	rec := f.postForm("/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, ContainsAll(rec.Body.String(), []string{"Invalid username or password", `value="alice"`}))
	assert.NotContains(t, rec.Body.String(), "wrong")
	assert.False(t, f.sessions.Snapshot().IsAuthenticated)
}

func TestRouter_APILogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		f.backend.Token = testutil.NewToken("alice").WithAuthorities("ROLE_ADMIN").Build()

		rec := f.postJSON("/auth/login", `{"username":"alice","password":"pw"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			User     map[string]any `json:"user"`
			Redirect string         `json:"redirect"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "/portal/admin", body.Redirect)
		assert.Equal(t, "alice", body.User["username"])
		assert.Equal(t, "ADMIN", body.User["role"])
		assert.NotContains(t, body.User, "token")
	})

	t.Run("no token", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		f.backend.LoginFunc = func(context.Context, ports.Credentials) (string, error) {
			return "", ports.ErrNoTokenInResponse
		}

		rec := f.postJSON("/auth/login", `{"username":"alice","password":"pw"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t, `{"error":"backend_error","message":"Server did not return an authentication token"}`, rec.Body.String())
	})

	t.Run("rejected", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		f.backend.LoginFunc = func(context.Context, ports.Credentials) (string, error) {
			return "", apperrors.FromHTTPStatus(http.StatusUnauthorized, "")
		}

		rec := f.postJSON("/auth/login", `{"username":"alice","password":"pw"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized","message":"Invalid username or password"}`, rec.Body.String())
	})

	t.Run("unknown field", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		rec := f.postJSON("/auth/login", `{"user":"alice"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.backend.Logins)
	})
}

func TestRouter_CSRFRequired(t *testing.T) {
	f := newPortalFixture(t, "", true)

	req := url.Values{"username": {"alice"}, "password": {"pw"}}
	rec := f.postFormWithoutCSRF("/login", req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.backend.Logins)
}

func TestRouter_Register(t *testing.T) {
	t.Run("form success", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		rec := f.postForm("/register", url.Values{
			"username": {"sam"},
			"email":    {"sam@example.com"},
			"password": {"pw"},
		})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login?registered=1", rec.Header().Get("Location"))
		require.Len(t, f.backend.Registrations, 1)
		assert.Equal(t, "STUDENT", string(f.backend.Registrations[0].Role))
		assert.False(t, f.sessions.Snapshot().IsAuthenticated)
	})

	t.Run("form conflict", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		f.backend.RegisterFunc = func(context.Context, ports.Registration) error {
			return apperrors.FromHTTPStatus(http.StatusConflict, "Username is already taken")
		}
		rec := f.postForm("/register", url.Values{
			"username": {"sam"},
			"email":    {"sam@example.com"},
			"password": {"pw"},
			"role":     {"trainer"},
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.True(t, ContainsAll(rec.Body.String(), []string{
			"Username is already taken",
			`value="sam@example.com"`,
			`<option value="TRAINER" selected>`,
		}))
	})

	t.Run("api success", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		rec := f.postJSON("/auth/register", `{"username":"tina","email":"tina@example.com","password":"pw","role":"HR"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, f.backend.Registrations, 1)
		assert.Equal(t, "HR", string(f.backend.Registrations[0].Role))
	})

	t.Run("api validation", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		rec := f.postJSON("/auth/register", `{"username":"tina","email":"nope","password":"pw"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.backend.Registrations)
	})

	t.Run("page lists roles", func(t *testing.T) {
		f := newPortalFixture(t, "", true)
		rec := f.get("/register")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, ContainsAll(rec.Body.String(), []string{
			`<option value="STUDENT" selected>`,
			`<option value="TRAINER">`,
			`<option value="HR">`,
			`<option value="ADMIN">`,
		}))
	})
}

func TestRouter_Logout(t *testing.T) {
	t.Run("browser", func(t *testing.T) {
		raw := testutil.NewToken("alice").WithAuthorities("ROLE_ADMIN").Build()
		f := newPortalFixture(t, raw, true)
		require.True(t, f.sessions.Snapshot().IsAuthenticated)

		rec := f.postForm("/logout", url.Values{})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.False(t, f.sessions.Snapshot().IsAuthenticated)
		_, present := f.tokens.Token()
		assert.False(t, present)

		rec = f.get("/portal/admin")
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("api", func(t *testing.T) {
		raw := testutil.NewToken("alice").WithAuthorities("ROLE_ADMIN").Build()
		f := newPortalFixture(t, raw, true)

		rec := f.postJSON("/auth/logout", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, f.sessions.Snapshot().IsAuthenticated)
	})
}

func TestRouter_Status(t *testing.T) {
	t.Run("signed in", func(t *testing.T) {
		raw := testutil.NewToken("alice").WithID("7").WithAuthorities("ROLE_ADMIN").Build()
		f := newPortalFixture(t, raw, true)

		rec := f.getJSON("/auth/status")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), raw)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["authenticated"])
		assert.Equal(t, false, body["loading"])
		assert.Equal(t, "2024-01-01T13:00:00Z", body["expires_at"])
		user := body["user"].(map[string]any)
		assert.Equal(t, "7", user["id"])
		assert.Equal(t, "alice", user["username"])
	})

	t.Run("loading", func(t *testing.T) {
		f := newPortalFixture(t, "", false)
		rec := f.getJSON("/auth/status")
		assert.JSONEq(t, `{"authenticated":false,"loading":true}`, rec.Body.String())
	})
}

func TestRouter_StaticAssets(t *testing.T) {
	f := newPortalFixture(t, "", true)

	rec := f.get("/static/css/portal.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "--color-accent")
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}
