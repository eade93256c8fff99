package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/mmk-portal/internal/adapters/authroles"
	"github.com/target/mmk-portal/internal/adapters/jwtclaims"
	"github.com/target/mmk-portal/internal/data"
	mockauth "github.com/target/mmk-portal/internal/mocks/auth"
	"github.com/target/mmk-portal/internal/service"
	"github.com/target/mmk-portal/internal/testutil"
)

const testCSRFToken = "test-csrf-token"

// RequireTemplateRenderer creates a TemplateRenderer for tests, skipping the test if templates are not available.
func RequireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: os.DirFS(TemplatePathFromTest)})
	if err != nil {
		t.Skipf("Templates not available, skipping: %v", err)
		return nil
	}
	return tr
}

type guardCall struct {
	route   string
	outcome string
}

// recordingSink keeps guard decisions emitted through statsd.
type recordingSink struct {
	mu     sync.Mutex
	guards []guardCall
}

func (s *recordingSink) Count(name string, _ int64, tags map[string]string) {
	if name != "guard.decision" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guards = append(s.guards, guardCall{route: tags["route"], outcome: tags["outcome"]})
}

func (s *recordingSink) Timing(string, time.Duration, map[string]string) {}

func (s *recordingSink) outcomes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.guards))
	for _, g := range s.guards {
		out = append(out, g.outcome)
	}
	return out
}

type portalFixture struct {
	handler  http.Handler
	sessions *service.SessionStore
	tokens   *mockauth.MemoryTokenStore
	backend  *mockauth.FakeBackend
	sink     *recordingSink
}

// newPortalFixture wires the real services over in-memory fakes. persisted seeds
// the token slot; restore controls whether start-up restoration has run.
func newPortalFixture(t *testing.T, persisted string, restore bool) *portalFixture {
	t.Helper()
	SkipIfNoTemplates(t)

	tokens := mockauth.NewMemoryTokenStore(persisted)
	sessions := service.NewSessionStore(service.SessionStoreOptions{
		Tokens:       tokens,
		Decoder:      jwtclaims.New(),
		Roles:        authroles.ClaimRoleMapper{},
		TimeProvider: data.NewFixedTimeProvider(testutil.TestTime()),
	})
	if restore {
		require.NoError(t, sessions.Restore(context.Background()))
	}
	backend := &mockauth.FakeBackend{}
	sink := &recordingSink{}
	auth := service.NewAuthService(service.AuthServiceOptions{Backend: backend, Sessions: sessions})

	handler := NewRouter(RouterServices{
		Auth:       auth,
		Metrics:    sink,
		TemplateFS: os.DirFS(TemplatePathFromTest),
	})
	return &portalFixture{handler: handler, sessions: sessions, tokens: tokens, backend: backend, sink: sink}
}

// SkipIfNoTemplates checks if templates are available and skips the test if not.
func SkipIfNoTemplates(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(TemplatePathFromTest); os.IsNotExist(err) {
		t.Skip("Templates not available, skipping integration test")
	}
}

func (f *portalFixture) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *portalFixture) getJSON(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// postForm submits a browser form carrying a valid CSRF cookie and field.
func (f *portalFixture) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	form.Set(DefaultCSRFCookieName, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *portalFixture) postFormWithoutCSRF(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// postJSON submits an API request carrying a valid CSRF cookie and header.
func (f *portalFixture) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DefaultCSRFHeaderName, testCSRFToken)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// ContainsAll checks if a string contains all the given substrings.
func ContainsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
