package httpx

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	mmkportal "github.com/target/mmk-portal"
	"github.com/target/mmk-portal/internal/domain/portal"
	"github.com/target/mmk-portal/internal/observability/statsd"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth    AuthService
	Metrics statsd.Sink
	Logger  *slog.Logger

	// TemplateFS overrides the template source; nil picks disk in dev mode and the
	// embedded copy otherwise.
	TemplateFS   fs.FS
	CookieDomain string
	IsDev        bool // Serve templates and static assets from disk
}

// NewRouter creates and configures the HTTP router with its middleware chain.
func NewRouter(services RouterServices) http.Handler {
	if services.Auth == nil {
		panic("Auth service is required")
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	renderer := setupRenderer(services, logger)
	csrfField := DefaultCSRFCookieName

	authHandlers := &AuthHandlers{Svc: services.Auth, Renderer: renderer, CSRFField: csrfField, Logger: logger}
	portalHandlers := &PortalHandlers{Renderer: renderer, CSRFField: csrfField}
	guard := &RouteGuard{
		Sessions: services.Auth,
		Pending:  http.HandlerFunc(portalHandlers.Loading),
		Metrics:  services.Metrics,
		Logger:   logger,
	}

	mux := http.NewServeMux()
	registerAuthRoutes(mux, authHandlers)
	registerPortalRoutes(mux, portalHandlers, guard)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /static/", staticHandler(services.IsDev, logger))
	mux.HandleFunc("/", portalHandlers.Fallback)

	var handler http.Handler = mux
	handler = CSRFProtection(CSRFConfig{CookieName: csrfField, CookieDomain: services.CookieDomain})(handler)
	handler = BrowserDetection()(handler)
	handler = Recover(logger)(handler)
	handler = Logging(logger)(handler)
	return RequestID()(handler)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET "+portal.PathLogin, h.LoginPage)
	mux.HandleFunc("POST "+portal.PathLogin, h.Login)
	mux.HandleFunc("GET "+portal.PathRegister, h.RegisterPage)
	mux.HandleFunc("POST "+portal.PathRegister, h.Register)
	mux.HandleFunc("POST "+portal.PathLogout, h.Logout)

	// JSON API; BrowserDetection never treats /auth/ as a browser.
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}

func registerPortalRoutes(mux *http.ServeMux, h *PortalHandlers, guard *RouteGuard) {
	root := portal.Route{Path: portal.PathPortal, Title: "Portal"}
	mux.Handle("GET "+root.Path, guard.Require(root)(http.HandlerFunc(h.Landing)))

	for _, route := range portal.Dashboards() {
		mux.Handle("GET "+route.Path, guard.Require(route)(h.Dashboard(route)))
	}
	mux.HandleFunc("GET "+portal.PathForbidden, h.Forbidden)
}

// setupRenderer picks the template source. In dev mode templates are read from disk
// so edits show up on restart without a rebuild.
func setupRenderer(services RouterServices, logger *slog.Logger) *TemplateRenderer {
	templateFS := services.TemplateFS
	if templateFS == nil {
		if services.IsDev {
			templateFS = os.DirFS(TemplatePathFromRoot)
		} else {
			sub, err := fs.Sub(mmkportal.TemplateFS, TemplatePathFromRoot)
			if err != nil {
				logger.Error("failed to create sub-filesystem for templates; falling back to disk", slog.Any("error", err))
				sub = os.DirFS(TemplatePathFromRoot)
			}
			templateFS = sub
		}
	}

	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: templateFS, Logger: logger})
	if err != nil {
		logger.Error("failed to create template renderer", slog.Any("error", err))
		return nil
	}
	return tr
}

// staticHandler serves /static/* from disk in dev mode and from the embedded FS otherwise.
func staticHandler(isDev bool, logger *slog.Logger) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))), isDev)
	}
	staticSub, err := fs.Sub(mmkportal.StaticFS, "frontend/static")
	if err != nil {
		logger.Error("failed to create sub-filesystem for static assets", slog.Any("error", err))
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))), isDev)
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))), isDev)
}

func staticWithCacheHeaders(next http.Handler, isDev bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isDev {
			w.Header().Set("Cache-Control", "no-cache")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		next.ServeHTTP(w, r)
	})
}
