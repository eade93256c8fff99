package httpx

import (
	"net/http"
	"strconv"

	"github.com/target/mmk-portal/internal/domain/portal"
)

// PortalHandlers serves the role dispatch, dashboards and the fixed views around them.
type PortalHandlers struct {
	Renderer  *TemplateRenderer
	CSRFField string
}

// Landing sends an admitted caller to the dashboard for their role.
func (h *PortalHandlers) Landing(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, portal.LandingPath(CurrentUser(r.Context())), http.StatusSeeOther)
}

// Dashboard renders the placeholder view for route. The route guard has already
// checked the caller's role.
func (h *PortalHandlers) Dashboard(route portal.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := newPageData(r, h.CSRFField, PageDashboard, route.Title)
		h.render(w, http.StatusOK, data)
	}
}

// Forbidden renders the fixed access-denied view.
func (h *PortalHandlers) Forbidden(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusForbidden, newPageData(r, h.CSRFField, PageForbidden, "Access denied"))
}

// Loading renders the placeholder shown while the session is being restored.
// The page reloads itself, so the guard is re-run once restoration settles.
func (h *PortalHandlers) Loading(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, h.CSRFField, PageLoading, "Loading")
	data.RefreshSeconds = loadingRefreshSeconds
	w.Header().Set("Retry-After", strconv.Itoa(loadingRefreshSeconds))
	w.Header().Set("Cache-Control", "no-store")
	h.render(w, http.StatusOK, data)
}

// Fallback sends unknown paths to the portal root.
func (h *PortalHandlers) Fallback(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, portal.PathPortal, http.StatusSeeOther)
}

func (h *PortalHandlers) render(w http.ResponseWriter, status int, data PageData) {
	if h.Renderer == nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "renderer_unavailable", Message: "templates are not loaded"})
		return
	}
	_ = h.Renderer.Render(w, status, data)
}
