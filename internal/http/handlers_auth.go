package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
	"github.com/target/mmk-portal/internal/domain/portal"
	"github.com/target/mmk-portal/internal/ports"
	"github.com/target/mmk-portal/internal/service"
)

// AuthService is the slice of service.AuthService the handlers need.
type AuthService interface {
	SignIn(ctx context.Context, in ports.Credentials, captured string) (*service.SignInResult, error)
	Register(ctx context.Context, in ports.Registration) error
	SignOut(ctx context.Context) error
	Session() domainauth.Session
	ExpiresAt() time.Time
}

var _ AuthService = (*service.AuthService)(nil)

// AuthHandlers serves sign-in, registration, sign-out and the session status endpoint.
type AuthHandlers struct {
	Svc       AuthService
	Renderer  *TemplateRenderer
	CSRFField string
	Logger    *slog.Logger
}

type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type loginResponse struct {
	User     domainauth.User `json:"user"`
	Redirect string          `json:"redirect"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type statusResponse struct {
	Authenticated bool             `json:"authenticated"`
	Loading       bool             `json:"loading"`
	User          *domainauth.User `json:"user,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
}

// LoginPage renders the sign-in form. A caller who is already signed in is sent on.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	redirect := portal.SafeRedirectPath(r.URL.Query().Get(portal.RedirectURIParam))

	snap := h.Svc.Session()
	if snap.IsAuthenticated {
		http.Redirect(w, r, portal.PostLoginPath(snap.CurrentUser, redirect), http.StatusSeeOther)
		return
	}

	data := newPageData(r, h.CSRFField, PageLogin, "Sign in")
	data.RedirectURI = redirect
	if r.URL.Query().Get(registeredParam) == "1" {
		data.Notice = noticeRegistered
	}
	h.render(w, http.StatusOK, data)
}

// Login handles a credential submission from the form or a JSON client.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSONRequest(r) {
		if !DecodeJSON(w, r, &req) {
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
			return
		}
		req = loginRequest{
			Username:    r.PostFormValue("username"),
			Password:    r.PostFormValue("password"),
			RedirectURI: r.PostFormValue(portal.RedirectURIParam),
		}
	}
	captured := portal.SafeRedirectPath(req.RedirectURI)

	res, err := h.Svc.SignIn(r.Context(), ports.Credentials{Username: req.Username, Password: req.Password}, captured)
	if err != nil {
		msg := service.LoginFailureMessage(err)
		if !IsBrowserRequest(r) {
			WriteError(w, ErrorParams{Code: StatusFor(err), ErrCode: ErrCodeFor(err), Err: err, Message: msg})
			return
		}
		data := newPageData(r, h.CSRFField, PageLogin, "Sign in")
		data.Error = msg
		data.RedirectURI = captured
		data.Form.Username = strings.TrimSpace(req.Username)
		h.render(w, StatusFor(err), data)
		return
	}

	h.logger().InfoContext(r.Context(), "signed in",
		"user", res.User.Username,
		"role", res.User.Role,
		"request_id", RequestIDFromContext(r.Context()))

	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, loginResponse{User: res.User, Redirect: res.Destination})
		return
	}
	http.Redirect(w, r, res.Destination, http.StatusSeeOther)
}

// RegisterPage renders the registration form.
func (h *AuthHandlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, h.CSRFField, PageRegister, "Register")
	data.Roles = service.RegisterableRoles()
	data.Form.Role = string(domainauth.RoleStudent)
	h.render(w, http.StatusOK, data)
}

// Register handles an account creation submission. It never signs the caller in.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if isJSONRequest(r) {
		if !DecodeJSON(w, r, &req) {
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
			return
		}
		req = registerRequest{
			Username: r.PostFormValue("username"),
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
			Role:     r.PostFormValue("role"),
		}
	}

	err := h.Svc.Register(r.Context(), ports.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     domainauth.Role(req.Role),
	})
	if err != nil {
		msg := service.RegisterFailureMessage(err)
		if !IsBrowserRequest(r) {
			WriteError(w, ErrorParams{Code: StatusFor(err), ErrCode: ErrCodeFor(err), Err: err, Message: msg})
			return
		}
		data := newPageData(r, h.CSRFField, PageRegister, "Register")
		data.Error = msg
		data.Roles = service.RegisterableRoles()
		data.Form = FormValues{
			Username: strings.TrimSpace(req.Username),
			Email:    strings.TrimSpace(req.Email),
			Role:     strings.ToUpper(strings.TrimSpace(req.Role)),
		}
		h.render(w, StatusFor(err), data)
		return
	}

	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
		return
	}
	http.Redirect(w, r, portal.PathLogin+"?"+registeredParam+"=1", http.StatusSeeOther)
}

// Logout ends the session. The in-memory session is cleared even when the
// persisted slot could not be erased.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.SignOut(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "sign-out could not clear the persisted token",
			"error", err,
			"request_id", RequestIDFromContext(r.Context()))
	}

	if !IsBrowserRequest(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, portal.PathLogin, http.StatusSeeOther)
}

// Status reports the current session for API callers. The raw token is never included.
func (h *AuthHandlers) Status(w http.ResponseWriter, _ *http.Request) {
	snap := h.Svc.Session()
	resp := statusResponse{
		Authenticated: snap.IsAuthenticated,
		Loading:       snap.IsLoading,
		User:          snap.CurrentUser,
	}
	if exp := h.Svc.ExpiresAt(); snap.IsAuthenticated && !exp.IsZero() {
		exp = exp.UTC()
		resp.ExpiresAt = &exp
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandlers) render(w http.ResponseWriter, status int, data PageData) {
	if h.Renderer == nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "renderer_unavailable", Message: "templates are not loaded"})
		return
	}
	_ = h.Renderer.Render(w, status, data)
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
