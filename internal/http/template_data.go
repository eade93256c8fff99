package httpx

import (
	"net/http"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
)

// FormValues echoes submitted fields back into a re-rendered form. Passwords are never echoed.
type FormValues struct {
	Username string
	Email    string
	Role     string
}

// PageData is the view model shared by every page template.
type PageData struct {
	Title       string
	CurrentPage string
	User        *domainauth.User
	CSRFField   string
	CSRFToken   string
	RequestID   string

	Error       string
	Notice      string
	RedirectURI string
	Form        FormValues
	Roles       []domainauth.Role

	// RefreshSeconds drives the loading placeholder's reload.
	RefreshSeconds int
}

// newPageData fills the fields every page needs from the request.
func newPageData(r *http.Request, csrfField, page, title string) PageData {
	if csrfField == "" {
		csrfField = DefaultCSRFCookieName
	}
	return PageData{
		Title:       title,
		CurrentPage: page,
		User:        CurrentUser(r.Context()),
		CSRFField:   csrfField,
		CSRFToken:   GetCSRFToken(r),
		RequestID:   RequestIDFromContext(r.Context()),
	}
}
