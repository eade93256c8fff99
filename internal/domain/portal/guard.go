package portal

import (
	"net/url"
	"strings"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
)

// Outcome is the single result of guarding one navigation.
type Outcome int

const (
	// OutcomePending means restoration is still running; render a placeholder and decide later.
	OutcomePending Outcome = iota
	// OutcomeRender admits the caller to the protected content.
	OutcomeRender
	// OutcomeLogin sends the caller to sign-in, remembering the attempted path.
	OutcomeLogin
	// OutcomeForbidden sends an authenticated caller with the wrong role to the forbidden view.
	OutcomeForbidden
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeRender:
		return "render"
	case OutcomeLogin:
		return "login"
	case OutcomeForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision is what the guard wants done. Location is set for redirects only.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Guard evaluates route against the session snapshot for a navigation to requested.
func Guard(s domainauth.Session, route Route, requested string) Decision {
	switch {
	case s.IsLoading:
		return Decision{Outcome: OutcomePending}
	case !s.IsAuthenticated || s.CurrentUser == nil:
		return Decision{Outcome: OutcomeLogin, Location: LoginURL(requested)}
	case route.Admits(s.CurrentUser.Role):
		return Decision{Outcome: OutcomeRender}
	default:
		return Decision{Outcome: OutcomeForbidden, Location: PathForbidden}
	}
}

// LoginURL builds the sign-in location carrying the captured destination.
func LoginURL(requested string) string {
	dest := SafeRedirectPath(requested)
	if dest == "" {
		return PathLogin
	}
	q := url.Values{}
	q.Set(RedirectURIParam, dest)
	return PathLogin + "?" + q.Encode()
}

// SafeRedirectPath returns candidate when it is a same-origin relative path, otherwise "".
// Paths that would loop back into sign-in or registration are dropped too.
func SafeRedirectPath(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return ""
	}
	// "//evil.example" parses as a path on some inputs; reject it explicitly.
	if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, "/\\") {
		return ""
	}
	switch u.Path {
	case PathLogin, PathRegister, PathLogout:
		return ""
	}
	return candidate
}
