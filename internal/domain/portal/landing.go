package portal

import domainauth "github.com/target/mmk-portal/internal/domain/auth"

// LandingPath resolves the role-default view for u. A nil user goes to sign-in and
// any role without a dashboard goes to the forbidden view.
func LandingPath(u *domainauth.User) string {
	if u == nil {
		return PathLogin
	}
	switch u.Role {
	case domainauth.RoleAdmin:
		return PathAdmin
	case domainauth.RoleStudent:
		return PathStudent
	case domainauth.RoleHR:
		return PathHR
	case domainauth.RoleTrainer:
		return PathTrainer
	default:
		return PathForbidden
	}
}

// PostLoginPath picks where to send a caller after sign-in. A captured destination
// always wins over the role default.
func PostLoginPath(u *domainauth.User, captured string) string {
	if dest := SafeRedirectPath(captured); dest != "" {
		return dest
	}
	return LandingPath(u)
}
