// Package portal holds the pure navigation rules of the portal: which paths exist,
// which role each one requires, and where a caller lands.
package portal

import domainauth "github.com/target/mmk-portal/internal/domain/auth"

// Logical paths served by the portal.
const (
	PathRoot         = "/"
	PathLogin        = "/login"
	PathRegister     = "/register"
	PathLogout       = "/logout"
	PathForbidden    = "/unauthorized"
	PathPortal       = "/portal"
	PathAdmin        = "/portal/admin"
	PathStudent      = "/portal/student"
	PathHR           = "/portal/hr"
	PathTrainer      = "/portal/trainer"
	RedirectURIParam = "redirect_uri"
)

// Route describes a guarded view. A nil RequiredRole admits any authenticated caller.
type Route struct {
	Path         string
	Title        string
	RequiredRole *domainauth.Role
}

// Requires returns a pointer suitable for Route.RequiredRole.
func Requires(r domainauth.Role) *domainauth.Role { return &r }

// Admits reports whether role satisfies the route requirement.
func (r Route) Admits(role domainauth.Role) bool {
	return r.RequiredRole == nil || *r.RequiredRole == role
}

// Dashboards lists the role-specific views in a stable order.
func Dashboards() []Route {
	return []Route{
		{Path: PathAdmin, Title: "Admin", RequiredRole: Requires(domainauth.RoleAdmin)},
		{Path: PathStudent, Title: "Student", RequiredRole: Requires(domainauth.RoleStudent)},
		{Path: PathHR, Title: "HR", RequiredRole: Requires(domainauth.RoleHR)},
		{Path: PathTrainer, Title: "Trainer", RequiredRole: Requires(domainauth.RoleTrainer)},
	}
}
