package authroles

import (
	"strings"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
	"github.com/target/mmk-portal/internal/ports"
)

var _ ports.RoleMapper = ClaimRoleMapper{}

// claimTable is the fixed mapping from upper-cased claim text to role.
var claimTable = map[string]domainauth.Role{
	"ADMIN":        domainauth.RoleAdmin,
	"ROLE_ADMIN":   domainauth.RoleAdmin,
	"STUDENT":      domainauth.RoleStudent,
	"ROLE_STUDENT": domainauth.RoleStudent,
	"HR":           domainauth.RoleHR,
	"ROLE_HR":      domainauth.RoleHR,
	"TRAINER":      domainauth.RoleTrainer,
	"ROLE_TRAINER": domainauth.RoleTrainer,
}

// ClaimRoleMapper normalizes token claims to one role.
// Sources are consulted authorities first, then roles, then role; the first
// recognized entry wins and USER is returned when nothing matches.
type ClaimRoleMapper struct{}

// Map implements ports.RoleMapper.
func (ClaimRoleMapper) Map(c domainauth.ClaimSet) domainauth.Role {
	if r, ok := firstMatch(c.Authorities); ok {
		return r
	}
	if r, ok := firstMatch(c.Roles); ok {
		return r
	}
	if r, ok := Lookup(c.Role); ok {
		return r
	}
	return domainauth.RoleUser
}

func firstMatch(entries []domainauth.ClaimValue) (domainauth.Role, bool) {
	for _, e := range entries {
		if r, ok := Lookup(e); ok {
			return r, true
		}
	}
	return "", false
}

// Lookup maps a single claim entry. Only case is normalized; whitespace and
// other characters must match exactly.
func Lookup(v domainauth.ClaimValue) (domainauth.Role, bool) {
	s, ok := v.Value()
	if !ok {
		return "", false
	}
	r, ok := claimTable[strings.ToUpper(s)]
	return r, ok
}
