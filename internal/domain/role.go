package domain

import "fmt"

// Role classifies an authenticated caller
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"

	// Resolution-only roles; never stored in the admin registry.
	RoleNormal              Role = "normal"
	RoleInactive            Role = "inactive"
	RoleFirstAdminCandidate Role = "first_admin_candidate"
)

// AdminRoles lists the roles an AdminRecord may hold, highest rank first
var AdminRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleModerator}

// SuperAdminPermissions is the full permission set granted at bootstrap
var SuperAdminPermissions = []string{
	"full_access",
	"user_management",
	"system_config",
	"admin_management",
	"data_management",
	"system_reset",
}

// ParseRole parses a role string, accepting only known roles
func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleModerator, RoleNormal, RoleInactive, RoleFirstAdminCandidate:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsAdminRole reports whether the role can be held by a registry entry
func (r Role) IsAdminRole() bool {
	return r == RoleSuperAdmin || r == RoleAdmin || r == RoleModerator
}

// Rank orders admin roles: SuperAdmin 3, Admin 2, Moderator 1, anything else 0
func (r Role) Rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleModerator:
		return 1
	default:
		return 0
	}
}

// CanCreate reports whether a creator holding r may create an admin with target role.
// SuperAdmin may create any admin role; Admin may create Moderators only.
func (r Role) CanCreate(target Role) bool {
	switch r {
	case RoleSuperAdmin:
		return target.IsAdminRole()
	case RoleAdmin:
		return target == RoleModerator
	default:
		return false
	}
}

// String returns the string representation
func (r Role) String() string {
	return string(r)
}
