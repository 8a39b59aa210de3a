// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Platform operators, unrestricted access across organizations
	RoleSuperAdmin UserRole = "superadmin"

	// Manages a single organization's universities and courses
	RoleAdmin UserRole = "admin"

	// Default role assigned at registration
	RoleLearner UserRole = "learner"
)

// ParseRole converts a stored role name into a [UserRole]. Unknown names yield ok=false.
func ParseRole(raw string) (UserRole, bool) {
	role := UserRole(raw)
	return role, role.level() > 0
}

// String implements [fmt.Stringer].
func (r UserRole) String() string { return string(r) }

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() > 0 && r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {
	switch r {
	case RoleSuperAdmin:
		return 30
	case RoleAdmin:
		return 20
	case RoleLearner:
		return 10
	default:
		return 0
	}
}
