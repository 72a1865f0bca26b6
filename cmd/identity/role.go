package identity

import "strings"

// Role is the platform role attached to a user.
type Role string

const (
	// RoleStudent is the default role for self-serve signups.
	RoleStudent Role = "student"
	// RoleTeacher can author question sets and view cohort analytics.
	RoleTeacher Role = "teacher"
	// RoleAdmin administers the platform.
	RoleAdmin Role = "admin"
)

// ParseRole normalizes a raw role string. Unknown or blank input maps to
// RoleStudent so that a missing role never widens privileges.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleTeacher:
		return RoleTeacher
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleStudent
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}
