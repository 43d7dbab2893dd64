// Package entity contains the core business objects of the project.
package entity

// Role represents the type of role a user can have in the system.
// It is a closed enumeration; authorization decisions go through the
// capability methods below rather than ad hoc string comparison.
type Role string

const (
	// RoleOwner indicates a business owner account.
	RoleOwner Role = "owner"
	// RoleEmployee indicates an employee account attached to a business.
	RoleEmployee Role = "employee"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleEmployee:
		return true
	default:
		return false
	}
}

// CanManageEmployees reports whether the role may create, update, or remove
// employee accounts.
func (r Role) CanManageEmployees() bool {
	return r == RoleOwner
}

// CanManageBusiness reports whether the role may change business and branch
// settings.
func (r Role) CanManageBusiness() bool {
	return r == RoleOwner
}

// RoleFromString converts a raw string to a Role, reporting whether the
// value names a known role.
func RoleFromString(s string) (Role, bool) {
	role := Role(s)

	return role, role.IsValid()
}
