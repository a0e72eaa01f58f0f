package auth

// Operator role constants.
const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

// AllOperatorRoles returns all valid operator roles.
func AllOperatorRoles() []string {
	return []string{RoleViewer, RoleAdmin}
}

// WriteRoles returns roles that can clear the system log.
func WriteRoles() []string {
	return []string{RoleAdmin}
}

// ValidRole reports whether role is an operator role.
func ValidRole(role string) bool {
	for _, r := range AllOperatorRoles() {
		if r == role {
			return true
		}
	}
	return false
}
