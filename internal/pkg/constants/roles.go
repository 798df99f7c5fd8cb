package constants

const (
	RoleCompany  = "company"
	RoleEmployee = "employee"
)

// ValidRoles is the set of allowed values for app_users.role.
var ValidRoles = []string{RoleCompany, RoleEmployee}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
