package constants

// Data categories an employee can be granted access to.
const (
	CategoryJobs         = "jobs"
	CategoryProperties   = "properties"
	CategoryAppointments = "appointments"
)

// Actions on a category.
const (
	ActionView = "view"
	ActionEdit = "edit"
)

// Company-only capabilities; employees never hold these regardless of flags.
const (
	InviteEmployee  = "invite_employee"
	ManageEmployees = "manage_employees"
	ManageAccount   = "manage_account"
)

// Categories lists every category in display order.
var Categories = []string{CategoryProperties, CategoryJobs, CategoryAppointments}

// IsValidCategory returns true if c names a known category.
func IsValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}
