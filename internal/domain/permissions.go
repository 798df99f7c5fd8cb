package domain

import "objektbetreuer-backend/internal/pkg/constants"

// Permissions is the employee permission set: view/edit for each data category.
// The six flags are independent; edit does not imply view.
type Permissions struct {
	ViewJobs         bool `json:"view_jobs"`
	EditJobs         bool `json:"edit_jobs"`
	ViewProperties   bool `json:"view_properties"`
	EditProperties   bool `json:"edit_properties"`
	ViewAppointments bool `json:"view_appointments"`
	EditAppointments bool `json:"edit_appointments"`
}

// Allows reports whether the flag for (category, action) is set.
func (p Permissions) Allows(category, action string) bool {
	switch category {
	case constants.CategoryJobs:
		return pick(action, p.ViewJobs, p.EditJobs)
	case constants.CategoryProperties:
		return pick(action, p.ViewProperties, p.EditProperties)
	case constants.CategoryAppointments:
		return pick(action, p.ViewAppointments, p.EditAppointments)
	}
	return false
}

func pick(action string, view, edit bool) bool {
	switch action {
	case constants.ActionView:
		return view
	case constants.ActionEdit:
		return edit
	}
	return false
}

// FullPermissions grants every flag.
func FullPermissions() Permissions {
	return Permissions{true, true, true, true, true, true}
}

// Columns returns the permission flags keyed by their column names on
// app_users and employee_invitations, for partial updates.
func (p Permissions) Columns() map[string]interface{} {
	return map[string]interface{}{
		"perm_view_jobs":         p.ViewJobs,
		"perm_edit_jobs":         p.EditJobs,
		"perm_view_properties":   p.ViewProperties,
		"perm_edit_properties":   p.EditProperties,
		"perm_view_appointments": p.ViewAppointments,
		"perm_edit_appointments": p.EditAppointments,
	}
}
