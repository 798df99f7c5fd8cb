// Package access decides what an authenticated profile may do inside its tenant.
package access

import (
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/constants"
)

// Can reports whether u may perform action on category.
// Company accounts hold every permission in their own tenant; employees need
// the matching flag; inactive profiles hold nothing.
func Can(u *domain.AppUser, category, action string) bool {
	if u == nil || !u.Active {
		return false
	}
	if u.IsCompany() {
		return constants.IsValidCategory(category)
	}
	if u.Role != constants.RoleEmployee || u.CompanyID == nil {
		return false
	}
	return u.Permissions.Allows(category, action)
}

// Require is Can as an error.
func Require(u *domain.AppUser, category, action string) error {
	if u == nil {
		return apperr.ErrNotAuthenticated
	}
	if !Can(u, category, action) {
		return apperr.ErrPermissionDenied
	}
	return nil
}

// RequireCompany allows only active company accounts (invitations, employee management).
func RequireCompany(u *domain.AppUser) error {
	if u == nil {
		return apperr.ErrNotAuthenticated
	}
	if !u.Active || !u.IsCompany() {
		return apperr.ErrPermissionDenied
	}
	return nil
}
