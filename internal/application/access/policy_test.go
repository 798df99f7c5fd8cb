package access

import (
	"testing"

	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func employee(perms domain.Permissions, active bool) *domain.AppUser {
	company := uuid.New()
	return &domain.AppUser{UserID: uuid.New(), Role: constants.RoleEmployee, CompanyID: &company, Active: active, Permissions: perms}
}

func TestCan_Company(t *testing.T) {
	u := &domain.AppUser{UserID: uuid.New(), Role: constants.RoleCompany, Active: true}
	for _, c := range constants.Categories {
		assert.True(t, Can(u, c, constants.ActionView))
		assert.True(t, Can(u, c, constants.ActionEdit))
	}
	assert.False(t, Can(u, "billing", constants.ActionView))
}

func TestCan_EmployeeFlags(t *testing.T) {
	u := employee(domain.Permissions{ViewJobs: true}, true)
	assert.True(t, Can(u, constants.CategoryJobs, constants.ActionView))
	assert.False(t, Can(u, constants.CategoryJobs, constants.ActionEdit))
	assert.False(t, Can(u, constants.CategoryProperties, constants.ActionView))
}

func TestCan_InactiveHoldsNothing(t *testing.T) {
	u := employee(domain.FullPermissions(), false)
	assert.False(t, Can(u, constants.CategoryJobs, constants.ActionView))

	c := &domain.AppUser{UserID: uuid.New(), Role: constants.RoleCompany, Active: false}
	assert.ErrorIs(t, RequireCompany(c), apperr.ErrPermissionDenied)
}

func TestRequire_Errors(t *testing.T) {
	assert.ErrorIs(t, Require(nil, constants.CategoryJobs, constants.ActionView), apperr.ErrNotAuthenticated)
	assert.ErrorIs(t, Require(employee(domain.Permissions{}, true), constants.CategoryJobs, constants.ActionView), apperr.ErrPermissionDenied)
	assert.ErrorIs(t, RequireCompany(employee(domain.FullPermissions(), true)), apperr.ErrPermissionDenied)
}
