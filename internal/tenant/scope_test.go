package tenant

import (
	"testing"

	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_RejectsNil(t *testing.T) {
	_, err := For(uuid.Nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidScope)
}

func TestFromUser_Company(t *testing.T) {
	id := uuid.New()
	s, err := FromUser(&domain.AppUser{UserID: id, Role: constants.RoleCompany})
	require.NoError(t, err)
	assert.Equal(t, id, s.CompanyID())
	assert.True(t, s.Owns(id))
}

func TestFromUser_Employee(t *testing.T) {
	company := uuid.New()
	s, err := FromUser(&domain.AppUser{UserID: uuid.New(), Role: constants.RoleEmployee, CompanyID: &company})
	require.NoError(t, err)
	assert.Equal(t, company, s.CompanyID())
	assert.False(t, s.Owns(uuid.New()))
}

func TestFromUser_UnlinkedEmployee(t *testing.T) {
	_, err := FromUser(&domain.AppUser{UserID: uuid.New(), Role: constants.RoleEmployee})
	assert.ErrorIs(t, err, apperr.ErrInvalidScope)
}

func TestZeroScope_IsInvalid(t *testing.T) {
	var s Scope
	assert.False(t, s.Valid())
	assert.False(t, s.Owns(uuid.Nil))
}
