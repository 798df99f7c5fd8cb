// Package tenant confines reads and writes to one company's partition.
//
// A Scope can only be built from a non-nil company id, and every repository
// method takes one, so there is no code path that queries tenant data without
// a company filter.
package tenant

import (
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scope is the tenant boundary of a query or write.
type Scope struct {
	companyID uuid.UUID
}

// For returns the scope of companyID.
func For(companyID uuid.UUID) (Scope, error) {
	if companyID == uuid.Nil {
		return Scope{}, apperr.ErrInvalidScope
	}
	return Scope{companyID: companyID}, nil
}

// FromUser returns the scope the profile acts in.
func FromUser(u *domain.AppUser) (Scope, error) {
	if u == nil {
		return Scope{}, apperr.ErrNotAuthenticated
	}
	return For(u.TenantID())
}

// CompanyID returns the company of the scope.
func (s Scope) CompanyID() uuid.UUID {
	return s.companyID
}

// Valid reports whether the scope was built through For or FromUser.
func (s Scope) Valid() bool {
	return s.companyID != uuid.Nil
}

// Owns reports whether a row with companyID belongs to the scope.
func (s Scope) Owns(companyID uuid.UUID) bool {
	return s.Valid() && s.companyID == companyID
}

// Apply restricts a query to the scope. Use as db.Scopes(scope.Apply).
// An invalid scope matches nothing.
func (s Scope) Apply(db *gorm.DB) *gorm.DB {
	if !s.Valid() {
		return db.Where("1 = 0")
	}
	return db.Where("company_id = ?", s.companyID)
}
