package tenant

import (
	"context"
	"sort"
	"time"

	"objektbetreuer-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SortNewestFirst orders rows by creation time, newest first. Lists are sorted
// here even when the query already orders them, since not every store
// guarantees the order of equal or unindexed keys.
func SortNewestFirst[T any](rows []T, createdAt func(T) time.Time) {
	sort.SliceStable(rows, func(i, j int) bool {
		return createdAt(rows[i]).After(createdAt(rows[j]))
	})
}

// IsMember reports whether userID is an active profile acting for the scope:
// the company account itself or one of its employees.
func IsMember(ctx context.Context, db *gorm.DB, s Scope, userID uuid.UUID) (bool, error) {
	if !s.Valid() || userID == uuid.Nil {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).Model(&domain.AppUser{}).
		Where("user_id = ? AND active = ?", userID, true).
		Where("user_id = ? OR company_id = ?", s.companyID, s.companyID).
		Count(&n).Error
	return n > 0, err
}

// Contains reports whether a row of model with the given primary key exists in the scope.
func Contains(ctx context.Context, db *gorm.DB, s Scope, model interface{}, pk string, id uuid.UUID) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(model).Scopes(s.Apply).Where(pk+" = ?", id).Count(&n).Error
	return n > 0, err
}
