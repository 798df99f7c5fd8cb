package employees

import (
	"context"
	"errors"
	"time"

	"objektbetreuer-backend/internal/application/identity"
	"objektbetreuer-backend/internal/application/live"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/constants"
	"objektbetreuer-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrNotFound = apperr.New(apperr.KindNotFound, "not_found", "Employee not found")

// ProfileCache is dropped whenever an employee's permissions or active flag change.
type ProfileCache interface {
	Invalidate(ctx context.Context, principalID uuid.UUID)
}

// Service manages the employee profiles of a company. Profiles are never
// deleted; deactivation flips the active flag.
type Service struct {
	DB       *gorm.DB
	Rdb      *redis.Client
	Profiles ProfileCache
	Changes  live.Publisher
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) employees(ctx context.Context, scope tenant.Scope) *gorm.DB {
	return s.DB.WithContext(ctx).Model(&domain.AppUser{}).Scopes(scope.Apply).Where("role = ?", constants.RoleEmployee)
}

type ListFilter struct {
	IncludeInactive bool
}

func (f ListFilter) Signature() string {
	if f.IncludeInactive {
		return live.FilterSignature(map[string]string{"inactive": "1"})
	}
	return ""
}

func (s *Service) List(ctx context.Context, scope tenant.Scope, f ListFilter) ([]domain.AppUser, error) {
	q := s.employees(ctx, scope)
	if !f.IncludeInactive {
		q = q.Where("active = ?", true)
	}
	var rows []domain.AppUser
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	tenant.SortNewestFirst(rows, func(u domain.AppUser) time.Time { return u.CreatedAt })
	return rows, nil
}

// Get returns the employee or nil when the scope has no such employee.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*domain.AppUser, error) {
	var u domain.AppUser
	if err := s.employees(ctx, scope).Where("user_id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// UpdatePermissions replaces the six permission flags of the employee.
func (s *Service) UpdatePermissions(ctx context.Context, scope tenant.Scope, id uuid.UUID, perms domain.Permissions) (*domain.AppUser, error) {
	cols := perms.Columns()
	if err := s.update(ctx, scope, id, cols); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", id.String()).Str("company_id", scope.CompanyID().String()).Msg("employees: permissions updated")
	return s.Get(ctx, scope, id)
}

// SetActive flips the active flag. Deactivation destroys every session of the
// employee, so the next request resolves no profile and is signed out.
func (s *Service) SetActive(ctx context.Context, scope tenant.Scope, id uuid.UUID, active bool) (*domain.AppUser, error) {
	if err := s.update(ctx, scope, id, map[string]interface{}{"active": active}); err != nil {
		return nil, err
	}
	if !active {
		identity.DestroyUserSessions(ctx, s.Rdb, id.String())
	}
	log.Info().Str("user_id", id.String()).Bool("active", active).Msg("employees: active flag changed")
	return s.Get(ctx, scope, id)
}

func (s *Service) update(ctx context.Context, scope tenant.Scope, id uuid.UUID, cols map[string]interface{}) error {
	cols["updated_at"] = s.now()
	res := s.employees(ctx, scope).Where("user_id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	if s.Profiles != nil {
		s.Profiles.Invalidate(ctx, id)
	}
	live.Notify(ctx, s.Changes, live.EntityEmployees, scope.CompanyID())
	return nil
}
