// Package maintenance holds operator tasks run from objektctl. ExpireInvitations
// and NormalizeJobStatuses are the only code paths that touch more than one
// tenant; they never read row contents back to a caller.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"objektbetreuer-backend/internal/application/live"
	"objektbetreuer-backend/internal/application/properties"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB         *gorm.DB
	Properties *properties.Service
	Changes    live.Publisher
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// ExpireInvitations stores the expired status on pending invitations past
// their expiry. Reads already treat them as expired; this keeps the stored
// status in line for reporting.
func (s *Service) ExpireInvitations(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64
	var companies []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Invitation{}).
			Where("status = ? AND expires_at < ?", domain.InvitationPending, now).
			Distinct("company_id").Pluck("company_id", &companies).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.Invitation{}).
			Where("status = ? AND expires_at < ?", domain.InvitationPending, now).
			Updates(map[string]interface{}{"status": domain.InvitationExpired, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		total = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("expire invitations: %w", err)
	}
	s.notifyAll(ctx, live.EntityInvitations, companies)
	log.Info().Int64("expired", total).Msg("Expired stale invitations")
	return total, nil
}

// NormalizeJobStatuses rewrites legacy status values to the current
// vocabulary. Returns the number of rows changed per legacy value.
func (s *Service) NormalizeJobStatuses(ctx context.Context) (map[string]int64, error) {
	now := s.now()
	changed := make(map[string]int64)
	seen := make(map[uuid.UUID]bool)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for legacy, current := range domain.LegacyJobStatuses() {
			var companies []uuid.UUID
			if err := tx.Model(&domain.Job{}).Where("status = ?", legacy).
				Distinct("company_id").Pluck("company_id", &companies).Error; err != nil {
				return err
			}
			res := tx.Model(&domain.Job{}).Where("status = ?", legacy).
				Updates(map[string]interface{}{"status": string(current), "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				changed[legacy] = res.RowsAffected
			}
			for _, c := range companies {
				seen[c] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("normalize job statuses: %w", err)
	}
	companies := make([]uuid.UUID, 0, len(seen))
	for c := range seen {
		companies = append(companies, c)
	}
	s.notifyAll(ctx, live.EntityJobs, companies)
	log.Info().Interface("changed", changed).Msg("Normalized job statuses")
	return changed, nil
}

// PurgeInactiveProperties hard-deletes one company's soft-deleted properties
// that have been inactive for longer than olderThan.
func (s *Service) PurgeInactiveProperties(ctx context.Context, companyID uuid.UUID, olderThan time.Duration) (int64, error) {
	scope, err := tenant.For(companyID)
	if err != nil {
		return 0, err
	}
	if olderThan <= 0 {
		return 0, fmt.Errorf("older-than must be positive, got %s", olderThan)
	}
	n, err := s.Properties.PurgeInactive(ctx, scope, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge properties: %w", err)
	}
	log.Info().Str("company_id", companyID.String()).Int64("purged", n).Msg("Purged inactive properties")
	return n, nil
}

func (s *Service) notifyAll(ctx context.Context, entity string, companies []uuid.UUID) {
	for _, c := range companies {
		live.Notify(ctx, s.Changes, entity, c)
	}
}
