package account

import (
	"context"
	"strings"
	"time"

	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/constants"
	"objektbetreuer-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrDisplayName        = apperr.Validation("invalid_field", "Display name is invalid")
	ErrCompanyNameMissing = apperr.Validation("missing_field", "Company name is required")
	ErrNotFound           = apperr.New(apperr.KindNotFound, "not_found", "Profile not found")
)

// Registrar is the part of the identity provider sign-up needs.
type Registrar interface {
	Register(ctx context.Context, email, password string) (*domain.Principal, error)
	DeletePrincipal(ctx context.Context, principalID uuid.UUID) error
}

// WelcomeMailer greets new company accounts.
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, toEmail, displayName, companyName string) error
}

// ProfileCache is dropped after a profile changes.
type ProfileCache interface {
	Invalidate(ctx context.Context, principalID uuid.UUID)
}

type Service struct {
	DB       *gorm.DB
	Identity Registrar
	Mailer   WelcomeMailer
	Profiles ProfileCache
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	CompanyName string `json:"company_name"`
}

// RegisterCompany creates a principal and its company profile. The profile
// write runs after the principal exists; if it fails the principal is deleted.
func (s *Service) RegisterCompany(ctx context.Context, in RegisterInput) (*domain.AppUser, error) {
	displayName := strings.TrimSpace(in.DisplayName)
	if !validation.IsValidDisplayName(displayName) {
		return nil, ErrDisplayName
	}
	company := strings.TrimSpace(in.CompanyName)
	if company == "" {
		return nil, ErrCompanyNameMissing
	}

	principal, err := s.Identity.Register(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	profile := &domain.AppUser{
		UserID:      principal.PrincipalID,
		Role:        constants.RoleCompany,
		DisplayName: displayName,
		Email:       principal.Email,
		CompanyName: &company,
		Active:      true,
		Permissions: domain.FullPermissions(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.DB.WithContext(ctx).Create(profile).Error; err != nil {
		if delErr := s.Identity.DeletePrincipal(ctx, principal.PrincipalID); delErr != nil {
			log.Error().Err(delErr).Str("principal_id", principal.PrincipalID.String()).
				Msg("account: compensation failed, orphaned principal")
		}
		return nil, err
	}
	log.Info().Str("user_id", profile.UserID.String()).Msg("account: company registered")

	if s.Mailer != nil {
		if err := s.Mailer.SendWelcome(ctx, profile.Email, displayName, company); err != nil {
			log.Error().Err(err).Str("user_id", profile.UserID.String()).Msg("account: failed to send welcome email")
		}
	}
	return profile, nil
}

type ProfilePatch struct {
	DisplayName *string `json:"display_name"`
	CompanyName *string `json:"company_name"`
}

// UpdateProfile changes the caller's own profile. Only company accounts carry a company name.
func (s *Service) UpdateProfile(ctx context.Context, user *domain.AppUser, p ProfilePatch) (*domain.AppUser, error) {
	if user == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	cols := map[string]interface{}{"updated_at": s.now()}
	if p.DisplayName != nil {
		name := strings.TrimSpace(*p.DisplayName)
		if !validation.IsValidDisplayName(name) {
			return nil, ErrDisplayName
		}
		cols["display_name"] = name
	}
	if p.CompanyName != nil {
		if !user.IsCompany() {
			return nil, apperr.ErrPermissionDenied
		}
		name := strings.TrimSpace(*p.CompanyName)
		if name == "" {
			return nil, ErrCompanyNameMissing
		}
		cols["company_name"] = name
	}
	res := s.DB.WithContext(ctx).Model(&domain.AppUser{}).Where("user_id = ?", user.UserID).Updates(cols)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	if s.Profiles != nil {
		s.Profiles.Invalidate(ctx, user.UserID)
	}
	var out domain.AppUser
	if err := s.DB.WithContext(ctx).Where("user_id = ?", user.UserID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
