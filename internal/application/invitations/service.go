// Package invitations provisions employee accounts through short-lived tokens.
//
// An invitation is pending until it is accepted or expires. Expiry is both a
// stored status (revoke, maintenance) and a wall-clock check: a row that still
// reads pending after its expiry is treated as expired everywhere.
package invitations

import (
	"context"
	"errors"
	"strings"
	"time"

	"objektbetreuer-backend/internal/application/live"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/constants"
	"objektbetreuer-backend/internal/pkg/validation"
	"objektbetreuer-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	inviteExpiry   = 7 * 24 * time.Hour
	resendInterval = 24 * time.Hour
	maxTokenTries  = 5
)

var (
	ErrNotFound        = apperr.New(apperr.KindNotFound, "invitation_not_found", "Invitation not found")
	ErrExpired         = apperr.New(apperr.KindDomain, "invitation_expired", "Invitation has expired")
	ErrAlreadyAccepted = apperr.New(apperr.KindDomain, "invitation_already_accepted", "Invitation has already been accepted")
	ErrNotPending      = apperr.New(apperr.KindDomain, "invitation_not_pending", "Invitation is no longer pending")
	ErrPendingExists   = apperr.New(apperr.KindConflict, "invitation_pending_exists", "A pending invitation already exists for this email")
	ErrSelfInvite      = apperr.New(apperr.KindValidation, "invitation_self", "You cannot invite yourself")
	ErrEmailRegistered = apperr.New(apperr.KindConflict, "email_in_use", "Email is already registered")
	ErrInvalidEmail    = apperr.Validation("invalid_email", "Invalid Email")
	ErrResendTooSoon   = apperr.New(apperr.KindRateLimited, "invitation_resend_too_soon", "Invite can only be resent once per day")
	ErrDisplayName     = apperr.Validation("invalid_field", "Display name is invalid")
	ErrTokenExhausted  = errors.New("invitations: could not generate a unique token")
)

// Registrar is the part of the identity provider the workflow needs.
type Registrar interface {
	Register(ctx context.Context, email, password string) (*domain.Principal, error)
	DeletePrincipal(ctx context.Context, principalID uuid.UUID) error
}

// Mailer delivers invitation links.
type Mailer interface {
	SendInvite(ctx context.Context, toEmail, inviteLink, companyName string, reminder bool) error
}

type Service struct {
	DB       *gorm.DB
	Identity Registrar
	Mailer   Mailer
	Tokens   TokenSource
	Changes  live.Publisher
	Now      func() time.Time
	// AppBaseURL is the web app origin invitation links point to.
	AppBaseURL string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) tokens() TokenSource {
	if s.Tokens != nil {
		return s.Tokens
	}
	return PseudoRandomTokens{}
}

// InviteLink returns the link mailed to the invitee.
func (s *Service) InviteLink(token string) string {
	return strings.TrimRight(s.AppBaseURL, "/") + "/invite?token=" + token
}

type CreateInput struct {
	Email       string             `json:"email"`
	Permissions domain.Permissions `json:"permissions"`
}

// Create issues a pending invitation valid for seven days and mails the link.
// A failed mail is logged; the invitation stays and can be resent.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, actor *domain.AppUser, in CreateInput) (*domain.Invitation, error) {
	if actor == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	if !scope.Owns(actor.UserID) {
		return nil, apperr.ErrPermissionDenied
	}
	email := validation.NormalizeEmail(in.Email)
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if email == validation.NormalizeEmail(actor.Email) {
		return nil, ErrSelfInvite
	}
	if err := s.checkNotRegistered(ctx, email); err != nil {
		return nil, err
	}
	now := s.now()
	var pending int64
	err := s.DB.WithContext(ctx).Model(&domain.Invitation{}).Scopes(scope.Apply).
		Where("email = ? AND status = ? AND expires_at >= ?", email, domain.InvitationPending, now).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrPendingExists
	}
	token, err := s.uniqueToken(ctx)
	if err != nil {
		return nil, err
	}

	inv := &domain.Invitation{
		CompanyID:   scope.CompanyID(),
		Email:       email,
		Token:       token,
		Status:      domain.InvitationPending,
		Permissions: in.Permissions,
		ExpiresAt:   now.Add(inviteExpiry),
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.DB.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, err
	}
	log.Info().Str("invite_id", inv.InviteID.String()).Str("company_id", inv.CompanyID.String()).Msg("invitations: created")
	s.mail(ctx, inv, companyName(actor), false)
	live.Notify(ctx, s.Changes, live.EntityInvitations, scope.CompanyID())
	return inv, nil
}

func (s *Service) checkNotRegistered(ctx context.Context, email string) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Principal{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		if err := s.DB.WithContext(ctx).Model(&domain.AppUser{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
	}
	if n > 0 {
		return ErrEmailRegistered
	}
	return nil
}

func (s *Service) uniqueToken(ctx context.Context) (string, error) {
	for i := 0; i < maxTokenTries; i++ {
		token, err := s.tokens().Token()
		if err != nil {
			return "", err
		}
		var n int64
		if err := s.DB.WithContext(ctx).Model(&domain.Invitation{}).Where("token = ?", token).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return token, nil
		}
	}
	return "", ErrTokenExhausted
}

// mail delivers the invite link and stamps last_sent_at on success. A failed
// delivery leaves the stamp alone so the invite can be resent right away.
func (s *Service) mail(ctx context.Context, inv *domain.Invitation, company string, reminder bool) {
	if s.Mailer == nil {
		return
	}
	if err := s.Mailer.SendInvite(ctx, inv.Email, s.InviteLink(inv.Token), company, reminder); err != nil {
		log.Error().Err(err).Str("invite_id", inv.InviteID.String()).Msg("invitations: failed to send invite email")
		return
	}
	sentAt := s.now()
	if err := s.DB.WithContext(ctx).Model(&domain.Invitation{}).Where("invite_id = ?", inv.InviteID).
		Update("last_sent_at", sentAt).Error; err != nil {
		log.Warn().Err(err).Str("invite_id", inv.InviteID.String()).Msg("invitations: failed to stamp last_sent_at")
		return
	}
	inv.LastSentAt = &sentAt
}

func companyName(u *domain.AppUser) string {
	if u.CompanyName != nil && *u.CompanyName != "" {
		return *u.CompanyName
	}
	return u.DisplayName
}

// Resolve looks an invitation up by token and returns it only while it is
// usable. It never writes.
func (s *Service) Resolve(ctx context.Context, token string) (*domain.Invitation, error) {
	if !WellFormedToken(token) {
		return nil, ErrNotFound
	}
	var inv domain.Invitation
	if err := s.DB.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := usable(&inv, s.now()); err != nil {
		return nil, err
	}
	return &inv, nil
}

func usable(inv *domain.Invitation, now time.Time) error {
	switch inv.EffectiveStatus(now) {
	case domain.InvitationPending:
		return nil
	case domain.InvitationAccepted:
		return ErrAlreadyAccepted
	default:
		return ErrExpired
	}
}

// CompanyName returns the display name of the inviting company.
func (s *Service) CompanyName(ctx context.Context, inv *domain.Invitation) string {
	var company domain.AppUser
	if err := s.DB.WithContext(ctx).Where("user_id = ?", inv.CompanyID).First(&company).Error; err != nil {
		return ""
	}
	return companyName(&company)
}

type AcceptInput struct {
	Token       string `json:"token"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Accept turns a usable invitation into an employee account in two phases:
// the principal is registered first, then the profile insert and the
// pending -> accepted transition commit in one transaction. If the second
// phase fails the principal is deleted again.
func (s *Service) Accept(ctx context.Context, in AcceptInput) (*domain.AppUser, error) {
	displayName := strings.TrimSpace(in.DisplayName)
	if !validation.IsValidDisplayName(displayName) {
		return nil, ErrDisplayName
	}
	inv, err := s.Resolve(ctx, in.Token)
	if err != nil {
		return nil, err
	}

	principal, err := s.Identity.Register(ctx, inv.Email, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	companyID := inv.CompanyID
	profile := &domain.AppUser{
		UserID:      principal.PrincipalID,
		Role:        constants.RoleEmployee,
		DisplayName: displayName,
		Email:       inv.Email,
		CompanyID:   &companyID,
		Active:      true,
		Permissions: inv.Permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.Invitation{}).
			Where("invite_id = ? AND status = ? AND expires_at >= ?", inv.InviteID, domain.InvitationPending, now).
			Updates(map[string]interface{}{"status": domain.InvitationAccepted, "accepted_at": now, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// accepted or expired since Resolve
			return ErrAlreadyAccepted
		}
		return nil
	})
	if err != nil {
		if delErr := s.Identity.DeletePrincipal(ctx, principal.PrincipalID); delErr != nil {
			log.Error().Err(delErr).Str("principal_id", principal.PrincipalID.String()).
				Msg("invitations: compensation failed, orphaned principal")
		}
		return nil, err
	}

	log.Info().Str("invite_id", inv.InviteID.String()).Str("user_id", profile.UserID.String()).Msg("invitations: accepted")
	live.Notify(ctx, s.Changes, live.EntityInvitations, companyID)
	live.Notify(ctx, s.Changes, live.EntityEmployees, companyID)
	return profile, nil
}

// List returns the scope's invitations, newest first, with the wall clock
// folded into each status. status filters on that effective status.
func (s *Service) List(ctx context.Context, scope tenant.Scope, status string) ([]domain.Invitation, error) {
	now := s.now()
	q := s.DB.WithContext(ctx).Scopes(scope.Apply)
	switch status {
	case "":
	case domain.InvitationPending:
		q = q.Where("status = ? AND expires_at >= ?", domain.InvitationPending, now)
	case domain.InvitationExpired:
		q = q.Where("status = ? OR (status = ? AND expires_at < ?)", domain.InvitationExpired, domain.InvitationPending, now)
	case domain.InvitationAccepted:
		q = q.Where("status = ?", domain.InvitationAccepted)
	default:
		return nil, apperr.Validation("invalid_field", "Unknown invitation status")
	}
	var rows []domain.Invitation
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Status = rows[i].EffectiveStatus(now)
	}
	tenant.SortNewestFirst(rows, func(inv domain.Invitation) time.Time { return inv.CreatedAt })
	return rows, nil
}

func (s *Service) get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*domain.Invitation, error) {
	var inv domain.Invitation
	if err := s.DB.WithContext(ctx).Scopes(scope.Apply).Where("invite_id = ?", id).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Revoke moves a pending invitation to expired.
func (s *Service) Revoke(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*domain.Invitation, error) {
	inv, err := s.get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvitationPending {
		return nil, ErrNotPending
	}
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&domain.Invitation{}).Scopes(scope.Apply).
		Where("invite_id = ? AND status = ?", id, domain.InvitationPending).
		Updates(map[string]interface{}{"status": domain.InvitationExpired, "updated_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotPending
	}
	inv.Status, inv.UpdatedAt = domain.InvitationExpired, now
	live.Notify(ctx, s.Changes, live.EntityInvitations, scope.CompanyID())
	return inv, nil
}

// Resend issues a fresh token and expiry for a stored-pending invitation,
// including one whose expiry has passed. At most once per day after the last
// delivered email; an invite whose email never went out can be resent at once.
func (s *Service) Resend(ctx context.Context, scope tenant.Scope, actor *domain.AppUser, id uuid.UUID) (*domain.Invitation, error) {
	inv, err := s.get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvitationPending {
		return nil, ErrNotPending
	}
	now := s.now()
	if inv.LastSentAt != nil && now.Sub(*inv.LastSentAt) < resendInterval {
		return nil, ErrResendTooSoon
	}
	token, err := s.uniqueToken(ctx)
	if err != nil {
		return nil, err
	}
	expires := now.Add(inviteExpiry)
	res := s.DB.WithContext(ctx).Model(&domain.Invitation{}).Scopes(scope.Apply).
		Where("invite_id = ? AND status = ?", id, domain.InvitationPending).
		Updates(map[string]interface{}{"token": token, "expires_at": expires, "updated_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotPending
	}
	inv.Token, inv.ExpiresAt, inv.UpdatedAt = token, expires, now
	company := ""
	if actor != nil {
		company = companyName(actor)
	}
	s.mail(ctx, inv, company, true)
	live.Notify(ctx, s.Changes, live.EntityInvitations, scope.CompanyID())
	return inv, nil
}
