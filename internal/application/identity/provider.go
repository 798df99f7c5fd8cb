// Package identity is the authentication collaborator of the portal: it owns
// principals (credentials) and maps them to application profiles.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	maxFailedSignIns  = 5
	failedSignInTTL   = 15 * time.Minute
	resetTokenTTL     = time.Hour
	failedSignInKey   = "signin_failures:"
	passwordResetKey  = "password_reset:"
	defaultBcryptCost = bcrypt.DefaultCost
)

type EventKind string

const (
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
	EventDeleted   EventKind = "deleted"
)

// PrincipalEvent reports a change of a principal's authentication state.
type PrincipalEvent struct {
	Kind        EventKind
	PrincipalID uuid.UUID
}

// Provider is the authentication collaborator. Application code never touches
// principals except through it.
type Provider interface {
	Register(ctx context.Context, email, password string) (*domain.Principal, error)
	SignIn(ctx context.Context, email, password string) (*domain.Principal, error)
	SignOut(ctx context.Context, principalID uuid.UUID) error
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	// DeletePrincipal exists only as a compensating action for a failed sign-up.
	DeletePrincipal(ctx context.Context, principalID uuid.UUID) error
	OnPrincipalChanged(fn func(PrincipalEvent)) (unsubscribe func())
}

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, toEmail, resetLink string) error
}

// LocalProvider keeps principals in the application database and uses Redis
// for sign-in throttling and password reset tokens.
type LocalProvider struct {
	DB           *gorm.DB
	Rdb          *redis.Client
	Mailer       ResetMailer
	ResetBaseURL string
	Now          func() time.Time
	BcryptCost   int

	mu        sync.Mutex
	listeners map[int]func(PrincipalEvent)
	nextID    int
}

func (p *LocalProvider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *LocalProvider) cost() int {
	if p.BcryptCost > 0 {
		return p.BcryptCost
	}
	return defaultBcryptCost
}

func (p *LocalProvider) Register(ctx context.Context, email, password string) (*domain.Principal, error) {
	email = validation.NormalizeEmail(email)
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !validation.IsValidPassword(password) {
		return nil, ErrWeakPassword
	}
	taken, err := p.emailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailInUse
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost())
	if err != nil {
		return nil, err
	}
	now := p.now()
	pr := &domain.Principal{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.DB.WithContext(ctx).Create(pr).Error; err != nil {
		// a concurrent sign-up with the same email lost the unique index race
		if taken, lookupErr := p.emailTaken(ctx, email); lookupErr == nil && taken {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	log.Info().Str("principal_id", pr.PrincipalID.String()).Msg("identity: principal registered")
	return pr, nil
}

func (p *LocalProvider) emailTaken(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := p.DB.WithContext(ctx).Model(&domain.Principal{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// SignIn verifies credentials. After maxFailedSignIns failures for one email
// within failedSignInTTL, further attempts are rejected until the window passes.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*domain.Principal, error) {
	email = validation.NormalizeEmail(email)
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if p.throttled(ctx, email) {
		return nil, ErrRateLimited
	}

	var pr domain.Principal
	if err := p.DB.WithContext(ctx).Where("email = ?", email).First(&pr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.recordFailure(ctx, email)
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(pr.PasswordHash), []byte(password)); err != nil {
		p.recordFailure(ctx, email)
		return nil, ErrInvalidCredential
	}
	if p.Rdb != nil {
		p.Rdb.Del(ctx, failedSignInKey+email)
	}
	p.emit(PrincipalEvent{Kind: EventSignedIn, PrincipalID: pr.PrincipalID})
	return &pr, nil
}

// throttled fails open when Redis is unreachable.
func (p *LocalProvider) throttled(ctx context.Context, email string) bool {
	if p.Rdb == nil {
		return false
	}
	n, err := p.Rdb.Get(ctx, failedSignInKey+email).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("identity: sign-in throttle unavailable")
		}
		return false
	}
	return n >= maxFailedSignIns
}

func (p *LocalProvider) recordFailure(ctx context.Context, email string) {
	if p.Rdb == nil {
		return
	}
	key := failedSignInKey + email
	n, err := p.Rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Msg("identity: failed to count sign-in failure")
		return
	}
	if n == 1 {
		p.Rdb.Expire(ctx, key, failedSignInTTL)
	}
}

func (p *LocalProvider) SignOut(ctx context.Context, principalID uuid.UUID) error {
	DestroyUserSessions(ctx, p.Rdb, principalID.String())
	p.emit(PrincipalEvent{Kind: EventSignedOut, PrincipalID: principalID})
	return nil
}

// SendPasswordReset mails a one-hour reset link. Unknown emails succeed
// silently so the endpoint cannot be used to probe for accounts.
func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if !validation.IsValidEmail(email) {
		return ErrInvalidEmail
	}
	var pr domain.Principal
	if err := p.DB.WithContext(ctx).Where("email = ?", email).First(&pr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	token, err := resetToken()
	if err != nil {
		return err
	}
	if err := p.Rdb.Set(ctx, passwordResetKey+token, pr.PrincipalID.String(), resetTokenTTL).Err(); err != nil {
		return err
	}
	if p.Mailer == nil {
		log.Warn().Str("principal_id", pr.PrincipalID.String()).Msg("identity: no mailer configured, password reset link not sent")
		return nil
	}
	return p.Mailer.SendPasswordReset(ctx, pr.Email, p.ResetBaseURL+"/reset-password?token="+token)
}

// ConfirmPasswordReset consumes token and replaces the password. All existing
// sessions of the principal are destroyed.
func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrResetTokenInvalid
	}
	if !validation.IsValidPassword(newPassword) {
		return ErrWeakPassword
	}
	raw, err := p.Rdb.GetDel(ctx, passwordResetKey+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrResetTokenInvalid
		}
		return err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return ErrResetTokenInvalid
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost())
	if err != nil {
		return err
	}
	res := p.DB.WithContext(ctx).Model(&domain.Principal{}).Where("principal_id = ?", id).
		Updates(map[string]interface{}{"password_hash": string(hash), "updated_at": p.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrResetTokenInvalid
	}
	DestroyUserSessions(ctx, p.Rdb, id.String())
	p.emit(PrincipalEvent{Kind: EventSignedOut, PrincipalID: id})
	return nil
}

func (p *LocalProvider) DeletePrincipal(ctx context.Context, principalID uuid.UUID) error {
	if err := p.DB.WithContext(ctx).Where("principal_id = ?", principalID).Delete(&domain.Principal{}).Error; err != nil {
		return err
	}
	DestroyUserSessions(ctx, p.Rdb, principalID.String())
	p.emit(PrincipalEvent{Kind: EventDeleted, PrincipalID: principalID})
	return nil
}

// OnPrincipalChanged registers fn for sign-in, sign-out and deletion events.
// fn runs synchronously on the caller's goroutine.
func (p *LocalProvider) OnPrincipalChanged(fn func(PrincipalEvent)) func() {
	p.mu.Lock()
	if p.listeners == nil {
		p.listeners = make(map[int]func(PrincipalEvent))
	}
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *LocalProvider) emit(ev PrincipalEvent) {
	p.mu.Lock()
	fns := make([]func(PrincipalEvent), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func resetToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
