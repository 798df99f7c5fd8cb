package auth

import (
	"time"

	"objektbetreuer-backend/internal/application/account"
	"objektbetreuer-backend/internal/application/identity"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/request"
	"objektbetreuer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	errCredentialsRequired = apperr.Validation("missing_field", "Email and password are required")
	errNoProfile           = apperr.New(apperr.KindAuthentication, "no_profile", "No active profile exists for this account")
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	Accounts *account.Service
	Provider identity.Provider
	Profiles *identity.Resolver
	Tokens   *identity.TokenService
	Rdb      *redis.Client
	Config   middleware.SessionConfig
}

// LoginRequest body for /login and /token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signIn verifies credentials and resolves the profile. A principal without an
// active profile is signed out again and rejected.
func (h *Handlers) signIn(c *fiber.Ctx) (*domain.AppUser, error) {
	var req LoginRequest
	if err := request.Body(c, &req); err != nil {
		return nil, errCredentialsRequired
	}
	if req.Email == "" || req.Password == "" {
		return nil, errCredentialsRequired
	}
	principal, err := h.Provider.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	u := h.Profiles.Resolve(c.UserContext(), principal.PrincipalID)
	if u == nil {
		_ = h.Provider.SignOut(c.UserContext(), principal.PrincipalID)
		log.Info().Str("principal_id", principal.PrincipalID.String()).Msg("auth: sign-in without active profile rejected")
		return nil, errNoProfile
	}
	if err := h.Profiles.RecordLogin(c.UserContext(), u.UserID); err != nil {
		log.Error().Err(err).Str("user_id", u.UserID.String()).Msg("auth: could not record login")
	}
	return u, nil
}

// Register POST /api/v1/auth/register creates a company account and signs it in.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req account.RegisterInput
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	u, err := h.Accounts.RegisterCompany(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := middleware.StartSession(c, h.Rdb, h.Config, u); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Account created successfully", fiber.Map{"user": u}, nil)
}

// Login POST /api/v1/auth/login starts a cookie session.
func (h *Handlers) Login(c *fiber.Ctx) error {
	u, err := h.signIn(c)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := middleware.StartSession(c, h.Rdb, h.Config, u); err != nil {
		return response.FromError(c, err)
	}
	log.Info().Str("user_id", u.UserID.String()).Msg("auth: login")
	return response.Success(c, "Login successful", fiber.Map{"user": u}, nil)
}

// Token POST /api/v1/auth/token issues a bearer token for mobile clients.
func (h *Handlers) Token(c *fiber.Ctx) error {
	u, err := h.signIn(c)
	if err != nil {
		return response.FromError(c, err)
	}
	token, expires, err := h.Tokens.Issue(u.UserID, u.Email)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Token issued", fiber.Map{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expires.UTC().Format(time.RFC3339),
		"user":         u,
	}, nil)
}

// Me GET /api/v1/auth/me returns the resolved profile.
func (h *Handlers) Me(c *fiber.Ctx) error {
	u := middleware.Profile(c)
	if u == nil {
		return response.FromError(c, apperr.ErrNotAuthenticated)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": u}, nil)
}

// Logout DELETE /api/v1/auth/logout destroys the current session only.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	middleware.DestroySession(c, h.Rdb, h.Config)
	return response.Success(c, "Logged out successfully", nil, nil)
}

type resetRequest struct {
	Email string `json:"email"`
}

// PasswordReset POST /api/v1/auth/password-reset answers the same way whether
// or not the email has an account.
func (h *Handlers) PasswordReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	if err := h.Provider.SendPasswordReset(c.UserContext(), req.Email); err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return response.FromError(c, err)
		}
		log.Error().Err(err).Msg("auth: password reset mail failed")
	}
	return response.Success(c, "If an account exists, a reset link has been sent", nil, nil)
}

type confirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ConfirmPasswordReset POST /api/v1/auth/password-reset/confirm
func (h *Handlers) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req confirmRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	if err := h.Provider.ConfirmPasswordReset(c.UserContext(), req.Token, req.Password); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Password updated", nil, nil)
}
