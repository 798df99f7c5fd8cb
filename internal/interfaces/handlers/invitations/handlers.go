package invitations

import (
	"time"

	invsvc "objektbetreuer-backend/internal/application/invitations"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/request"
	"objektbetreuer-backend/internal/pkg/response"
	"objektbetreuer-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var errTokenRequired = apperr.Validation("missing_field", "Token is required")

// Handlers serves the invitation workflow. CheckToken and Accept are public.
type Handlers struct {
	Service *invsvc.Service
	Rdb     *redis.Client
	Config  middleware.SessionConfig
}

type tokenRequest struct {
	Token string `json:"token"`
}

type tokenInfo struct {
	Email       string      `json:"email"`
	CompanyName string      `json:"company_name"`
	Permissions interface{} `json:"permissions"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// CheckToken POST /api/v1/invitations/public/check-token
func (h *Handlers) CheckToken(c *fiber.Ctx) error {
	var req tokenRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	if req.Token == "" {
		return response.FromError(c, errTokenRequired)
	}
	inv, err := h.Service.Resolve(c.UserContext(), req.Token)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Invitation is valid", tokenInfo{
		Email:       inv.Email,
		CompanyName: h.Service.CompanyName(c.UserContext(), inv),
		Permissions: inv.Permissions,
		ExpiresAt:   inv.ExpiresAt,
	}, nil)
}

// Accept POST /api/v1/invitations/public/accept creates the employee account
// and signs it in.
func (h *Handlers) Accept(c *fiber.Ctx) error {
	var req invsvc.AcceptInput
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	if req.Token == "" {
		return response.FromError(c, errTokenRequired)
	}
	u, err := h.Service.Accept(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}
	if h.Rdb != nil {
		if err := middleware.StartSession(c, h.Rdb, h.Config, u); err != nil {
			// the account exists; the employee can still sign in
			log.Error().Err(err).Str("user_id", u.UserID.String()).Msg("invitations: could not start session after accept")
		}
	}
	return response.SuccessCreated(c, "Invitation accepted", fiber.Map{"user": u}, nil)
}

// List GET /api/v1/invitations?status=
func (h *Handlers) List(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.List(c.UserContext(), scope, c.Query("status"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Invitations fetched successfully", list, fiber.Map{"count": len(list)})
}

// Create POST /api/v1/invitations
func (h *Handlers) Create(c *fiber.Ctx) error {
	profile := middleware.Profile(c)
	scope, err := tenant.FromUser(profile)
	if err != nil {
		return response.FromError(c, err)
	}
	var req invsvc.CreateInput
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	inv, err := h.Service.Create(c.UserContext(), scope, profile, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Invitation sent", inv, nil)
}

// Revoke PATCH /api/v1/invitations/:id/revoke
func (h *Handlers) Revoke(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	inv, err := h.Service.Revoke(c.UserContext(), scope, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Invitation revoked", inv, nil)
}

// Resend POST /api/v1/invitations/:id/resend
func (h *Handlers) Resend(c *fiber.Ctx) error {
	profile := middleware.Profile(c)
	scope, err := tenant.FromUser(profile)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	inv, err := h.Service.Resend(c.UserContext(), scope, profile, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Invitation resent", inv, nil)
}
