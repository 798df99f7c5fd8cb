package account

import (
	acctsvc "objektbetreuer-backend/internal/application/account"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/request"
	"objektbetreuer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *acctsvc.Service
}

// Get GET /api/v1/account
func (h *Handlers) Get(c *fiber.Ctx) error {
	u := middleware.Profile(c)
	if u == nil {
		return response.FromError(c, apperr.ErrNotAuthenticated)
	}
	return response.Success(c, "Account fetched successfully", u, nil)
}

// Update PATCH /api/v1/account changes the caller's own display or company name.
func (h *Handlers) Update(c *fiber.Ctx) error {
	var patch acctsvc.ProfilePatch
	if err := request.Body(c, &patch); err != nil {
		return response.FromError(c, err)
	}
	u, err := h.Service.UpdateProfile(c.UserContext(), middleware.Profile(c), patch)
	if err != nil {
		return response.FromError(c, err)
	}
	if middleware.SessionUserID(c) == u.UserID.String() {
		middleware.RefreshSessionUser(c, u)
	}
	return response.Success(c, "Account updated", u, nil)
}
