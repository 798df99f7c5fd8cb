package employees

import (
	empsvc "objektbetreuer-backend/internal/application/employees"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/request"
	"objektbetreuer-backend/internal/pkg/response"
	"objektbetreuer-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
)

var errActiveRequired = apperr.Validation("missing_field", "active is required")

type Handlers struct {
	Service *empsvc.Service
}

// List GET /api/v1/employees?include_inactive=
func (h *Handlers) List(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.List(c.UserContext(), scope, empsvc.ListFilter{IncludeInactive: c.QueryBool("include_inactive")})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Employees fetched successfully", list, fiber.Map{"count": len(list)})
}

// Get GET /api/v1/employees/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	u, err := h.Service.Get(c.UserContext(), scope, id)
	if err != nil {
		return response.FromError(c, err)
	}
	if u == nil {
		return response.FromError(c, empsvc.ErrNotFound)
	}
	return response.Success(c, "Employee fetched successfully", u, nil)
}

// UpdatePermissions PATCH /api/v1/employees/:id/permissions replaces all six flags.
func (h *Handlers) UpdatePermissions(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var perms domain.Permissions
	if err := request.Body(c, &perms); err != nil {
		return response.FromError(c, err)
	}
	u, err := h.Service.UpdatePermissions(c.UserContext(), scope, id, perms)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Permissions updated", u, nil)
}

type activeRequest struct {
	Active *bool `json:"active"`
}

// SetActive PATCH /api/v1/employees/:id/active
func (h *Handlers) SetActive(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req activeRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	if req.Active == nil {
		return response.FromError(c, errActiveRequired)
	}
	u, err := h.Service.SetActive(c.UserContext(), scope, id, *req.Active)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Employee updated", u, nil)
}
