package appointments

import (
	apptsvc "objektbetreuer-backend/internal/application/appointments"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/request"
	"objektbetreuer-backend/internal/pkg/response"
	"objektbetreuer-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *apptsvc.Service
}

// Filter reads ?from=&to=&assigned_to=&property_id=&status=. Times are RFC 3339.
func Filter(c *fiber.Ctx) (apptsvc.ListFilter, error) {
	var f apptsvc.ListFilter
	var err error
	if f.From, err = request.TimeQuery(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = request.TimeQuery(c, "to"); err != nil {
		return f, err
	}
	if f.AssignedTo, err = request.UUIDQuery(c, "assigned_to"); err != nil {
		return f, err
	}
	if f.PropertyID, err = request.UUIDQuery(c, "property_id"); err != nil {
		return f, err
	}
	f.Status = c.Query("status")
	return f, nil
}

// List GET /api/v1/appointments
func (h *Handlers) List(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	f, err := Filter(c)
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.List(c.UserContext(), scope, f)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Appointments fetched successfully", list, fiber.Map{"count": len(list)})
}

// Create POST /api/v1/appointments
func (h *Handlers) Create(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	var in apptsvc.CreateInput
	if err := request.Body(c, &in); err != nil {
		return response.FromError(c, err)
	}
	a, err := h.Service.Create(c.UserContext(), scope, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Appointment created successfully", a, nil)
}

// Get GET /api/v1/appointments/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	a, err := h.Service.Get(c.UserContext(), scope, id)
	if err != nil {
		return response.FromError(c, err)
	}
	if a == nil {
		return response.FromError(c, apptsvc.ErrNotFound)
	}
	return response.Success(c, "Appointment fetched successfully", a, nil)
}

// Update PATCH /api/v1/appointments/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var patch apptsvc.Patch
	if err := request.Body(c, &patch); err != nil {
		return response.FromError(c, err)
	}
	a, err := h.Service.Update(c.UserContext(), scope, id, patch)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Appointment updated successfully", a, nil)
}

// Delete DELETE /api/v1/appointments/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), scope, id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Appointment deleted successfully", fiber.Map{"appointment_id": id}, nil)
}
