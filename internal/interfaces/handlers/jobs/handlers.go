package jobs

import (
	jobsvc "objektbetreuer-backend/internal/application/jobs"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/request"
	"objektbetreuer-backend/internal/pkg/response"
	"objektbetreuer-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *jobsvc.Service
}

// Filter reads the list filter from the query string. Shared with the live endpoint.
func Filter(c *fiber.Ctx) (jobsvc.ListFilter, error) {
	propertyID, err := request.UUIDQuery(c, "property_id")
	if err != nil {
		return jobsvc.ListFilter{}, err
	}
	assignedTo, err := request.UUIDQuery(c, "assigned_to")
	if err != nil {
		return jobsvc.ListFilter{}, err
	}
	return jobsvc.ListFilter{Status: c.Query("status"), PropertyID: propertyID, AssignedTo: assignedTo}, nil
}

// List GET /api/v1/jobs?status=&property_id=&assigned_to=
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
	return response.Success(c, "Jobs fetched successfully", list, fiber.Map{"count": len(list)})
}

// Create POST /api/v1/jobs
func (h *Handlers) Create(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	var in jobsvc.CreateInput
	if err := request.Body(c, &in); err != nil {
		return response.FromError(c, err)
	}
	job, err := h.Service.Create(c.UserContext(), scope, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Job created successfully", job, nil)
}

// Get GET /api/v1/jobs/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	job, err := h.Service.Get(c.UserContext(), scope, id)
	if err != nil {
		return response.FromError(c, err)
	}
	if job == nil {
		return response.FromError(c, jobsvc.ErrNotFound)
	}
	return response.Success(c, "Job fetched successfully", job, nil)
}

// Update PATCH /api/v1/jobs/:id. Status changes go through /status.
func (h *Handlers) Update(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var patch jobsvc.Patch
	if err := request.Body(c, &patch); err != nil {
		return response.FromError(c, err)
	}
	job, err := h.Service.Update(c.UserContext(), scope, id, patch)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Job updated successfully", job, nil)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ChangeStatus POST /api/v1/jobs/:id/status
func (h *Handlers) ChangeStatus(c *fiber.Ctx) error {
	profile := middleware.Profile(c)
	scope, err := tenant.FromUser(profile)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req statusRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	job, err := h.Service.ChangeStatus(c.UserContext(), scope, id, req.Status, profile.DisplayName)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Job status updated", job, nil)
}

// Delete DELETE /api/v1/jobs/:id
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
	return response.Success(c, "Job deleted successfully", fiber.Map{"job_id": id}, nil)
}
