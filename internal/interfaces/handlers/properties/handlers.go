package properties

import (
	propsvc "objektbetreuer-backend/internal/application/properties"
	uploadsvc "objektbetreuer-backend/internal/application/uploads"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/request"
	"objektbetreuer-backend/internal/pkg/response"
	"objektbetreuer-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *propsvc.Service
	Uploads *uploadsvc.Service
}

// Filter reads the list filter from the query string.
func Filter(c *fiber.Ctx) propsvc.ListFilter {
	return propsvc.ListFilter{
		IncludeInactive: c.QueryBool("include_inactive"),
		Type:            c.Query("type"),
		City:            c.Query("city"),
	}
}

// List GET /api/v1/properties?include_inactive=&type=&city=
func (h *Handlers) List(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.List(c.UserContext(), scope, Filter(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Properties fetched successfully", list, fiber.Map{"count": len(list)})
}

// Create POST /api/v1/properties
func (h *Handlers) Create(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	var in propsvc.CreateInput
	if err := request.Body(c, &in); err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Create(c.UserContext(), scope, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Property created successfully", p, nil)
}

// Get GET /api/v1/properties/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Get(c.UserContext(), scope, id)
	if err != nil {
		return response.FromError(c, err)
	}
	if p == nil {
		return response.FromError(c, propsvc.ErrNotFound)
	}
	return response.Success(c, "Property fetched successfully", p, nil)
}

// Update PATCH /api/v1/properties/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var patch propsvc.Patch
	if err := request.Body(c, &patch); err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Update(c.UserContext(), scope, id, patch)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Property updated successfully", p, nil)
}

// Delete DELETE /api/v1/properties/:id deactivates the property.
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
	return response.Success(c, "Property deleted successfully", fiber.Map{"property_id": id}, nil)
}

type imageUploadRequest struct {
	FileName string `json:"file_name"`
}

// ImageUpload POST /api/v1/properties/:id/image-upload returns a signed upload URL.
func (h *Handlers) ImageUpload(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req imageUploadRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Get(c.UserContext(), scope, id)
	if err != nil {
		return response.FromError(c, err)
	}
	if p == nil {
		return response.FromError(c, propsvc.ErrNotFound)
	}
	res, err := h.Uploads.PropertyImageUpload(c.UserContext(), scope, id, req.FileName)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Signed URL created", res, nil)
}

type attachImageRequest struct {
	URL string `json:"url"`
}

// AttachImage POST /api/v1/properties/:id/images appends an uploaded image.
func (h *Handlers) AttachImage(c *fiber.Ctx) error {
	scope, err := tenant.FromUser(middleware.Profile(c))
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req attachImageRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	if err := h.Uploads.CheckPublicURL(scope, req.URL); err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.AddImage(c.UserContext(), scope, id, req.URL)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Image added", p, nil)
}
