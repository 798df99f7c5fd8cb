// Package request parses path, query and body values for handlers.
package request

import (
	"strings"
	"time"

	"objektbetreuer-backend/internal/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var (
	ErrInvalidBody = apperr.Validation("invalid_field", "Invalid request body")
	ErrInvalidID   = apperr.Validation("invalid_field", "Invalid id")
)

// Body decodes the JSON body into out.
func Body(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return ErrInvalidBody
	}
	return nil
}

// UUIDParam parses the path parameter name.
func UUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

// UUIDQuery parses an optional query value; absent yields nil.
func UUIDQuery(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid_field", "Invalid "+name)
	}
	return &id, nil
}

// TimeQuery parses an optional RFC 3339 query value.
func TimeQuery(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.Validation("invalid_field", "Invalid "+name)
	}
	return &t, nil
}
