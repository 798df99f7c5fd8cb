package middleware

import (
	"objektbetreuer-backend/internal/application/access"
	"objektbetreuer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RequirePermission checks the request profile for action on category.
// Mount after RequireProfile; a missing profile is 401, a missing flag 403.
func RequirePermission(category, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := access.Require(Profile(c), category, action); err != nil {
			return response.FromError(c, err)
		}
		return c.Next()
	}
}

// RequireCompany allows only company accounts.
func RequireCompany() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := access.RequireCompany(Profile(c)); err != nil {
			return response.FromError(c, err)
		}
		return c.Next()
	}
}
