package middleware

import (
	"context"
	"strings"

	"objektbetreuer-backend/internal/application/identity"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	userLocal      = "user"
	principalLocal = "principal_id"
	profileLocal   = "profile"
	bearerLocal    = "bearer"
)

// TokenValidator checks a bearer token and returns its principal.
type TokenValidator interface {
	Validate(token string) (uuid.UUID, error)
}

// ProfileResolver maps a principal to its active profile, or nil.
type ProfileResolver interface {
	Current(ctx context.Context, principalID uuid.UUID) *domain.AppUser
}

// BearerAuth accepts "Authorization: Bearer <jwt>" for mobile clients. Requests
// without the header fall through to the cookie session.
func BearerAuth(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokens == nil {
			return response.FromError(c, identity.ErrInvalidToken)
		}
		id, err := tokens.Validate(strings.TrimSpace(raw))
		if err != nil {
			return response.FromError(c, err)
		}
		c.Locals(principalLocal, id)
		c.Locals(bearerLocal, true)
		return c.Next()
	}
}

// RequireAuth ensures the request carries a principal, from a bearer token or
// the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if PrincipalID(c) != uuid.Nil {
			return c.Next()
		}
		id, err := uuid.Parse(SessionUserID(c))
		if err != nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals(principalLocal, id)
		return c.Next()
	}
}

// RequireProfile resolves the principal to its active profile. A principal
// without one (deactivated, never provisioned) loses its session.
func RequireProfile(resolver ProfileResolver, rdb *redis.Client, cfg SessionConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := PrincipalID(c)
		if id == uuid.Nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		u := resolver.Current(c.UserContext(), id)
		if u == nil {
			log.Info().Str("principal_id", id.String()).Msg("No active profile, revoking session")
			if isBearer, _ := c.Locals(bearerLocal).(bool); !isBearer {
				DestroySession(c, rdb, cfg)
			}
			return response.FromError(c, identity.ErrSessionRevoked)
		}
		c.Locals(profileLocal, u)
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// PrincipalID returns the authenticated principal, or uuid.Nil.
func PrincipalID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(principalLocal).(uuid.UUID)
	return id
}

// Profile returns the profile loaded by RequireProfile, or nil.
func Profile(c *fiber.Ctx) *domain.AppUser {
	u, _ := c.Locals(profileLocal).(*domain.AppUser)
	return u
}

// SetProfile stores u as the request's profile. Used by handlers that
// authenticate inline (login, register) and by tests.
func SetProfile(c *fiber.Ctx, u *domain.AppUser) {
	c.Locals(profileLocal, u)
	if u != nil {
		c.Locals(principalLocal, u.UserID)
	}
}
