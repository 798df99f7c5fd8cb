package middleware

import (
	"errors"
	"time"

	"objektbetreuer-backend/internal/application/health"
	"objektbetreuer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// NewErrorHandler returns the global error handler. Fiber errors keep their
// status; everything else goes through the application error mapping. Server
// errors are appended to the health error log.
func NewErrorHandler(rdb *redis.Client) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			if fe.Code >= fiber.StatusInternalServerError {
				logServerError(c, rdb, fe.Message)
			}
			return response.Error(c, fe.Message, fe.Code, nil)
		}
		logServerError(c, rdb, err.Error())
		return response.FromError(c, err)
	}
}

func logServerError(c *fiber.Ctx, rdb *redis.Client, message string) {
	health.LogError(c.UserContext(), rdb, map[string]interface{}{
		"time":     time.Now().UTC(),
		"path":     c.Path(),
		"method":   c.Method(),
		"message":  message,
		"trace_id": GetTraceID(c),
	})
}
