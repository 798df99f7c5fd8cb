package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const liveStreamPrefix = "/api/v1/live/"

// RouteLogger logs one line per request with status, duration and, once the
// auth chain ran, the user and tenant it acted for. Live streams outlive the
// handler, so only their opening is logged here.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := GetTraceID(c)
		if traceID == "" {
			traceID = "no-trace-id"
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var ev *zerolog.Event
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			ev = log.Error().Err(err)
		case status >= fiber.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev = ev.Str("trace_id", traceID).Str("method", c.Method()).Str("path", c.Path()).Int("status", status)
		if u := Profile(c); u != nil {
			ev = ev.Str("user_id", u.UserID.String()).Str("company_id", u.TenantID().String())
		}
		if strings.HasPrefix(c.Path(), liveStreamPrefix) && status < fiber.StatusBadRequest {
			ev.Msg("Stream opened")
			return err
		}
		ev.Int64("ms", time.Since(start).Milliseconds()).Msg("Request handled")
		return err
	}
}
