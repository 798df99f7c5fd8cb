package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"objektbetreuer-backend/internal/application/health"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthMarker records request stats in Redis (skip /, /health*, favicon and live streams).
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if rdb == nil || path == "/" || strings.HasPrefix(path, "/health") ||
			strings.HasPrefix(path, "/favicon") || strings.HasPrefix(path, liveStreamPrefix) {
			return c.Next()
		}

		start := time.Now()
		lastReq := map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		}
		b, _ := json.Marshal(lastReq)
		ctx := context.Background()
		_, _ = rdb.Set(ctx, health.KeyLastReq, b, 0).Result()
		_, _ = rdb.Incr(ctx, health.KeyReqTotal).Result()

		err := c.Next()

		ms := time.Since(start).Milliseconds()
		_, _ = rdb.Incr(ctx, health.KeyResCount).Result()
		_, _ = rdb.IncrByFloat(ctx, health.KeyResTime, float64(ms)).Result()
		if err != nil || c.Response().StatusCode() >= 500 {
			_, _ = rdb.Incr(ctx, health.KeyReqErrors).Result()
		}
		return err
	}
}
