package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// WebhookRateLimit bounds payment callbacks per provider (falling back
// to client IP) using Redis when available. Idempotency already makes
// replays harmless; this only keeps a misbehaving provider from
// hammering the ledger.
func WebhookRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		var req struct {
			Provider string `json:"provider"`
		}
		_ = c.BodyParser(&req)
		provider := strings.TrimSpace(req.Provider)
		if provider == "" {
			provider = c.IP()
		}
		key := "rl:webhook:" + provider
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many callbacks, slow down")
		}
		return c.Next()
	}
}
