package ratelimit

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// New returns a fixed-window per-IP limiter backed by redis. Without redis,
// or when the counter cannot be reached, requests pass through: the limiter
// protects the contribution endpoints, it never takes them down.
func New(client *redis.Client, perMinute int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if client == nil || perMinute <= 0 {
			return c.Next()
		}

		window := time.Now().Unix() / 60
		key := "ratelimit:" + c.IP() + ":" + strconv.FormatInt(window, 10)

		count, err := client.Incr(c.Context(), key).Result()
		if err != nil {
			return c.Next()
		}
		if count == 1 {
			client.Expire(c.Context(), key, time.Minute)
		}
		if count > int64(perMinute) {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
		}
		return c.Next()
	}
}
