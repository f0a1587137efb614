package health

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Handlers serves the health endpoints.
type Handlers struct {
	Rdb            *redis.Client
	DB             DBPinger
	HealthAdminKey string
}

// JSON GET /health/json
func (h *Handlers) JSON(c *fiber.Ctx) error {
	return c.JSON(CollectHealth(c.Context(), h.Rdb, h.DB))
}

// Reset GET /health/reset?key=... clears the traffic stats.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	if h.HealthAdminKey == "" || c.Query("key") != h.HealthAdminKey {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Unauthorized"})
	}
	if h.Rdb != nil {
		if err := ResetStats(c.Context(), h.Rdb); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Server error"})
		}
	}
	return c.JSON(fiber.Map{"message": "Stats reset successfully"})
}
