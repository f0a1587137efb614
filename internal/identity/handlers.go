package identity

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"veriflow-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

// GetFarmers GET /api/farmers (admin)
func (h *Handlers) GetFarmers(c *fiber.Ctx) error {
	farmers, err := h.Service.ListFarmers(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("getFarmers failed")
		return response.FromError(c, err)
	}
	return response.JSON(c, fiber.Map{"count": len(farmers), "farmers": farmers})
}
