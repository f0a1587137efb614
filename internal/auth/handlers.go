package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"veriflow-backend/internal/pkg/response"
)

// Handlers bundles auth handlers with the service.
type Handlers struct {
	Service *Service
}

// Register POST /api/auth/register
func (h *Handlers) Register(c *fiber.Ctx) error {
	var in RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "email and password required", fiber.StatusBadRequest)
	}
	user, token, err := h.Service.Register(c.Context(), in)
	if err != nil {
		log.Error().Err(err).Str("email", in.Email).Msg("register failed")
		return response.FromError(c, err)
	}
	return response.Created(c, fiber.Map{"user": user, "token": token})
}

// Login POST /api/auth/login
func (h *Handlers) Login(c *fiber.Ctx) error {
	var in LoginInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "email and password required", fiber.StatusBadRequest)
	}
	user, token, err := h.Service.Login(c.Context(), in)
	if err != nil {
		log.Warn().Err(err).Str("email", in.Email).Msg("login failed")
		return response.FromError(c, err)
	}
	return response.JSON(c, fiber.Map{"user": user, "token": token})
}

// Logout POST /api/auth/logout denylists the presented token.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	token := BearerToken(c)
	if token == "" {
		return response.Error(c, "Unauthorized", fiber.StatusUnauthorized)
	}
	if err := h.Service.Tokens.Revoke(c.Context(), token); err != nil {
		log.Error().Err(err).Msg("logout revoke failed")
		return response.Error(c, "Server error", fiber.StatusInternalServerError)
	}
	return response.Message(c, "Logged out")
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
