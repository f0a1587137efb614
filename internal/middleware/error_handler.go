package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"veriflow-backend/internal/pkg/response"
)

// ErrorHandler is the global error handler. Unexpected errors are logged
// in full and surfaced as a generic message; the process never crashes on
// a request failure.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	}

	return response.Error(c, message, code)
}
