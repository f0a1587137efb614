package response

import (
	"github.com/gofiber/fiber/v2"

	"veriflow-backend/internal/pkg/apperrors"
)

// JSON sends a 200 response with the given payload.
func JSON(c *fiber.Ctx, payload interface{}) error {
	return c.Status(fiber.StatusOK).JSON(payload)
}

// Created sends a 201 response with the given payload.
func Created(c *fiber.Ctx, payload interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(payload)
}

// Message sends a 200 response with a bare message body.
func Message(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": message})
}

// Error sends an error response with the standard {message} shape.
func Error(c *fiber.Ctx, message string, statusCode int) error {
	return c.Status(statusCode).JSON(fiber.Map{"message": message})
}

// FromError maps a service error onto the wire: coded errors keep their
// status and message, anything else becomes a generic 500.
func FromError(c *fiber.Ctx, err error) error {
	return Error(c, apperrors.ClientMessage(err), apperrors.StatusCode(err))
}
