package middleware

import (
	"github.com/gofiber/fiber/v2"

	"veriflow-backend/internal/auth"
	"veriflow-backend/internal/pkg/response"
)

const principalLocal = "user"

// RequireAuth verifies the bearer token and attaches the caller's
// Principal to Locals. Returns 401 with the standard error shape if the
// token is missing, invalid, or revoked.
func RequireAuth(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c)
		if token == "" {
			return response.Error(c, "Unauthorized", fiber.StatusUnauthorized)
		}
		userID, err := svc.Tokens.Verify(c.Context(), token)
		if err != nil {
			return response.Error(c, "Unauthorized", fiber.StatusUnauthorized)
		}
		principal, err := svc.PrincipalFor(c.Context(), userID)
		if err != nil {
			return response.Error(c, "Unauthorized", fiber.StatusUnauthorized)
		}
		c.Locals(principalLocal, principal)
		return c.Next()
	}
}

// RequireAdmin gates a route to admin callers. Must run after RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p := GetPrincipal(c); p == nil || !p.IsAdmin() {
			return response.Error(c, "Forbidden", fiber.StatusForbidden)
		}
		return c.Next()
	}
}

// GetPrincipal returns the authenticated caller from Locals (nil if the
// route did not run RequireAuth).
func GetPrincipal(c *fiber.Ctx) *auth.Principal {
	p, _ := c.Locals(principalLocal).(*auth.Principal)
	return p
}
