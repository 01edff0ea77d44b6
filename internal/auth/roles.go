package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// RequireCapability rejects callers whose role lacks capability before the handler runs.
func RequireCapability(gate *Gate, capability Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := gate.Check(PrincipalFromContext(c), capability); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures the caller holds a session.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !PrincipalFromContext(c).IsAuthenticated() {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
