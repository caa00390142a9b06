package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	chat "github.com/example/team-chat-demo/domain/chat"
)

const identityKey = "identity"

// requireAuth resolves the Bearer token on the request and stores the
// identity in the request locals.
func (m *Module) requireAuth(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if header == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authorization header required",
		})
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Bearer token required",
		})
	}

	identity, err := m.users.ResolveToken(c.Context(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	c.Locals(identityKey, *identity)
	return c.Next()
}

// identityFrom returns the identity stored by requireAuth.
func identityFrom(c *fiber.Ctx) chat.UserIdentity {
	identity, _ := c.Locals(identityKey).(chat.UserIdentity)
	return identity
}
