package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"goodspeech_backend/pkg/utils/jwt"
)

// AuthMiddleware verifies the bearer identity token and stores its claims in
// the request context.
func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or malformed identity token",
			})
		}

		claims, err := jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired identity token",
			})
		}

		c.Locals("user", claims)
		return c.Next()
	}
}
