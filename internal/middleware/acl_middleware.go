package middleware

import (
	"github.com/gofiber/fiber/v2"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/database"
	"goodspeech_backend/pkg/utils/jwt"
)

// CheckWorkspaceOwnership loads the :id workspace and rejects callers who
// do not own it. The workspace is stored in the request context for the
// handler.
func CheckWorkspaceOwnership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)
		workspaceID := c.Params("id")

		var ws model.Workspace
		if err := database.DB.First(&ws, "id = ?", workspaceID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Workspace not found",
			})
		}

		if ws.AccountID != claims.AccountID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You don't have permission to access this workspace",
			})
		}

		c.Locals("workspace", &ws)
		return c.Next()
	}
}
