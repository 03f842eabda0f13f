package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/datatypes"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/database"
	"goodspeech_backend/pkg/utils/jwt"
)

type WorkspaceInput struct {
	Name          string `json:"name" validate:"required"`
	SlackTeamID   string `json:"slack_team_id"`
	SlackTeamName string `json:"slack_team_name"`
}

func CreateWorkspace(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(WorkspaceInput)
	if err := c.BodyParser(input); err != nil || input.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Workspace name is required",
		})
	}

	ws := model.Workspace{
		ID:            uuid.NewString(),
		AccountID:     claims.AccountID,
		Name:          input.Name,
		Slug:          slug.Make(input.Name),
		SlackTeamID:   input.SlackTeamID,
		SlackTeamName: input.SlackTeamName,
		Usage:         datatypes.JSONMap{},
	}

	if err := database.DB.Create(&ws).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create workspace",
		})
	}

	// First workspace becomes the default.
	database.DB.Model(&model.Account{}).
		Where("id = ? AND default_workspace_id IS NULL", claims.AccountID).
		Update("default_workspace_id", ws.ID)

	return c.Status(fiber.StatusCreated).JSON(ws)
}

func ListMyWorkspaces(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var workspaces []model.Workspace
	if err := database.DB.Where("account_id = ?", claims.AccountID).
		Order("created_at asc").Find(&workspaces).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch workspaces",
		})
	}

	return c.JSON(workspaces)
}

func UpdateWorkspace(c *fiber.Ctx) error {
	ws := c.Locals("workspace").(*model.Workspace)

	input := new(WorkspaceInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	updates := map[string]interface{}{}
	if input.Name != "" {
		updates["name"] = input.Name
		updates["slug"] = slug.Make(input.Name)
	}
	if input.SlackTeamID != "" {
		updates["slack_team_id"] = input.SlackTeamID
		updates["slack_team_name"] = input.SlackTeamName
	}

	if len(updates) > 0 {
		if err := database.DB.Model(ws).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not update workspace",
			})
		}
	}

	return c.JSON(ws)
}

func SetDefaultWorkspace(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	ws := c.Locals("workspace").(*model.Workspace)

	if err := database.DB.Model(&model.Account{}).
		Where("id = ?", claims.AccountID).
		Update("default_workspace_id", ws.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not set default workspace",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Default workspace updated",
	})
}

func DeleteWorkspace(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	ws := c.Locals("workspace").(*model.Workspace)

	if err := database.DB.Delete(ws).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete workspace",
		})
	}

	// Clear the default pointer if it referenced the deleted workspace.
	database.DB.Model(&model.Account{}).
		Where("id = ? AND default_workspace_id = ?", claims.AccountID, ws.ID).
		Update("default_workspace_id", nil)

	return c.JSON(fiber.Map{
		"message": "Workspace deleted",
	})
}
