package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/database"
	"goodspeech_backend/pkg/plan"
	"goodspeech_backend/pkg/utils/jwt"
)

type TranslationInput struct {
	WorkspaceID string `json:"workspace_id"`
}

// RecordTranslation bumps the account's and workspace's monthly counters.
// Both rows are read with FOR UPDATE locks inside the transaction so
// concurrent rewrites serialize and never lose a count, even though the
// quota gate itself reads a possibly stale snapshot.
func RecordTranslation(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(TranslationInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	monthKey := model.MonthKey(time.Now())
	var used int

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var acct model.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&acct, "id = ?", claims.AccountID).Error; err != nil {
			return err
		}

		var ws model.Workspace
		wsQuery := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", claims.AccountID)
		if input.WorkspaceID != "" {
			wsQuery = wsQuery.Where("id = ?", input.WorkspaceID)
		} else if acct.DefaultWorkspaceID != nil {
			wsQuery = wsQuery.Where("id = ?", *acct.DefaultWorkspaceID)
		}
		if err := wsQuery.First(&ws).Error; err != nil {
			return err
		}

		acct.BumpUsage(monthKey)
		if err := tx.Model(&acct).Update("usage", acct.Usage).Error; err != nil {
			return err
		}

		ws.BumpUsage(monthKey)
		if err := tx.Model(&ws).Update("usage", ws.Usage).Error; err != nil {
			return err
		}

		used = acct.TranslationsUsed(monthKey)
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not record translation",
		})
	}

	return c.JSON(fiber.Map{
		"month": monthKey,
		"used":  used,
	})
}

// GetUsage is the entitlement read accessor: current limits, this month's
// counter and the per-workspace breakdown.
func GetUsage(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var acct model.Account
	if err := database.DB.First(&acct, "id = ?", claims.AccountID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	var workspaces []model.Workspace
	database.DB.Where("account_id = ?", claims.AccountID).Find(&workspaces)

	monthKey := model.MonthKey(time.Now())
	used := acct.TranslationsUsed(monthKey)
	limit := acct.Subscription.MaxTranslationsPerMonth

	remaining := plan.Unlimited
	if limit >= 0 {
		remaining = limit - used
		if remaining < 0 {
			remaining = 0
		}
	}

	perWorkspace := make([]fiber.Map, 0, len(workspaces))
	for _, ws := range workspaces {
		perWorkspace = append(perWorkspace, fiber.Map{
			"workspace_id": ws.ID,
			"name":         ws.Name,
			"used":         ws.TranslationsUsed(monthKey),
		})
	}

	return c.JSON(fiber.Map{
		"month":           monthKey,
		"used":            used,
		"limit":           limit,
		"remaining":       remaining,
		"max_workspaces":  acct.Subscription.MaxWorkspaces,
		"workspace_count": len(workspaces),
		"workspaces":      perWorkspace,
	})
}
