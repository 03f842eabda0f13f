package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/database"
	"goodspeech_backend/pkg/plan"
	"goodspeech_backend/pkg/utils/jwt"
)

// CheckWorkspaceLimit gates workspace creation on the subscription's
// workspace cap. The check reads the latest persisted snapshot; concurrent
// requests can both pass a stale read, which the product accepts.
func CheckWorkspaceLimit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		var acct model.Account
		if err := database.DB.First(&acct, "id = ?", claims.AccountID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Account not found",
			})
		}

		var count int64
		database.DB.Model(&model.Workspace{}).Where("account_id = ?", claims.AccountID).Count(&count)

		if !plan.CanCreateWorkspace(acct.Subscription.MaxWorkspaces, int(count)) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":         "You have reached your workspace limit. Please upgrade your plan.",
				"current_count": count,
				"max_limit":     acct.Subscription.MaxWorkspaces,
			})
		}

		return c.Next()
	}
}

// CheckTranslationQuota gates translation recording on the current month's
// usage counter.
func CheckTranslationQuota() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		var acct model.Account
		if err := database.DB.First(&acct, "id = ?", claims.AccountID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Account not found",
			})
		}

		used := acct.TranslationsUsed(model.MonthKey(time.Now()))
		if !plan.CanTranslate(acct.Subscription.MaxTranslationsPerMonth, used) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":     "You have reached your monthly translation limit. Please upgrade your plan.",
				"used":      used,
				"max_limit": acct.Subscription.MaxTranslationsPerMonth,
				"resets_on": model.MonthKey(time.Now().AddDate(0, 1, 0)),
			})
		}

		return c.Next()
	}
}
