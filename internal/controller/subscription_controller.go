package controller

import (
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/internal/store"
	"goodspeech_backend/pkg/billing"
	"goodspeech_backend/pkg/config"
	"goodspeech_backend/pkg/database"
	"goodspeech_backend/pkg/email"
	"goodspeech_backend/pkg/plan"
	"goodspeech_backend/pkg/utils/jwt"
)

type SubscriptionInput struct {
	PlanID       string `json:"plan_id" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"required"`
}

var (
	lemonStoreSlug string
	accounts       *store.Accounts
)

func InitSubscriptionController(cfg *config.Config) {
	lemonStoreSlug = cfg.Lemon.StoreSlug
	accounts = store.NewAccounts(database.DB)
}

func ListPlans(c *fiber.Ctx) error {
	var plans []model.Plan
	if err := database.DB.Order("price_monthly asc").Find(&plans).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch subscription plans",
		})
	}

	return c.JSON(plans)
}

func GetMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var acct model.Account
	if err := database.DB.First(&acct, "id = ?", claims.AccountID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	return c.JSON(acct.Subscription)
}

// ChangeSubscription is the user-initiated plan change. Switching to the
// free tier applies immediately and never touches the billing provider;
// paid plans get a checkout reference and the webhook does the rest.
func ChangeSubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(SubscriptionInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if !plan.ValidCycle(input.BillingCycle) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "billing_cycle must be \"monthly\" or \"yearly\"",
		})
	}

	target, ok := plan.ByID(input.PlanID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown plan",
		})
	}

	acct, err := accounts.ByID(claims.AccountID)
	if err != nil || acct == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	if target.ID == plan.Free {
		wasPaid := acct.Subscription.Status == model.StatusActive && acct.Subscription.IsPaid()
		oldPlanID := acct.Subscription.PlanID

		updates := billing.FreeTierUpdates(acct, input.BillingCycle, time.Now())
		if err := accounts.UpdateSubscription(acct.ID, acct.SubscriptionVersion, updates); err != nil {
			if err == billing.ErrConflict {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "Your subscription changed concurrently, please retry",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not update subscription",
			})
		}

		if wasPaid && email.GlobalEmailService != nil {
			if p, ok := plan.ByID(oldPlanID); ok {
				if err := email.GlobalEmailService.SendSubscriptionCancelledEmail(
					acct.Email, acct.DisplayName, p.Name, acct.Subscription.CurrentPeriodEnd,
				); err != nil {
					log.Printf("Could not send downgrade email: %v", err)
				}
			}
		}

		fresh, err := accounts.ByID(acct.ID)
		if err != nil || fresh == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not load updated subscription",
			})
		}
		return c.JSON(fiber.Map{
			"message":      "Switched to the free plan",
			"subscription": fresh.Subscription,
		})
	}

	checkoutURL, err := checkoutURLFor(target, input.BillingCycle, acct)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Checkout is not configured for this plan",
		})
	}

	return c.JSON(fiber.Map{
		"checkout_url": checkoutURL,
	})
}

// CancelSubscription flags the paid subscription to lapse at period end.
// The authoritative cancellation still arrives as a provider webhook.
func CancelSubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	acct, err := accounts.ByID(claims.AccountID)
	if err != nil || acct == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	if !acct.Subscription.IsPaid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No paid subscription to cancel",
		})
	}

	updates := map[string]interface{}{
		billing.ColCancelAtPeriodEnd: true,
	}
	if err := accounts.UpdateSubscription(acct.ID, acct.SubscriptionVersion, updates); err != nil {
		if err == billing.ErrConflict {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Your subscription changed concurrently, please retry",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update subscription",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Subscription will end at the current period end",
	})
}

// checkoutURLFor builds the provider checkout link with the account id as
// custom metadata, so the resulting webhooks resolve without correlation
// guesswork.
func checkoutURLFor(target plan.Plan, cycle string, acct *model.Account) (string, error) {
	variantID := target.VariantIDMonthly
	if cycle == plan.CycleYearly {
		variantID = target.VariantIDYearly
	}
	if variantID == "" {
		return "", fmt.Errorf("no variant id configured for %s/%s", target.ID, cycle)
	}

	q := url.Values{}
	q.Set("checkout[custom][account_id]", acct.ID)
	q.Set("checkout[email]", acct.Email)

	return fmt.Sprintf("https://%s.lemonsqueezy.com/checkout/buy/%s?%s", lemonStoreSlug, variantID, q.Encode()), nil
}
