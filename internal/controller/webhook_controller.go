package controller

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"goodspeech_backend/internal/store"
	"goodspeech_backend/pkg/billing"
	"goodspeech_backend/pkg/config"
	"goodspeech_backend/pkg/database"
	"goodspeech_backend/pkg/email"
	"goodspeech_backend/pkg/plan"
)

var (
	lemonWebhookSecret     string
	lemonSignatureOptional bool

	reconciler    *billing.Reconciler
	webhookEvents *store.WebhookEvents
)

func InitWebhookController(cfg *config.Config) {
	lemonWebhookSecret = cfg.Lemon.WebhookSecret
	lemonSignatureOptional = cfg.Lemon.SignatureOptional

	reconciler = billing.NewReconciler(store.NewAccounts(database.DB))
	webhookEvents = store.NewWebhookEvents(database.DB)
}

// HandleLemonWebhook receives billing-provider events. Signature failures
// are the only 401; unresolved accounts answer 404 so the provider's retry
// redelivers, until the ledger's attempt cap turns the row into a dead
// letter and we acknowledge.
func HandleLemonWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	if !lemonSignatureOptional {
		if !billing.VerifySignature(payload, c.Get("X-Signature"), lemonWebhookSecret) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid webhook signature",
			})
		}
	}

	ev, err := billing.ParseEvent(payload)
	if err != nil {
		log.Printf("webhook: rejected payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Unrecognized webhook payload",
		})
	}

	ledger, duplicate, err := webhookEvents.Begin(eventID(c, payload), ev.Name, payload)
	if err != nil {
		log.Printf("webhook: ledger error for %s: %v", ev.Name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
		})
	}
	if duplicate {
		log.Printf("webhook: duplicate delivery of %s (%s), skipping", ev.Name, ledger.EventID)
		return c.JSON(fiber.Map{"success": true, "duplicate": true})
	}

	result, err := reconciler.Apply(ev)
	if err != nil {
		if markErr := webhookEvents.MarkFailed(ledger, err.Error()); markErr != nil {
			log.Printf("webhook: could not record failure: %v", markErr)
		}

		switch {
		case errors.Is(err, billing.ErrNoMatchingAccount):
			if ledger.Exhausted() {
				log.Printf("webhook: dead-lettering %s after %d attempts: %v", ev.Name, ledger.Attempts, err)
				return c.JSON(fiber.Map{"success": false, "dead_letter": true})
			}
			log.Printf("webhook: %v (attempt %d), asking provider to retry", err, ledger.Attempts)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false})

		case errors.Is(err, billing.ErrConflict):
			log.Printf("webhook: version conflict on %s, asking provider to retry", ev.Name)
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false})

		case errors.Is(err, billing.ErrUnknownStatus):
			log.Printf("webhook: %v", err)
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"success": false})
		}

		log.Printf("webhook: processing %s failed: %v", ev.Name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false})
	}

	if err := webhookEvents.MarkProcessed(ledger); err != nil {
		log.Printf("webhook: could not mark %s processed: %v", ledger.EventID, err)
	}

	notifySubscriptionChange(ev, result)

	log.Printf("webhook: applied %s to account %s (status %s)", ev.Name, result.Account.ID, result.Status)
	return c.JSON(fiber.Map{"success": true})
}

// eventID is the ledger key for a delivery: the provider's event id header
// when present, else a digest of the raw body.
func eventID(c *fiber.Ctx, payload []byte) string {
	if id := c.Get("X-Event-Id"); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func notifySubscriptionChange(ev *billing.Event, result *billing.Result) {
	if email.GlobalEmailService == nil || result.NoOp {
		return
	}

	acct := result.Account
	planName := acct.Subscription.PlanID
	if id, ok := result.Updates[billing.ColPlanID].(string); ok {
		planName = id
	}
	if p, ok := plan.ByID(planName); ok {
		planName = p.Name
	}

	var err error
	switch ev.Name {
	case billing.EventSubscriptionPaymentSuccess, billing.EventSubscriptionPaymentRecovered:
		err = email.GlobalEmailService.SendSubscriptionActiveEmail(acct.Email, acct.DisplayName, planName, ev.PeriodEnd())
	case billing.EventSubscriptionPaymentFailed:
		err = email.GlobalEmailService.SendPaymentFailedEmail(acct.Email, acct.DisplayName, planName)
	case billing.EventSubscriptionCancelled:
		err = email.GlobalEmailService.SendSubscriptionCancelledEmail(acct.Email, acct.DisplayName, planName, acct.Subscription.CurrentPeriodEnd)
	}
	if err != nil {
		log.Printf("webhook: could not send notification email: %v", err)
	}
}
