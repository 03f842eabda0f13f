package cron

import (
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/internal/store"
	"goodspeech_backend/pkg/billing"
	"goodspeech_backend/pkg/database"
	"goodspeech_backend/pkg/email"
	"goodspeech_backend/pkg/plan"
)

func InitSubscriptionExpiryCron() {
	c := cron.New()

	_, err := c.AddFunc("0 9 * * *", func() {
		expireOverdueTrials()
		downgradeLapsedSubscriptions()
		sendExpiryWarnings()
	})

	if err != nil {
		log.Printf("Could not initialize subscription expiry cron: %v", err)
		return
	}

	c.Start()
}

// expireOverdueTrials moves trialing accounts past their trial window to the
// expired state. Writes go through the same version guard the reconciler
// uses, so a webhook landing mid-sweep simply wins.
func expireOverdueTrials() {
	accounts := store.NewAccounts(database.DB)

	var overdue []model.Account
	err := database.DB.
		Where("subscription_status = ? AND subscription_current_period_end < ?", model.StatusTrialing, time.Now()).
		Find(&overdue).Error
	if err != nil {
		log.Printf("Error fetching overdue trials: %v", err)
		return
	}

	for _, acct := range overdue {
		updates := map[string]interface{}{
			billing.ColStatus: model.StatusExpired,
		}
		if err := accounts.UpdateSubscription(acct.ID, acct.SubscriptionVersion, updates); err != nil {
			if !errors.Is(err, billing.ErrConflict) {
				log.Printf("Error expiring trial for %s: %v", acct.ID, err)
			}
			continue
		}

		log.Printf("Trial expired for account %s", acct.ID)
		if email.GlobalEmailService != nil {
			if err := email.GlobalEmailService.SendTrialExpiredEmail(acct.Email, acct.DisplayName); err != nil {
				log.Printf("Error sending trial expired email to %s: %v", acct.Email, err)
			}
		}
	}
}

// downgradeLapsedSubscriptions applies the end-of-period downgrade for
// subscriptions flagged cancel-at-period-end whose period has passed.
func downgradeLapsedSubscriptions() {
	accounts := store.NewAccounts(database.DB)
	free := plan.FreePlan()

	var lapsed []model.Account
	err := database.DB.
		Where("subscription_cancel_at_period_end = ? AND subscription_plan_id <> ? AND subscription_current_period_end < ?",
			true, plan.Free, time.Now()).
		Find(&lapsed).Error
	if err != nil {
		log.Printf("Error fetching lapsed subscriptions: %v", err)
		return
	}

	for _, acct := range lapsed {
		updates := map[string]interface{}{
			billing.ColPlanID:            plan.Free,
			billing.ColStatus:            model.StatusExpired,
			billing.ColCancelAtPeriodEnd: false,
			billing.ColMaxTranslations:   free.Limits.MaxTranslationsPerMonth,
			billing.ColMaxWorkspaces:     free.Limits.MaxWorkspaces,
		}
		if err := accounts.UpdateSubscription(acct.ID, acct.SubscriptionVersion, updates); err != nil {
			if !errors.Is(err, billing.ErrConflict) {
				log.Printf("Error downgrading account %s: %v", acct.ID, err)
			}
			continue
		}
		log.Printf("Downgraded lapsed subscription for account %s", acct.ID)
	}
}

// sendExpiryWarnings mails accounts whose cancelled subscription lapses in a
// few days.
func sendExpiryWarnings() {
	if email.GlobalEmailService == nil {
		return
	}

	warningDays := []int{7, 3}

	for _, days := range warningDays {
		dayStart := time.Now().AddDate(0, 0, days).Truncate(24 * time.Hour)
		dayEnd := dayStart.Add(24 * time.Hour)

		var expiring []model.Account
		err := database.DB.
			Where("subscription_cancel_at_period_end = ? AND subscription_current_period_end >= ? AND subscription_current_period_end < ?",
				true, dayStart, dayEnd).
			Find(&expiring).Error
		if err != nil {
			log.Printf("Error fetching expiring subscriptions: %v", err)
			continue
		}

		log.Printf("Found %d subscriptions expiring in %d days", len(expiring), days)

		for _, acct := range expiring {
			planName := acct.Subscription.PlanID
			if p, ok := plan.ByID(planName); ok {
				planName = p.Name
			}

			if acct.Subscription.CurrentPeriodEnd == nil {
				continue
			}
			err := email.GlobalEmailService.SendSubscriptionExpiryWarning(
				acct.Email,
				acct.DisplayName,
				planName,
				*acct.Subscription.CurrentPeriodEnd,
				days,
			)
			if err != nil {
				log.Printf("Error sending expiry warning to %s: %v", acct.Email, err)
			} else {
				log.Printf("Sent expiry warning to %s for subscription expiring in %d days", acct.Email, days)
			}
		}
	}
}
