package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodspeech_backend/pkg/plan"
)

func TestNewAccountStartsTrial(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	acct := NewAccount("acct_1", "jo@example.com", "Jo", now)

	assert.Equal(t, "acct_1", acct.ID)
	assert.Equal(t, "jo@example.com", acct.Email)
	assert.Equal(t, plan.Free, acct.Subscription.PlanID)
	assert.Equal(t, StatusTrialing, acct.Subscription.Status)
	assert.Equal(t, 15, acct.Subscription.MaxTranslationsPerMonth)
	assert.Equal(t, 1, acct.Subscription.MaxWorkspaces)
	assert.False(t, acct.Subscription.CancelAtPeriodEnd)

	require.NotNil(t, acct.Subscription.CurrentPeriodEnd)
	assert.Equal(t, now.AddDate(0, 0, 14), *acct.Subscription.CurrentPeriodEnd)
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-08", MonthKey(time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)))
	// Month boundary in UTC, not local time.
	assert.Equal(t, "2026-09", MonthKey(time.Date(2026, 8, 31, 23, 30, 0, 0, time.FixedZone("UTC-1", -3600))))
}

func TestTranslationsUsed(t *testing.T) {
	acct := Account{}
	assert.Zero(t, acct.TranslationsUsed("2026-08"))

	// JSON columns hand back float64 counters.
	acct.Usage = map[string]interface{}{
		"2026-07": float64(12),
		"2026-08": 3,
	}
	assert.Equal(t, 12, acct.TranslationsUsed("2026-07"))
	assert.Equal(t, 3, acct.TranslationsUsed("2026-08"))
	assert.Zero(t, acct.TranslationsUsed("2026-06"))
}

func TestBumpUsageAccumulates(t *testing.T) {
	acct := Account{}

	// Nil map: first bump initializes it.
	acct.BumpUsage("2026-08")
	assert.Equal(t, 1, acct.TranslationsUsed("2026-08"))

	// Counters read back from the JSON column as float64 keep counting.
	acct.Usage["2026-08"] = float64(12)
	acct.BumpUsage("2026-08")
	acct.BumpUsage("2026-08")
	assert.Equal(t, 14, acct.TranslationsUsed("2026-08"))

	// Other months untouched.
	assert.Zero(t, acct.TranslationsUsed("2026-07"))

	ws := Workspace{}
	ws.BumpUsage("2026-08")
	ws.BumpUsage("2026-08")
	assert.Equal(t, 2, ws.TranslationsUsed("2026-08"))
}

func TestSubscriptionIsPaid(t *testing.T) {
	s := Subscription{PlanID: plan.Free}
	assert.False(t, s.IsPaid())

	s.PlanID = plan.Professional
	assert.True(t, s.IsPaid())

	s.PlanID = ""
	assert.False(t, s.IsPaid())
}

func TestWebhookEventBookkeeping(t *testing.T) {
	ev := WebhookEvent{Attempts: 1}
	assert.False(t, ev.Processed())
	assert.False(t, ev.Exhausted())

	now := time.Now()
	ev.ProcessedAt = &now
	assert.True(t, ev.Processed())

	ev.Attempts = MaxWebhookAttempts
	assert.True(t, ev.Exhausted())
}
