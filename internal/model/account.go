package model

import (
	"time"

	"gorm.io/datatypes"

	"goodspeech_backend/pkg/plan"
)

// Subscription statuses form one closed set. Provider payloads are mapped
// into it at the webhook boundary and never stored verbatim.
const (
	StatusTrialing  = "trialing"
	StatusActive    = "active"
	StatusPending   = "pending"
	StatusPastDue   = "past_due"
	StatusUnpaid    = "unpaid"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
	StatusPaused    = "paused"
)

// Subscription is embedded in Account; limits are denormalized from the plan
// catalog at reconciliation time so entitlement checks stay a single read.
type Subscription struct {
	PlanID            string     `json:"plan_id" gorm:"default:'free'"`
	Status            string     `json:"status" gorm:"default:'trialing'"`
	BillingCycle      string     `json:"billing_cycle" gorm:"default:'monthly'"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end" gorm:"default:false"`

	MaxTranslationsPerMonth int `json:"max_translations_per_month"`
	MaxWorkspaces           int `json:"max_workspaces"`

	// External correlation ids, the join keys for webhook events that carry
	// no account id.
	LemonSubscriptionID string `json:"lemon_subscription_id" gorm:"index"`
	LemonCustomerID     string `json:"lemon_customer_id" gorm:"index"`
	LemonVariantName    string `json:"lemon_variant_name"`
	LemonProductName    string `json:"lemon_product_name"`
}

func (s Subscription) IsPaid() bool {
	return s.PlanID != "" && s.PlanID != plan.Free
}

type Account struct {
	// ID is the opaque uid issued by the identity provider.
	ID          string `json:"id" gorm:"primaryKey"`
	Email       string `json:"email" gorm:"uniqueIndex;not null"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Locale      string `json:"locale" gorm:"default:'en'"`

	Subscription Subscription `json:"subscription" gorm:"embedded;embeddedPrefix:subscription_"`

	// SubscriptionVersion is the compare-and-swap token for subscription
	// writes; a stale version loses and the provider redelivers.
	SubscriptionVersion int `json:"-" gorm:"default:0"`

	// Usage maps a month key ("2026-08") to the translations recorded in
	// that month. Old keys are kept for history.
	Usage datatypes.JSONMap `json:"usage"`

	DefaultWorkspaceID *string `json:"default_workspace_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Workspaces []Workspace `json:"-" gorm:"foreignKey:AccountID"`
}

// MonthKey returns the usage-map key for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// TranslationsUsed reads the usage counter for the given month key. JSON
// numbers come back as float64 from the document column.
func (a *Account) TranslationsUsed(monthKey string) int {
	if a.Usage == nil {
		return 0
	}
	switch v := a.Usage[monthKey].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

// BumpUsage increments the month's translation counter in place. Counters
// are stored as float64 to match what the JSON column hands back.
func (a *Account) BumpUsage(monthKey string) {
	if a.Usage == nil {
		a.Usage = datatypes.JSONMap{}
	}
	a.Usage[monthKey] = float64(a.TranslationsUsed(monthKey) + 1)
}

// NewAccount builds a fresh account on its 14-day free trial.
func NewAccount(id, email, displayName string, now time.Time) Account {
	free := plan.FreePlan()
	periodEnd := now.AddDate(0, 0, plan.TrialDays)

	return Account{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		Usage:       datatypes.JSONMap{},
		Subscription: Subscription{
			PlanID:                  plan.Free,
			Status:                  StatusTrialing,
			BillingCycle:            plan.CycleMonthly,
			CurrentPeriodEnd:        &periodEnd,
			MaxTranslationsPerMonth: free.Limits.MaxTranslationsPerMonth,
			MaxWorkspaces:           free.Limits.MaxWorkspaces,
		},
	}
}
