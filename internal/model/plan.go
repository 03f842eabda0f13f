package model

import "gorm.io/gorm"

// Plan is the catalog row served by the public plans endpoint. Seeded at
// boot from pkg/plan; the reconciler reads the static catalog directly.
type Plan struct {
	gorm.Model
	PlanID       string  `json:"plan_id" gorm:"uniqueIndex;not null"`
	Name         string  `json:"name" gorm:"not null"`
	Description  string  `json:"description"`
	PriceMonthly float64 `json:"price_monthly"`
	PriceYearly  float64 `json:"price_yearly"`

	MaxTranslationsPerMonth int `json:"max_translations_per_month"`
	MaxWorkspaces           int `json:"max_workspaces"`

	LemonVariantIDMonthly string `json:"lemon_variant_id_monthly"`
	LemonVariantIDYearly  string `json:"lemon_variant_id_yearly"`
}
