package seed

import (
	"log"

	"gorm.io/gorm"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/plan"
)

// SeedPlans mirrors the static plan catalog into the plans table served by
// the public plans endpoint. Existing rows are refreshed so catalog changes
// propagate on deploy.
func SeedPlans(db *gorm.DB) {
	for _, p := range plan.Catalog {
		row := model.Plan{
			PlanID:                  p.ID,
			Name:                    p.Name,
			Description:             p.Description,
			PriceMonthly:            p.PriceMonthly,
			PriceYearly:             p.PriceYearly,
			MaxTranslationsPerMonth: p.Limits.MaxTranslationsPerMonth,
			MaxWorkspaces:           p.Limits.MaxWorkspaces,
			LemonVariantIDMonthly:   p.VariantIDMonthly,
			LemonVariantIDYearly:    p.VariantIDYearly,
		}

		var existing model.Plan
		err := db.First(&existing, "plan_id = ?", p.ID).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&row).Error; err != nil {
				log.Printf("Error creating plan %s: %v", p.ID, err)
			}
			continue
		}
		if err != nil {
			log.Printf("Error reading plan %s: %v", p.ID, err)
			continue
		}

		row.Model = existing.Model
		if err := db.Save(&row).Error; err != nil {
			log.Printf("Error updating plan %s: %v", p.ID, err)
		}
	}

	log.Println("Subscription plans seeded successfully!")
}
