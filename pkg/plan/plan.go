package plan

import "strings"

const (
	Free         = "free"
	Starter      = "starter"
	Professional = "professional"
)

const (
	CycleMonthly = "monthly"
	CycleYearly  = "yearly"
)

// Unlimited marks a quota with no cap.
const Unlimited = -1

// TrialDays is the free-tier trial window granted to new accounts.
const TrialDays = 14

type Limits struct {
	MaxTranslationsPerMonth int
	MaxWorkspaces           int
}

type Plan struct {
	ID           string
	Name         string
	Description  string
	PriceMonthly float64
	PriceYearly  float64
	Limits       Limits

	// Lemon Squeezy variant ids, the stable join keys for webhook events.
	// Display-name matching is only the fallback when an event carries no
	// variant id we know.
	VariantIDMonthly string
	VariantIDYearly  string
}

// Catalog is ordered from lowest to highest tier.
var Catalog = []Plan{
	{
		ID:          Free,
		Name:        "Free",
		Description: "Try Goodspeech with a small monthly quota",
		Limits: Limits{
			MaxTranslationsPerMonth: 15,
			MaxWorkspaces:           1,
		},
	},
	{
		ID:           Starter,
		Name:         "Starter",
		Description:  "For individuals and small teams",
		PriceMonthly: 9.99,
		PriceYearly:  99.99,
		Limits: Limits{
			MaxTranslationsPerMonth: 300,
			MaxWorkspaces:           1,
		},
	},
	{
		ID:           Professional,
		Name:         "Professional",
		Description:  "Unlimited rewrites for growing teams",
		PriceMonthly: 24.99,
		PriceYearly:  249.99,
		Limits: Limits{
			MaxTranslationsPerMonth: Unlimited,
			MaxWorkspaces:           3,
		},
	},
}

func ByID(id string) (Plan, bool) {
	for _, p := range Catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

func Exists(id string) bool {
	_, ok := ByID(id)
	return ok
}

func FreePlan() Plan {
	p, _ := ByID(Free)
	return p
}

// MatchVariantID resolves a provider variant id against the catalog's stable
// id table. Returns false when the id is unknown so callers can fall back to
// name matching.
func MatchVariantID(variantID string) (Plan, string, bool) {
	if variantID == "" {
		return Plan{}, "", false
	}
	for _, p := range Catalog {
		switch variantID {
		case p.VariantIDMonthly:
			return p, CycleMonthly, true
		case p.VariantIDYearly:
			return p, CycleYearly, true
		}
	}
	return Plan{}, "", false
}

// RegisterVariantID binds a provider variant id to a catalog plan. Called at
// boot with the ids configured for the deployment's Lemon Squeezy store.
func RegisterVariantID(planID, cycle, variantID string) {
	if variantID == "" {
		return
	}
	for i := range Catalog {
		if Catalog[i].ID != planID {
			continue
		}
		if cycle == CycleYearly {
			Catalog[i].VariantIDYearly = variantID
		} else {
			Catalog[i].VariantIDMonthly = variantID
		}
	}
}

// MatchVariant maps a provider's free-text variant name onto a paid plan.
// Variants containing "starter" map to the starter plan; otherwise the
// variant is matched against paid plan display names, defaulting to the
// professional tier.
func MatchVariant(variantName string) Plan {
	name := strings.ToLower(variantName)

	if strings.Contains(name, Starter) {
		p, _ := ByID(Starter)
		return p
	}

	for _, p := range Catalog {
		if p.ID == Free {
			continue
		}
		if strings.Contains(name, strings.ToLower(p.Name)) {
			return p
		}
	}

	p, _ := ByID(Professional)
	return p
}

var yearlySynonyms = []string{"annually", "annual", "yearly", "year"}

// MatchCycle derives the billing cycle from a variant name. Unrecognized
// names default to monthly.
func MatchCycle(variantName string) string {
	name := strings.ToLower(variantName)

	for _, s := range yearlySynonyms {
		if strings.Contains(name, s) {
			return CycleYearly
		}
	}
	if strings.Contains(name, "month") {
		return CycleMonthly
	}
	return CycleMonthly
}

func ValidCycle(cycle string) bool {
	return cycle == CycleMonthly || cycle == CycleYearly
}

// CanCreateWorkspace reports whether an account holding the given limit may
// add one more workspace. Negative limits are unbounded.
func CanCreateWorkspace(maxWorkspaces, currentCount int) bool {
	if maxWorkspaces < 0 {
		return true
	}
	return currentCount < maxWorkspaces
}

// CanTranslate reports whether another translation fits under the monthly
// quota. Negative limits are unbounded.
func CanTranslate(maxPerMonth, usedThisMonth int) bool {
	if maxPerMonth < 0 {
		return true
	}
	return usedThisMonth < maxPerMonth
}
