package billing

import (
	"errors"
	"fmt"
	"log"
	"time"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/plan"
)

var (
	// ErrNoMatchingAccount means none of the event's correlation keys
	// resolved to a stored account. The transport layer answers with a
	// retryable status so the provider redelivers.
	ErrNoMatchingAccount = errors.New("no account matches the event")

	// ErrConflict means a concurrent reconciliation won the version race.
	ErrConflict = errors.New("subscription was modified concurrently")

	// ErrUnknownStatus rejects provider statuses outside the closed set.
	ErrUnknownStatus = errors.New("unknown provider subscription status")
)

// Account table columns touched by reconciliation. The subscription struct
// is embedded with the subscription_ prefix.
const (
	ColPlanID            = "subscription_plan_id"
	ColStatus            = "subscription_status"
	ColBillingCycle      = "subscription_billing_cycle"
	ColCurrentPeriodEnd  = "subscription_current_period_end"
	ColCancelAtPeriodEnd = "subscription_cancel_at_period_end"
	ColMaxTranslations   = "subscription_max_translations_per_month"
	ColMaxWorkspaces     = "subscription_max_workspaces"
	ColLemonSubID        = "subscription_lemon_subscription_id"
	ColLemonCustomerID   = "subscription_lemon_customer_id"
	ColLemonVariantName  = "subscription_lemon_variant_name"
	ColLemonProductName  = "subscription_lemon_product_name"
)

// AccountStore is the slice of account persistence the reconciler needs.
// Lookups return (nil, nil) when no unique match exists. UpdateSubscription
// must apply the column updates only while the stored version still equals
// version, and return ErrConflict otherwise.
type AccountStore interface {
	ByID(id string) (*model.Account, error)
	ByEmail(email string) (*model.Account, error)
	BySubscriptionID(lemonSubID string) (*model.Account, error)
	ByCustomerID(lemonCustomerID string) (*model.Account, error)
	UpdateSubscription(accountID string, version int, updates map[string]interface{}) error
}

// Result describes one applied reconciliation.
type Result struct {
	Account *model.Account
	Status  string
	Updates map[string]interface{}

	// NoOp is set for events the state machine acknowledges without any
	// field change (payment refunds).
	NoOp bool
}

// Reconciler maps billing webhook events onto per-account subscription
// records. Each Apply performs exactly one logical transition guarded by the
// account's subscription version.
type Reconciler struct {
	Accounts AccountStore
}

func NewReconciler(accounts AccountStore) *Reconciler {
	return &Reconciler{Accounts: accounts}
}

// Apply resolves the event's account, computes the transition from the
// state-machine table and writes it with a compare-and-swap on the
// subscription version.
func (r *Reconciler) Apply(ev *Event) (*Result, error) {
	acct, err := r.resolve(ev)
	if err != nil {
		return nil, err
	}

	if ev.Name == EventSubscriptionPaymentRefunded {
		log.Printf("billing: payment refunded for subscription %s (account %s), no state change", ev.SubscriptionID, acct.ID)
		return &Result{Account: acct, Status: acct.Subscription.Status, NoOp: true}, nil
	}

	updates, err := r.transition(acct, ev)
	if err != nil {
		return nil, err
	}

	if err := r.Accounts.UpdateSubscription(acct.ID, acct.SubscriptionVersion, updates); err != nil {
		return nil, err
	}

	status := acct.Subscription.Status
	if s, ok := updates[ColStatus].(string); ok {
		status = s
	}
	return &Result{Account: acct, Status: status, Updates: updates}, nil
}

// resolve finds the account an event refers to. The out-of-band account id
// from checkout metadata wins; otherwise each event class has one
// correlation key.
func (r *Reconciler) resolve(ev *Event) (*model.Account, error) {
	if ev.AccountID != "" {
		acct, err := r.Accounts.ByID(ev.AccountID)
		if err != nil {
			return nil, err
		}
		if acct != nil {
			return acct, nil
		}
		return nil, fmt.Errorf("%w: account id %q", ErrNoMatchingAccount, ev.AccountID)
	}

	var (
		acct *model.Account
		err  error
	)
	switch ev.Name {
	case EventSubscriptionCreated:
		// Brand-new subscription: no stored subscription id yet, so the
		// customer email is the only correlation key left.
		acct, err = r.Accounts.ByEmail(ev.Attr.UserEmail)
	case EventSubscriptionUpdated, EventSubscriptionPlanChanged:
		acct, err = r.Accounts.ByEmail(ev.Attr.UserEmail)
	case EventSubscriptionCancelled:
		acct, err = r.Accounts.ByCustomerID(ev.CustomerID())
	default:
		acct, err = r.Accounts.BySubscriptionID(ev.SubscriptionID)
	}
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNoMatchingAccount, ev.Name, ev.SubscriptionID)
	}
	return acct, nil
}

func (r *Reconciler) transition(acct *model.Account, ev *Event) (map[string]interface{}, error) {
	switch ev.Name {
	case EventSubscriptionCreated:
		updates := planUpdates(ev)
		mergeProviderIDs(updates, ev)
		updates[ColStatus] = model.StatusPending
		if end := ev.PeriodEnd(); end != nil {
			updates[ColCurrentPeriodEnd] = end
		}
		return updates, nil

	case EventSubscriptionUpdated:
		status, err := mapProviderStatus(ev.Attr.Status)
		if err != nil {
			return nil, err
		}
		updates := planUpdates(ev)
		mergeProviderIDs(updates, ev)
		updates[ColStatus] = status
		updates[ColCancelAtPeriodEnd] = ev.Attr.Cancelled
		return updates, nil

	case EventSubscriptionPlanChanged:
		updates := planUpdates(ev)
		mergeProviderIDs(updates, ev)
		return updates, nil

	case EventSubscriptionCancelled:
		return map[string]interface{}{
			ColStatus:            model.StatusCancelled,
			ColCancelAtPeriodEnd: true,
		}, nil

	case EventSubscriptionResumed:
		return map[string]interface{}{
			ColStatus:            model.StatusActive,
			ColCancelAtPeriodEnd: false,
		}, nil

	case EventSubscriptionExpired:
		return map[string]interface{}{ColStatus: model.StatusExpired}, nil

	case EventSubscriptionPaused:
		return map[string]interface{}{ColStatus: model.StatusPaused}, nil

	case EventSubscriptionUnpaused, EventSubscriptionPaymentSuccess, EventSubscriptionPaymentRecovered:
		return map[string]interface{}{ColStatus: model.StatusActive}, nil

	case EventSubscriptionPaymentFailed:
		return map[string]interface{}{ColStatus: model.StatusPastDue}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Name)
}

// planUpdates derives plan, cycle and denormalized limits from the event's
// variant. The stable variant id wins; the display-name match is the
// fallback for stores without registered ids.
func planUpdates(ev *Event) map[string]interface{} {
	p, cycle, ok := plan.MatchVariantID(ev.VariantID())
	if !ok {
		p = plan.MatchVariant(ev.Attr.VariantName)
		cycle = plan.MatchCycle(ev.Attr.VariantName)
	}

	return map[string]interface{}{
		ColPlanID:           p.ID,
		ColBillingCycle:     cycle,
		ColMaxTranslations:  p.Limits.MaxTranslationsPerMonth,
		ColMaxWorkspaces:    p.Limits.MaxWorkspaces,
		ColLemonVariantName: ev.Attr.VariantName,
		ColLemonProductName: ev.Attr.ProductName,
	}
}

func mergeProviderIDs(updates map[string]interface{}, ev *Event) {
	updates[ColLemonSubID] = ev.SubscriptionID
	if id := ev.CustomerID(); id != "" {
		updates[ColLemonCustomerID] = id
	}
}

// mapProviderStatus folds provider status vocabulary into the closed
// internal set. subscription_updated is the only event that copies status
// from the payload, so this is the single place the mapping lives.
func mapProviderStatus(s string) (string, error) {
	switch s {
	case "on_trial", "trialing":
		return model.StatusTrialing, nil
	case "active":
		return model.StatusActive, nil
	case "pending":
		return model.StatusPending, nil
	case "past_due":
		return model.StatusPastDue, nil
	case "unpaid":
		return model.StatusUnpaid, nil
	case "cancelled", "canceled":
		return model.StatusCancelled, nil
	case "expired":
		return model.StatusExpired, nil
	case "paused":
		return model.StatusPaused, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// FreeTierUpdates is the user-initiated self-service path: switching to the
// free plan never talks to the billing provider. Downgrading from an active
// paid plan keeps the paid period end and flags cancellation at period end;
// everything else gets a fresh trial-length window.
func FreeTierUpdates(acct *model.Account, cycle string, now time.Time) map[string]interface{} {
	free := plan.FreePlan()

	updates := map[string]interface{}{
		ColPlanID:          plan.Free,
		ColStatus:          model.StatusActive,
		ColBillingCycle:    cycle,
		ColMaxTranslations: free.Limits.MaxTranslationsPerMonth,
		ColMaxWorkspaces:   free.Limits.MaxWorkspaces,
	}

	if acct.Subscription.Status == model.StatusActive && acct.Subscription.IsPaid() {
		updates[ColCancelAtPeriodEnd] = true
	} else {
		periodEnd := now.AddDate(0, 0, plan.TrialDays)
		updates[ColCurrentPeriodEnd] = &periodEnd
		updates[ColCancelAtPeriodEnd] = false
	}

	return updates
}
