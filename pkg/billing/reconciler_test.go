package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/plan"
)

// fakeAccountStore keeps accounts in memory and applies column updates the
// way the gorm store would, including the version bump.
type fakeAccountStore struct {
	accounts    map[string]*model.Account
	updateCalls int
	lastUpdates map[string]interface{}
	failWith    error
}

func newFakeStore(accounts ...*model.Account) *fakeAccountStore {
	s := &fakeAccountStore{accounts: map[string]*model.Account{}}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeAccountStore) ByID(id string) (*model.Account, error) {
	if id == "" {
		return nil, nil
	}
	return s.accounts[id], nil
}

func (s *fakeAccountStore) ByEmail(email string) (*model.Account, error) {
	return s.uniqueMatch(func(a *model.Account) bool { return email != "" && a.Email == email })
}

func (s *fakeAccountStore) BySubscriptionID(subID string) (*model.Account, error) {
	return s.uniqueMatch(func(a *model.Account) bool {
		return subID != "" && a.Subscription.LemonSubscriptionID == subID
	})
}

func (s *fakeAccountStore) ByCustomerID(custID string) (*model.Account, error) {
	return s.uniqueMatch(func(a *model.Account) bool {
		return custID != "" && a.Subscription.LemonCustomerID == custID
	})
}

func (s *fakeAccountStore) uniqueMatch(pred func(*model.Account) bool) (*model.Account, error) {
	var found *model.Account
	for _, a := range s.accounts {
		if pred(a) {
			if found != nil {
				return nil, nil
			}
			found = a
		}
	}
	return found, nil
}

func (s *fakeAccountStore) UpdateSubscription(accountID string, version int, updates map[string]interface{}) error {
	if s.failWith != nil {
		return s.failWith
	}
	acct, ok := s.accounts[accountID]
	if !ok || acct.SubscriptionVersion != version {
		return ErrConflict
	}

	s.updateCalls++
	s.lastUpdates = updates

	for col, v := range updates {
		switch col {
		case ColPlanID:
			acct.Subscription.PlanID = v.(string)
		case ColStatus:
			acct.Subscription.Status = v.(string)
		case ColBillingCycle:
			acct.Subscription.BillingCycle = v.(string)
		case ColCurrentPeriodEnd:
			acct.Subscription.CurrentPeriodEnd = v.(*time.Time)
		case ColCancelAtPeriodEnd:
			acct.Subscription.CancelAtPeriodEnd = v.(bool)
		case ColMaxTranslations:
			acct.Subscription.MaxTranslationsPerMonth = v.(int)
		case ColMaxWorkspaces:
			acct.Subscription.MaxWorkspaces = v.(int)
		case ColLemonSubID:
			acct.Subscription.LemonSubscriptionID = v.(string)
		case ColLemonCustomerID:
			acct.Subscription.LemonCustomerID = v.(string)
		case ColLemonVariantName:
			acct.Subscription.LemonVariantName = v.(string)
		case ColLemonProductName:
			acct.Subscription.LemonProductName = v.(string)
		}
	}
	acct.SubscriptionVersion++
	return nil
}

func paidAccount() *model.Account {
	acct := model.NewAccount("acct_1", "jo@example.com", "Jo", time.Now())
	acct.Subscription.PlanID = plan.Starter
	acct.Subscription.Status = model.StatusActive
	acct.Subscription.MaxTranslationsPerMonth = 300
	acct.Subscription.MaxWorkspaces = 1
	acct.Subscription.LemonSubscriptionID = "sub_1"
	acct.Subscription.LemonCustomerID = "42"
	return &acct
}

func event(name string, attr Attributes) *Event {
	return &Event{Name: name, SubscriptionID: "sub_1", Attr: attr}
}

func TestStateMachineTable(t *testing.T) {
	tests := []struct {
		name       string
		event      *Event
		wantStatus string
		wantCols   []string
	}{
		{
			name:       "payment success activates",
			event:      event(EventSubscriptionPaymentSuccess, Attributes{}),
			wantStatus: model.StatusActive,
			wantCols:   []string{ColStatus},
		},
		{
			name:       "payment failed marks past due",
			event:      event(EventSubscriptionPaymentFailed, Attributes{}),
			wantStatus: model.StatusPastDue,
			wantCols:   []string{ColStatus},
		},
		{
			name:       "payment recovered reactivates",
			event:      event(EventSubscriptionPaymentRecovered, Attributes{}),
			wantStatus: model.StatusActive,
			wantCols:   []string{ColStatus},
		},
		{
			name:       "resumed clears pending cancellation",
			event:      event(EventSubscriptionResumed, Attributes{}),
			wantStatus: model.StatusActive,
			wantCols:   []string{ColStatus, ColCancelAtPeriodEnd},
		},
		{
			name:       "expired",
			event:      event(EventSubscriptionExpired, Attributes{}),
			wantStatus: model.StatusExpired,
			wantCols:   []string{ColStatus},
		},
		{
			name:       "paused",
			event:      event(EventSubscriptionPaused, Attributes{}),
			wantStatus: model.StatusPaused,
			wantCols:   []string{ColStatus},
		},
		{
			name:       "unpaused",
			event:      event(EventSubscriptionUnpaused, Attributes{}),
			wantStatus: model.StatusActive,
			wantCols:   []string{ColStatus},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := paidAccount()
			store := newFakeStore(acct)
			r := NewReconciler(store)

			result, err := r.Apply(tt.event)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantStatus, acct.Subscription.Status)

			// No columns beyond the table's are touched.
			assert.Len(t, result.Updates, len(tt.wantCols))
			for _, col := range tt.wantCols {
				assert.Contains(t, result.Updates, col)
			}
		})
	}
}

func TestCreatedEventSetsPendingAndPlanFields(t *testing.T) {
	acct := paidAccount()
	acct.Subscription.LemonSubscriptionID = ""
	store := newFakeStore(acct)
	r := NewReconciler(store)

	endsAt := time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC)
	ev := &Event{
		Name:           EventSubscriptionCreated,
		SubscriptionID: "sub_new",
		Attr: Attributes{
			VariantName: "Professional Yearly",
			ProductName: "Goodspeech",
			CustomerID:  42,
			UserEmail:   "jo@example.com",
			EndsAt:      &endsAt,
		},
	}

	result, err := r.Apply(ev)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, result.Status)
	assert.Equal(t, plan.Professional, acct.Subscription.PlanID)
	assert.Equal(t, plan.CycleYearly, acct.Subscription.BillingCycle)
	assert.Equal(t, plan.Unlimited, acct.Subscription.MaxTranslationsPerMonth)
	assert.Equal(t, 3, acct.Subscription.MaxWorkspaces)
	assert.Equal(t, "sub_new", acct.Subscription.LemonSubscriptionID)
	assert.Equal(t, "42", acct.Subscription.LemonCustomerID)
	require.NotNil(t, acct.Subscription.CurrentPeriodEnd)
	assert.Equal(t, endsAt, *acct.Subscription.CurrentPeriodEnd)
}

func TestUpdatedEventCopiesProviderStatus(t *testing.T) {
	acct := paidAccount()
	store := newFakeStore(acct)
	r := NewReconciler(store)

	ev := event(EventSubscriptionUpdated, Attributes{
		Status:      "past_due",
		VariantName: "Starter Monthly",
		UserEmail:   "jo@example.com",
		Cancelled:   true,
	})

	result, err := r.Apply(ev)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPastDue, result.Status)
	assert.True(t, acct.Subscription.CancelAtPeriodEnd)
	assert.Equal(t, plan.Starter, acct.Subscription.PlanID)
	assert.Equal(t, plan.CycleMonthly, acct.Subscription.BillingCycle)
}

func TestUpdatedEventLeavesPeriodEndAlone(t *testing.T) {
	acct := paidAccount()
	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	acct.Subscription.CurrentPeriodEnd = &periodEnd
	store := newFakeStore(acct)
	r := NewReconciler(store)

	endsAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	ev := event(EventSubscriptionUpdated, Attributes{
		Status:    "active",
		UserEmail: "jo@example.com",
		EndsAt:    &endsAt,
	})

	result, err := r.Apply(ev)
	require.NoError(t, err)

	// Only subscription_created moves the period end.
	assert.NotContains(t, result.Updates, ColCurrentPeriodEnd)
	assert.Equal(t, periodEnd, *acct.Subscription.CurrentPeriodEnd)
}

func TestUpdatedEventRejectsUnknownProviderStatus(t *testing.T) {
	acct := paidAccount()
	store := newFakeStore(acct)
	r := NewReconciler(store)

	ev := event(EventSubscriptionUpdated, Attributes{
		Status:    "sideways",
		UserEmail: "jo@example.com",
	})

	_, err := r.Apply(ev)
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.Zero(t, store.updateCalls)
}

func TestPlanChangedPreservesStatus(t *testing.T) {
	acct := paidAccount()
	store := newFakeStore(acct)
	r := NewReconciler(store)

	ev := event(EventSubscriptionPlanChanged, Attributes{
		VariantName: "Professional Monthly",
		UserEmail:   "jo@example.com",
	})

	result, err := r.Apply(ev)
	require.NoError(t, err)

	assert.NotContains(t, result.Updates, ColStatus)
	assert.Equal(t, model.StatusActive, acct.Subscription.Status)
	assert.Equal(t, plan.Professional, acct.Subscription.PlanID)
}

func TestCancelledEventResolvesByCustomerID(t *testing.T) {
	acct := paidAccount()
	store := newFakeStore(acct)
	r := NewReconciler(store)

	ev := event(EventSubscriptionCancelled, Attributes{CustomerID: 42})

	result, err := r.Apply(ev)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCancelled, result.Status)
	assert.True(t, acct.Subscription.CancelAtPeriodEnd)
}

func TestRefundIsLogOnly(t *testing.T) {
	acct := paidAccount()
	store := newFakeStore(acct)
	r := NewReconciler(store)

	result, err := r.Apply(event(EventSubscriptionPaymentRefunded, Attributes{}))
	require.NoError(t, err)

	assert.True(t, result.NoOp)
	assert.Equal(t, model.StatusActive, result.Status)
	assert.Zero(t, store.updateCalls)
}

func TestExplicitAccountIDWinsOverCorrelation(t *testing.T) {
	acct := paidAccount()
	other := model.NewAccount("acct_2", "other@example.com", "Other", time.Now())
	other.Subscription.LemonSubscriptionID = "sub_1"
	store := newFakeStore(acct, &other)
	r := NewReconciler(store)

	ev := event(EventSubscriptionPaymentSuccess, Attributes{})
	ev.AccountID = "acct_1"

	result, err := r.Apply(ev)
	require.NoError(t, err)
	assert.Equal(t, "acct_1", result.Account.ID)
}

func TestUnresolvableEventTouchesNothing(t *testing.T) {
	acct := paidAccount()
	store := newFakeStore(acct)
	r := NewReconciler(store)

	before := *acct

	ev := &Event{
		Name:           EventSubscriptionPaymentSuccess,
		SubscriptionID: "sub_unknown",
	}
	_, err := r.Apply(ev)

	assert.ErrorIs(t, err, ErrNoMatchingAccount)
	assert.Zero(t, store.updateCalls)
	assert.Equal(t, before.Subscription, acct.Subscription)
}

func TestAmbiguousEmailDoesNotResolve(t *testing.T) {
	a := model.NewAccount("acct_a", "dup@example.com", "A", time.Now())
	b := model.NewAccount("acct_b", "dup@example.com", "B", time.Now())
	store := newFakeStore(&a, &b)
	r := NewReconciler(store)

	ev := &Event{
		Name:           EventSubscriptionCreated,
		SubscriptionID: "sub_9",
		Attr:           Attributes{UserEmail: "dup@example.com"},
	}
	_, err := r.Apply(ev)
	assert.ErrorIs(t, err, ErrNoMatchingAccount)
}

func TestConflictPropagates(t *testing.T) {
	acct := paidAccount()
	store := newFakeStore(acct)
	store.failWith = ErrConflict
	r := NewReconciler(store)

	_, err := r.Apply(event(EventSubscriptionPaymentSuccess, Attributes{}))
	assert.ErrorIs(t, err, ErrConflict)
}

// Mirrors the full purchase lifecycle: checkout completes against an
// existing free-tier account, the first invoice settles, then the customer
// cancels.
func TestEndToEndLifecycle(t *testing.T) {
	acct := model.NewAccount("acct_42", "buyer@example.com", "Buyer", time.Now())
	store := newFakeStore(&acct)
	r := NewReconciler(store)

	renewsAt := time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC)
	created := &Event{
		Name:           EventSubscriptionCreated,
		SubscriptionID: "sub_77",
		Attr: Attributes{
			VariantName: "Professional Yearly",
			CustomerID:  900,
			UserEmail:   "buyer@example.com",
			RenewsAt:    &renewsAt,
		},
	}
	result, err := r.Apply(created)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, result.Status)
	assert.Equal(t, plan.Professional, acct.Subscription.PlanID)
	assert.Equal(t, plan.Unlimited, acct.Subscription.MaxTranslationsPerMonth)

	paid := &Event{
		Name:           EventSubscriptionPaymentSuccess,
		SubscriptionID: "sub_77",
	}
	result, err = r.Apply(paid)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, result.Status)
	assert.Len(t, result.Updates, 1)
	assert.Equal(t, plan.Professional, acct.Subscription.PlanID)

	cancelled := &Event{
		Name:           EventSubscriptionCancelled,
		SubscriptionID: "sub_77",
		Attr:           Attributes{CustomerID: 900},
	}
	result, err = r.Apply(cancelled)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, result.Status)
	assert.True(t, acct.Subscription.CancelAtPeriodEnd)

	assert.Equal(t, 3, acct.SubscriptionVersion)
}

func TestFreeTierDowngradeKeepsPeriodEnd(t *testing.T) {
	acct := paidAccount()
	periodEnd := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	acct.Subscription.PlanID = plan.Professional
	acct.Subscription.CurrentPeriodEnd = &periodEnd

	updates := FreeTierUpdates(acct, plan.CycleMonthly, time.Now())

	assert.Equal(t, plan.Free, updates[ColPlanID])
	assert.Equal(t, model.StatusActive, updates[ColStatus])
	assert.Equal(t, true, updates[ColCancelAtPeriodEnd])
	assert.NotContains(t, updates, ColCurrentPeriodEnd)
}

func TestFreeTierFreshStartGetsNewWindow(t *testing.T) {
	acct := model.NewAccount("acct_f", "f@example.com", "F", time.Now())
	acct.Subscription.Status = model.StatusActive

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	updates := FreeTierUpdates(&acct, plan.CycleMonthly, now)

	assert.Equal(t, false, updates[ColCancelAtPeriodEnd])

	end, ok := updates[ColCurrentPeriodEnd].(*time.Time)
	require.True(t, ok)
	assert.Equal(t, now.AddDate(0, 0, plan.TrialDays), *end)

	free := plan.FreePlan()
	assert.Equal(t, free.Limits.MaxTranslationsPerMonth, updates[ColMaxTranslations])
	assert.Equal(t, free.Limits.MaxWorkspaces, updates[ColMaxWorkspaces])
}
