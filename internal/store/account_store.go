package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/billing"
)

// Accounts is the gorm-backed billing.AccountStore. Lookup methods return
// (nil, nil) when no unique match exists: ambiguous correlation keys are as
// useless to the reconciler as missing ones.
type Accounts struct {
	DB *gorm.DB
}

func NewAccounts(db *gorm.DB) *Accounts {
	return &Accounts{DB: db}
}

func (s *Accounts) ByID(id string) (*model.Account, error) {
	if id == "" {
		return nil, nil
	}
	var acct model.Account
	err := s.DB.First(&acct, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *Accounts) ByEmail(email string) (*model.Account, error) {
	return s.uniqueBy("email = ?", email)
}

func (s *Accounts) BySubscriptionID(lemonSubID string) (*model.Account, error) {
	return s.uniqueBy("subscription_lemon_subscription_id = ?", lemonSubID)
}

func (s *Accounts) ByCustomerID(lemonCustomerID string) (*model.Account, error) {
	return s.uniqueBy("subscription_lemon_customer_id = ?", lemonCustomerID)
}

func (s *Accounts) uniqueBy(query string, value string) (*model.Account, error) {
	if value == "" {
		return nil, nil
	}
	var accts []model.Account
	if err := s.DB.Where(query, value).Limit(2).Find(&accts).Error; err != nil {
		return nil, err
	}
	if len(accts) != 1 {
		return nil, nil
	}
	return &accts[0], nil
}

// UpdateSubscription applies the reconciler's column updates guarded by the
// subscription version. A zero row count means another write got there
// first; the caller surfaces a conflict so the provider redelivers.
func (s *Accounts) UpdateSubscription(accountID string, version int, updates map[string]interface{}) error {
	vals := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		vals[k] = v
	}
	vals["subscription_version"] = version + 1

	res := s.DB.Model(&model.Account{}).
		Where("id = ? AND subscription_version = ?", accountID, version).
		Updates(vals)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return billing.ErrConflict
	}
	return nil
}

func (s *Accounts) Create(acct *model.Account) error {
	return s.DB.Create(acct).Error
}

// Ensure creates the account on first identity verification and returns the
// stored record unchanged on every later call.
func (s *Accounts) Ensure(id, email, displayName string, now time.Time) (*model.Account, error) {
	return ensureAccount(s, id, email, displayName, now)
}

type accountEnsureStore interface {
	ByID(id string) (*model.Account, error)
	Create(acct *model.Account) error
}

func ensureAccount(s accountEnsureStore, id, email, displayName string, now time.Time) (*model.Account, error) {
	acct, err := s.ByID(id)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		return acct, nil
	}

	fresh := model.NewAccount(id, email, displayName, now)
	if err := s.Create(&fresh); err != nil {
		// Primary-key race with a concurrent first request: the earlier
		// insert owns the record.
		if existing, lookupErr := s.ByID(id); lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return &fresh, nil
}
