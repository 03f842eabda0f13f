package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/plan"
)

type fakeEnsureStore struct {
	accounts  map[string]*model.Account
	createErr error

	// missFirstRead makes the initial lookup come back empty, simulating a
	// concurrent request inserting between our read and our create.
	missFirstRead bool
}

func newFakeEnsureStore() *fakeEnsureStore {
	return &fakeEnsureStore{accounts: map[string]*model.Account{}}
}

func (s *fakeEnsureStore) ByID(id string) (*model.Account, error) {
	if s.missFirstRead {
		s.missFirstRead = false
		return nil, nil
	}
	return s.accounts[id], nil
}

func (s *fakeEnsureStore) Create(acct *model.Account) error {
	if s.createErr != nil {
		return s.createErr
	}
	if _, exists := s.accounts[acct.ID]; exists {
		return errors.New("duplicate key value violates unique constraint")
	}
	s.accounts[acct.ID] = acct
	return nil
}

func TestEnsureCreatesTrialAccountOnce(t *testing.T) {
	s := newFakeEnsureStore()
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	first, err := ensureAccount(s, "acct_1", "jo@example.com", "Jo", now)
	require.NoError(t, err)
	assert.Equal(t, plan.Free, first.Subscription.PlanID)
	assert.Equal(t, model.StatusTrialing, first.Subscription.Status)

	// Second ensure with drifted claims returns the stored record unchanged.
	second, err := ensureAccount(s, "acct_1", "jo@example.com", "Joanna", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "Jo", second.DisplayName)
	assert.Equal(t, first.Subscription.CurrentPeriodEnd, second.Subscription.CurrentPeriodEnd)
	assert.Len(t, s.accounts, 1)
}

func TestEnsureSurvivesCreateRace(t *testing.T) {
	s := newFakeEnsureStore()
	now := time.Now()

	winner := model.NewAccount("acct_1", "jo@example.com", "Jo", now)
	s.accounts["acct_1"] = &winner
	s.createErr = errors.New("duplicate key value violates unique constraint")
	s.missFirstRead = true

	acct, err := ensureAccount(s, "acct_1", "jo@example.com", "Jo", now)
	require.NoError(t, err)
	assert.Same(t, &winner, acct)
}

func TestEnsurePropagatesCreateFailure(t *testing.T) {
	s := newFakeEnsureStore()
	s.createErr = errors.New("connection reset")

	_, err := ensureAccount(s, "acct_1", "jo@example.com", "Jo", time.Now())
	assert.Error(t, err)
}
