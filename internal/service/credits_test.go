package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/model"
)

func TestCostFor(t *testing.T) {
	assert.Equal(t, 1, CostFor(model.InputText))
	assert.Equal(t, 2, CostFor(model.InputImage))
}

func TestCharge(t *testing.T) {
	cases := []struct {
		name        string
		balance     int
		cost        int
		wantBalance int
		wantErr     error
	}{
		{name: "text charge", balance: 5, cost: 1, wantBalance: 4},
		{name: "image charge", balance: 5, cost: 2, wantBalance: 3},
		{name: "drains to zero", balance: 2, cost: 2, wantBalance: 0},
		{name: "insufficient", balance: 1, cost: 2, wantErr: apperror.ErrInsufficientCredits},
		{name: "zero balance", balance: 0, cost: 1, wantErr: apperror.ErrInsufficientCredits},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := newFakeUserRepo()
			users.add(&model.User{ID: "u1", CreditsRemaining: tc.balance})
			svc := NewCreditService(users, testLogger())

			balance, err := svc.Charge(context.Background(), "u1", tc.cost)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr))
				// A rejected charge leaves the balance untouched.
				assert.Equal(t, tc.balance, users.users["u1"].CreditsRemaining)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantBalance, balance)
		})
	}
}

func TestCharge_ZeroCostReadsBalance(t *testing.T) {
	users := newFakeUserRepo()
	users.add(&model.User{ID: "u1", CreditsRemaining: 3})
	svc := NewCreditService(users, testLogger())

	balance, err := svc.Charge(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
	assert.Equal(t, 3, users.users["u1"].CreditsRemaining)
}

func TestCharge_UnknownUser(t *testing.T) {
	svc := NewCreditService(newFakeUserRepo(), testLogger())

	_, err := svc.Charge(context.Background(), "ghost", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestBalance(t *testing.T) {
	users := newFakeUserRepo()
	users.add(&model.User{ID: "u1", CreditsRemaining: 5})
	svc := NewCreditService(users, testLogger())

	balance, err := svc.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
}
