package service

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnbot/internal/model"
)

func TestWithdrawSubmit_Eligibility(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		amount  int64
		wantErr error
		after   int64
	}{
		{name: "below minimum with low balance", balance: 40, amount: 49, wantErr: ErrBelowMinimum, after: 40},
		{name: "minimum above balance", balance: 40, amount: 50, wantErr: ErrInsufficientBalance, after: 40},
		{name: "exactly minimum", balance: 50, amount: 50, after: 0},
		{name: "one under minimum", balance: 500, amount: 49, wantErr: ErrBelowMinimum, after: 500},
		{name: "above balance", balance: 100, amount: 101, wantErr: ErrInsufficientBalance, after: 100},
		{name: "whole balance", balance: 100, amount: 100, after: 0},
		{name: "zero", balance: 100, amount: 0, wantErr: ErrBelowMinimum, after: 100},
		{name: "negative", balance: 100, amount: -60, wantErr: ErrBelowMinimum, after: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.userWithBalance(t, 1, tt.balance)

			req, err := env.withdrawals.Submit(context.Background(), 1, model.MethodBkash, "017", tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, req)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.amount, req.Amount)
			}
			assert.Equal(t, tt.after, env.balance(t, 1))
		})
	}
}

func TestWithdrawSubmit_InsufficientCarriesBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	env.userWithBalance(t, 1, 40)

	_, err := env.withdrawals.Submit(context.Background(), 1, model.MethodNagad, "018", 60)
	var balErr *InsufficientBalanceError
	require.True(t, errors.As(err, &balErr))
	assert.Equal(t, int64(40), balErr.Balance)
	assert.Equal(t, int64(60), balErr.Amount)
}

func TestWithdrawSubmit_InvalidInput(t *testing.T) {
	env := newTestEnv(t, nil)
	env.userWithBalance(t, 1, 100)
	ctx := context.Background()

	_, err := env.withdrawals.Submit(ctx, 1, model.Method("Rocket"), "017", 60)
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, err = env.withdrawals.Submit(ctx, 1, model.MethodBkash, "   ", 60)
	assert.ErrorIs(t, err, ErrInvalidNumber)

	_, err = env.withdrawals.Submit(ctx, 404, model.MethodBkash, "017", 60)
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.Equal(t, int64(100), env.balance(t, 1))
}

func TestWithdrawSubmit_Notifications(t *testing.T) {
	env := newTestEnv(t, nil)
	env.userWithBalance(t, 1, 100)

	req, err := env.withdrawals.Submit(context.Background(), 1, model.MethodBkash, "01711111111", 60)
	require.NoError(t, err)

	userMsg, ok := env.outbox.Last(1)
	require.True(t, ok)
	assert.Contains(t, userMsg.Text(), "01711111111")
	assert.Contains(t, userMsg.Text(), "60৳")

	adminMsg, ok := env.outbox.Last(testAdminID)
	require.True(t, ok)
	markup := adminMsg.Markup()
	require.NotNil(t, markup)
	assert.Equal(t, "approve_1", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, int64(1), req.ID)
}

func TestWithdrawSubmit_NotificationFailureKeepsRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	env.userWithBalance(t, 1, 100)
	env.outbox.FailAll(true)

	req, err := env.withdrawals.Submit(context.Background(), 1, model.MethodBkash, "017", 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), env.balance(t, 1))

	recent, err := env.withdrawals.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, req.ID, recent[0].ID)
}
