package service

import (
	"context"

	"github.com/stretchr/testify/require"

	"earnbot/internal/model"
	"earnbot/internal/repository/memory"
	"earnbot/internal/service/servicetest"
)

const testAdminID int64 = 900

// tHelper is satisfied by *testing.T and *rapid.T.
type tHelper interface {
	require.TestingT
	Helper()
}

type testEnv struct {
	store       *memory.Store
	outbox      *servicetest.Outbox
	notifier    *Notifier
	ledger      *Ledger
	lifecycle   *Lifecycle
	withdrawals *Withdrawals
	tasks       *Tasks
	settings    *Settings
	users       *Users
}

func newTestEnv(tb tHelper, hook TaskApprovalHook) *testEnv {
	tb.Helper()

	store := memory.NewStore(map[string]string{model.SettingTaskPrice: "7"})
	outbox := servicetest.NewOutbox()
	notifier := NewNotifier(outbox)
	ledger := NewLedger(store, notifier, ReferralPolicy{Percent: 3, JoinBonus: 1})
	settings, err := NewSettings(store, "7")
	require.NoError(tb, err)

	return &testEnv{
		store:       store,
		outbox:      outbox,
		notifier:    notifier,
		ledger:      ledger,
		lifecycle:   NewLifecycle(store, ledger, notifier, hook),
		withdrawals: NewWithdrawals(store, ledger, notifier, testAdminID, 50),
		tasks:       NewTasks(store, notifier, testAdminID),
		settings:    settings,
		users:       NewUsers(store),
	}
}

// userWithBalance creates a user and credits the opening balance.
func (e *testEnv) userWithBalance(tb tHelper, userID, balance int64) {
	tb.Helper()
	ctx := context.Background()
	_, _, err := e.users.Ensure(ctx, userID)
	require.NoError(tb, err)
	if balance > 0 {
		_, err = e.ledger.Credit(ctx, userID, balance)
		require.NoError(tb, err)
	}
}

func (e *testEnv) balance(tb tHelper, userID int64) int64 {
	tb.Helper()
	u, err := e.users.Get(context.Background(), userID)
	require.NoError(tb, err)
	return u.Balance
}

func (e *testEnv) user(tb tHelper, userID int64) *model.User {
	tb.Helper()
	u, err := e.users.Get(context.Background(), userID)
	require.NoError(tb, err)
	return u
}
