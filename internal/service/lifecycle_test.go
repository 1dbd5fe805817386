package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"earnbot/internal/model"
)

// TestWithdrawRejectScenario: balance 100, withdraw 60 via Bkash, reject
// restores 100, a second reject is refused and changes nothing.
func TestWithdrawRejectScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	const uid int64 = 7

	env.userWithBalance(t, uid, 100)

	req, err := env.withdrawals.Submit(ctx, uid, model.MethodBkash, "01700000000", 60)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, req.Status)
	assert.Equal(t, int64(40), env.balance(t, uid))

	card := &tele.StoredMessage{MessageID: "55", ChatID: testAdminID}
	decided, err := env.lifecycle.DecideWithdraw(ctx, req.ID, model.StatusRejected, card)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, decided.Status)
	assert.Equal(t, int64(100), env.balance(t, uid))

	edits := env.outbox.Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, card, edits[0].Edit)
	assert.Contains(t, edits[0].Text(), "Rejected")

	_, err = env.lifecycle.DecideWithdraw(ctx, req.ID, model.StatusRejected, card)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, int64(100), env.balance(t, uid))

	stored, err := env.store.Withdraws().Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, stored.Status)
	assert.Len(t, env.outbox.Edits(), 1)
}

func TestDecideWithdraw_ApproveKeepsHold(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.userWithBalance(t, 7, 100)

	req, err := env.withdrawals.Submit(ctx, 7, model.MethodNagad, "018", 60)
	require.NoError(t, err)

	_, err = env.lifecycle.DecideWithdraw(ctx, req.ID, model.StatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(40), env.balance(t, 7))

	last, ok := env.outbox.Last(7)
	require.True(t, ok)
	assert.Contains(t, last.Text(), "Approved")
	assert.Empty(t, env.outbox.Edits())
}

func TestDecideWithdraw_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.userWithBalance(t, 7, 100)
	req, err := env.withdrawals.Submit(ctx, 7, model.MethodBkash, "017", 50)
	require.NoError(t, err)

	_, err = env.lifecycle.DecideWithdraw(ctx, 999, model.StatusApproved, nil)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = env.lifecycle.DecideWithdraw(ctx, req.ID, model.StatusPending, nil)
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	stored, err := env.store.Withdraws().Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
}

// TestWithdrawDecisionExactlyOnceProperty: whatever sequence of decisions
// arrives, only the first changes status, and the final balance is the
// opening balance minus the hold, plus the refund iff the first was a reject.
func TestWithdrawDecisionExactlyOnceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		env := newTestEnv(rt, nil)
		ctx := context.Background()
		const uid int64 = 3

		opening := rapid.Int64Range(50, 100000).Draw(rt, "opening")
		amount := rapid.Int64Range(50, opening).Draw(rt, "amount")
		decisions := rapid.SliceOfN(rapid.SampledFrom([]model.Status{model.StatusApproved, model.StatusRejected}), 1, 8).Draw(rt, "decisions")

		env.userWithBalance(rt, uid, opening)
		req, err := env.withdrawals.Submit(ctx, uid, model.MethodBkash, "017", amount)
		require.NoError(rt, err)

		for i, d := range decisions {
			_, err := env.lifecycle.DecideWithdraw(ctx, req.ID, d, nil)
			if i == 0 {
				require.NoError(rt, err)
			} else if !assert.ErrorIs(rt, err, ErrAlreadyProcessed) {
				rt.FailNow()
			}
		}

		want := opening - amount
		if decisions[0] == model.StatusRejected {
			want = opening
		}
		if got := env.balance(rt, uid); got != want {
			rt.Fatalf("balance: want %d, got %d", want, got)
		}

		stored, err := env.store.Withdraws().Get(ctx, req.ID)
		require.NoError(rt, err)
		if stored.Status != decisions[0] {
			rt.Fatalf("status: want %s, got %s", decisions[0], stored.Status)
		}
	})
}

type recordingHook struct {
	approved []int64
}

func (h *recordingHook) OnTaskApproved(_ context.Context, task *model.TaskSubmission) error {
	h.approved = append(h.approved, task.ID)
	return nil
}

func TestDecideTask(t *testing.T) {
	hook := &recordingHook{}
	env := newTestEnv(t, hook)
	ctx := context.Background()
	env.userWithBalance(t, 7, 25)

	file := TaskFile{FileID: "f1", FileName: "work.xlsx"}
	first, err := env.tasks.Submit(ctx, 7, "alice", file)
	require.NoError(t, err)
	second, err := env.tasks.Submit(ctx, 7, "alice", file)
	require.NoError(t, err)

	card := &tele.StoredMessage{MessageID: "9", ChatID: testAdminID}
	decided, err := env.lifecycle.DecideTask(ctx, first.ID, model.StatusApproved, card)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, decided.Status)
	assert.Equal(t, []int64{first.ID}, hook.approved)

	_, err = env.lifecycle.DecideTask(ctx, second.ID, model.StatusRejected, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID}, hook.approved)

	_, err = env.lifecycle.DecideTask(ctx, first.ID, model.StatusRejected, nil)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	// Task decisions never touch the balance.
	assert.Equal(t, int64(25), env.balance(t, 7))

	sent := env.outbox.SentTo(7)
	require.GreaterOrEqual(t, len(sent), 2)
	assert.Contains(t, sent[len(sent)-2].Text(), "অ্যাপ্রুভ")
	assert.Contains(t, sent[len(sent)-1].Text(), "রিজেক্ট")

	edits := env.outbox.Edits()
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Text(), "Approved")
}

func TestDecideTask_HookErrorDoesNotFail(t *testing.T) {
	hook := TaskApprovalHookFunc(func(context.Context, *model.TaskSubmission) error {
		return ErrNotAuthorized
	})
	env := newTestEnv(t, hook)
	ctx := context.Background()

	task, err := env.tasks.Submit(ctx, 7, "", TaskFile{FileID: "f", FileName: "a.xlsx"})
	require.NoError(t, err)

	decided, err := env.lifecycle.DecideTask(ctx, task.ID, model.StatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, decided.Status)
}

func TestOpenTask(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	task, err := env.tasks.Submit(ctx, 7, "bob", TaskFile{FileID: "file-xyz", FileName: "a.xlsx"})
	require.NoError(t, err)

	opened, err := env.lifecycle.OpenTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "file-xyz", opened.FileID)

	_, err = env.lifecycle.OpenTask(ctx, 404)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}
