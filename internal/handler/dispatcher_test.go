package handler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"earnbot/internal/conversation"
	"earnbot/internal/keyboard"
	"earnbot/internal/model"
	"earnbot/internal/pkg/lock"
	"earnbot/internal/repository/memory"
	"earnbot/internal/service"
	"earnbot/internal/service/servicetest"
)

const adminID int64 = 900

type harness struct {
	d      *Dispatcher
	repo   *memory.Store
	outbox *servicetest.Outbox
	ledger *service.Ledger
	users  *service.Users
	tasks  *service.Tasks
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo := memory.NewStore(map[string]string{model.SettingTaskPrice: "7"})
	outbox := servicetest.NewOutbox()
	notifier := service.NewNotifier(outbox)
	ledger := service.NewLedger(repo, notifier, service.ReferralPolicy{Percent: 3, JoinBonus: 1})
	users := service.NewUsers(repo)
	settings, err := service.NewSettings(repo, "7")
	require.NoError(t, err)
	withdrawals := service.NewWithdrawals(repo, ledger, notifier, adminID, 50)
	tasks := service.NewTasks(repo, notifier, adminID)
	lifecycle := service.NewLifecycle(repo, ledger, notifier, nil)
	machine := conversation.NewMachine(conversation.NewStore(), users, ledger, withdrawals, settings, notifier, adminID)

	d := New(Deps{
		Options: Options{
			AdminID:     adminID,
			BotUsername: "earn_bot",
			SupportURL:  "https://t.me/support",
			GuideURL:    "https://t.me/guide/1",
		},
		Locks:       lock.NewActorLock(),
		Machine:     machine,
		Users:       users,
		Ledger:      ledger,
		Withdrawals: withdrawals,
		Tasks:       tasks,
		Lifecycle:   lifecycle,
		Settings:    settings,
		Notifier:    notifier,
	})
	return &harness{d: d, repo: repo, outbox: outbox, ledger: ledger, users: users, tasks: tasks}
}

func (h *harness) text(t *testing.T, actor int64, text string) {
	t.Helper()
	_, err := h.d.Dispatch(context.Background(), Event{Kind: EventText, ActorID: actor, Text: text})
	require.NoError(t, err)
}

func (h *harness) press(t *testing.T, actor int64, data string, card tele.Editable) string {
	t.Helper()
	resp, err := h.d.Dispatch(context.Background(), Event{Kind: EventCallback, ActorID: actor, Data: data, Card: card})
	require.NoError(t, err)
	return resp.Answer
}

func (h *harness) lastText(t *testing.T, chat int64) string {
	t.Helper()
	last, ok := h.outbox.Last(chat)
	require.True(t, ok, "nothing sent to %d", chat)
	return last.Text()
}

func (h *harness) user(t *testing.T, id int64) *model.User {
	t.Helper()
	u, err := h.users.Get(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (h *harness) credit(t *testing.T, id, amount int64) {
	t.Helper()
	_, _, err := h.users.Ensure(context.Background(), id)
	require.NoError(t, err)
	_, err = h.ledger.Credit(context.Background(), id, amount)
	require.NoError(t, err)
}

// TestAdminPermissionCheckProperty checks that exactly one id is the
// administrator and that an unset id grants nobody.
func TestAdminPermissionCheckProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		admin := rapid.Int64Range(0, 1_000_000_000).Draw(rt, "admin")
		userID := rapid.Int64Range(0, 1_000_000_000).Draw(rt, "userID")

		d := New(Deps{Options: Options{AdminID: admin}})

		want := admin != 0 && admin == userID
		if got := d.isAdmin(userID); got != want {
			rt.Fatalf("isAdmin(%d) with admin %d: expected %v, got %v", userID, admin, want, got)
		}
		if admin != 0 && !d.isAdmin(admin) {
			rt.Fatalf("admin %d not recognized", admin)
		}
	})
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
		args []string
	}{
		{"/start", CmdStart, []string{}},
		{"/start 42", CmdStart, []string{"42"}},
		{"/start@earn_bot 42", CmdStart, []string{"42"}},
		{"/ADMIN", CmdAdmin, []string{}},
		{"/cancel", CmdCancel, []string{}},
		{keyboard.BtnBack, CmdCancel, nil},
		{" " + keyboard.BtnBalance + " ", CmdBalance, nil},
		{keyboard.BtnSetTaskPrice, CmdSetTaskPrice, nil},
		{"/unknown", CmdNone, nil},
		{"hello", CmdNone, nil},
		{"", CmdNone, nil},
	}
	for _, tt := range tests {
		cmd, args := ParseCommand(tt.in)
		assert.Equal(t, tt.want, cmd, tt.in)
		if tt.args != nil {
			assert.Equal(t, tt.args, args, tt.in)
		}
	}
}

func TestCommandAdminOnly(t *testing.T) {
	for _, cmd := range []Command{CmdStart, CmdCancel, CmdBalance, CmdRefer, CmdWithdraw, CmdCreateTask, CmdSupport} {
		assert.False(t, cmd.AdminOnly(), cmd.String())
	}
	for _, cmd := range []Command{CmdAdmin, CmdAddBalance, CmdSetBalance, CmdReduceBalance, CmdAllRequests, CmdUserList, CmdTaskRequests, CmdSetTaskPrice} {
		assert.True(t, cmd.AdminOnly(), cmd.String())
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		action  Action
		id      int64
		wantErr bool
	}{
		{"approve_12", ActionApproveWithdraw, 12, false},
		{"reject_3", ActionRejectWithdraw, 3, false},
		{"tapprove_7", ActionApproveTask, 7, false},
		{"treject_7", ActionRejectTask, 7, false},
		{"topen_9", ActionOpenTask, 9, false},
		{"\fapprove_5", ActionApproveWithdraw, 5, false},
		{"approve_x", ActionApproveWithdraw, 0, true},
		{"approve_", ActionApproveWithdraw, 0, true},
		{"reject_-4", ActionRejectWithdraw, 0, true},
		{"shop_buy", ActionUnknown, 0, false},
	}
	for _, tt := range tests {
		action, id, err := ParseCallback(tt.data)
		assert.Equal(t, tt.action, action, tt.data)
		assert.Equal(t, tt.id, id, tt.data)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMalformedToken, tt.data)
		} else {
			assert.NoError(t, err, tt.data)
		}
	}
}

func TestStart_AttachesReferrerOnce(t *testing.T) {
	h := newHarness(t)
	const a, b int64 = 10, 20

	h.text(t, b, "/start 10")
	assert.Equal(t, keyboard.MsgMainMenu, h.lastText(t, b))

	ua := h.user(t, a)
	assert.Equal(t, int64(1), ua.Balance)
	assert.Equal(t, int64(1), ua.RefCount)
	require.NotNil(t, h.user(t, b).ReferBy)

	h.text(t, b, "/start 10")
	h.text(t, b, "/start 30")
	h.text(t, b, "/start nope")
	assert.Equal(t, int64(1), h.user(t, a).Balance)
	assert.Equal(t, a, *h.user(t, b).ReferBy)

	h.text(t, 40, "/start 40")
	assert.Nil(t, h.user(t, 40).ReferBy)
}

func TestUserCommands(t *testing.T) {
	h := newHarness(t)
	const uid int64 = 5
	h.credit(t, uid, 25)

	h.text(t, uid, keyboard.BtnBalance)
	assert.Equal(t, "💳 আপনার ব্যালেন্স: 25৳\n\n🧾 সাম্প্রতিক লেনদেন:\n+25৳ জমা", h.lastText(t, uid))

	h.text(t, uid, keyboard.BtnRefer)
	assert.Contains(t, h.lastText(t, uid), "https://t.me/earn_bot?start=5")

	h.text(t, uid, keyboard.BtnSupport)
	assert.Contains(t, h.lastText(t, uid), "https://t.me/support")

	h.outbox.Reset()
	h.text(t, uid, keyboard.BtnCreateTask)
	sent := h.outbox.SentTo(uid)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Text(), "7 টাকা")
	assert.Contains(t, sent[0].Opts, tele.ModeMarkdown)
	assert.Equal(t, keyboard.MsgUploadPrompt, sent[1].Text())
}

func TestAdminCommands_VisibleDenial(t *testing.T) {
	h := newHarness(t)
	const uid int64 = 5

	for _, text := range []string{"/admin", keyboard.BtnAddBalance, keyboard.BtnAllRequests, keyboard.BtnSetTaskPrice} {
		h.outbox.Reset()
		h.text(t, uid, text)
		assert.Equal(t, keyboard.MsgNotAdmin, h.lastText(t, uid), text)
	}

	// The admin flow did not open, so a number is just ignored.
	h.outbox.Reset()
	h.text(t, uid, "123")
	assert.Empty(t, h.outbox.Sent())
}

func TestUnmatchedTextIgnored(t *testing.T) {
	h := newHarness(t)
	h.text(t, 5, "random words")
	h.text(t, adminID, "random words")
	assert.Empty(t, h.outbox.Sent())
}

// TestWithdrawRejectEndToEnd drives the whole withdrawal scenario through
// text events and a decision button.
func TestWithdrawRejectEndToEnd(t *testing.T) {
	h := newHarness(t)
	const uid int64 = 7
	h.credit(t, uid, 100)

	h.text(t, uid, keyboard.BtnWithdraw)
	assert.Equal(t, keyboard.MsgChooseMethod, h.lastText(t, uid))
	h.text(t, uid, keyboard.BtnBkash)
	h.text(t, uid, "01712345678")
	h.text(t, uid, "60")
	assert.Equal(t, int64(40), h.user(t, uid).Balance)

	alert, ok := h.outbox.Last(adminID)
	require.True(t, ok)
	markup := alert.Markup()
	require.NotNil(t, markup)
	rejectToken := markup.InlineKeyboard[0][1].Data
	assert.Equal(t, "reject_1", rejectToken)

	card := &tele.StoredMessage{MessageID: "77", ChatID: adminID}
	assert.Equal(t, keyboard.AnswerRejected, h.press(t, adminID, rejectToken, card))
	assert.Equal(t, int64(100), h.user(t, uid).Balance)
	assert.Contains(t, h.lastText(t, uid), "Rejected")

	edits := h.outbox.Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, "🆔 1 Withdraw Rejected ❌", edits[0].Text())

	assert.Equal(t, keyboard.AnswerAlreadyProcessed, h.press(t, adminID, rejectToken, card))
	assert.Equal(t, keyboard.AnswerAlreadyProcessed, h.press(t, adminID, "approve_1", card))
	assert.Equal(t, int64(100), h.user(t, uid).Balance)
}

func TestCallbacks_Errors(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, keyboard.AnswerInvalidID, h.press(t, adminID, "approve_abc", nil))
	assert.Equal(t, keyboard.AnswerNotFound, h.press(t, adminID, "approve_404", nil))
	assert.Equal(t, keyboard.AnswerTaskNotFound, h.press(t, adminID, "tapprove_404", nil))
	assert.Equal(t, keyboard.AnswerFileNotFound, h.press(t, adminID, "topen_404", nil))
	assert.Empty(t, h.press(t, adminID, "something_else", nil))
}

func TestCallbacks_NonAdminSilent(t *testing.T) {
	h := newHarness(t)
	const uid int64 = 7
	h.credit(t, uid, 100)
	h.text(t, uid, keyboard.BtnWithdraw)
	h.text(t, uid, keyboard.BtnNagad)
	h.text(t, uid, "018")
	h.text(t, uid, "50")
	h.outbox.Reset()

	assert.Empty(t, h.press(t, uid, "reject_1", nil))
	assert.Empty(t, h.outbox.Sent())
	assert.Empty(t, h.outbox.Edits())
	assert.Equal(t, int64(50), h.user(t, uid).Balance)

	req, err := h.repo.Withdraws().Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, req.Status)
}

func TestTaskSubmissionAndReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const uid int64 = 8

	_, err := h.d.Dispatch(ctx, Event{
		Kind: EventDocument, ActorID: uid, Username: "dave",
		File: service.TaskFile{FileID: "doc-1", FileName: "notes.pdf", MIME: "application/pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, keyboard.MsgNotSpreadsheet, h.lastText(t, uid))

	_, err = h.d.Dispatch(ctx, Event{
		Kind: EventDocument, ActorID: uid, Username: "dave",
		File: service.TaskFile{FileID: "doc-2", FileName: "gmails.xlsx"},
	})
	require.NoError(t, err)
	assert.Equal(t, keyboard.MsgTaskSubmitted, h.lastText(t, uid))

	h.outbox.Reset()
	h.text(t, adminID, keyboard.BtnTaskRequests)
	cards := h.outbox.SentTo(adminID)
	require.Len(t, cards, 1)
	assert.Contains(t, cards[0].Text(), "@dave")
	require.NotNil(t, cards[0].Markup())
	assert.Equal(t, "topen_1", cards[0].Markup().InlineKeyboard[0][0].Data)

	assert.Equal(t, keyboard.AnswerFileSent, h.press(t, adminID, "topen_1", nil))
	sent, ok := h.outbox.Last(adminID)
	require.True(t, ok)
	doc, isDoc := sent.What.(*tele.Document)
	require.True(t, isDoc)
	assert.Equal(t, "doc-2", doc.FileID)

	assert.Equal(t, keyboard.AnswerApproved, h.press(t, adminID, "tapprove_1", nil))
	assert.Equal(t, keyboard.MsgTaskApprovedUser, h.lastText(t, uid))
	assert.Equal(t, keyboard.AnswerAlreadyProcessed, h.press(t, adminID, "treject_1", nil))

	h.outbox.Reset()
	h.text(t, adminID, keyboard.BtnTaskRequests)
	assert.Equal(t, keyboard.MsgNoPendingTasks, h.lastText(t, adminID))
}

func TestAdminViews(t *testing.T) {
	h := newHarness(t)

	h.text(t, adminID, "/admin")
	assert.Equal(t, keyboard.MsgAdminMenu, h.lastText(t, adminID))

	h.text(t, adminID, keyboard.BtnAllRequests)
	assert.Equal(t, keyboard.MsgNoRequests, h.lastText(t, adminID))

	h.credit(t, 3, 70)
	h.text(t, adminID, keyboard.BtnUserList)
	list := h.lastText(t, adminID)
	assert.Contains(t, list, "🆔 3 | 💰 Balance: 70৳")
}

// TestAdminSetBalanceEndToEnd: B joins through A, the administrator sets
// B from 0 to 100 and A ends with 1 + 3.
func TestAdminSetBalanceEndToEnd(t *testing.T) {
	h := newHarness(t)
	const a, b int64 = 10, 20

	h.text(t, b, "/start 10")
	h.text(t, adminID, keyboard.BtnSetBalance)
	h.text(t, adminID, "20")
	assert.Equal(t, keyboard.FormatAskSetAmount(0), h.lastText(t, adminID))
	h.text(t, adminID, "100")

	assert.Equal(t, keyboard.FormatAdminSet(b, 100), h.lastText(t, adminID))
	assert.Equal(t, int64(100), h.user(t, b).Balance)
	ua := h.user(t, a)
	assert.Equal(t, int64(4), ua.Balance)
	assert.Equal(t, int64(4), ua.RefEarn)
}

func TestCancelClearsBothFlows(t *testing.T) {
	h := newHarness(t)

	h.text(t, adminID, keyboard.BtnWithdraw)
	h.text(t, adminID, keyboard.BtnAddBalance)
	h.text(t, adminID, keyboard.BtnBack)
	assert.Equal(t, keyboard.MsgAdminMenu, h.lastText(t, adminID))

	h.outbox.Reset()
	h.text(t, adminID, "123")
	assert.Empty(t, h.outbox.Sent())
}

// TestConcurrentDecisions: many presses of the same button produce exactly
// one decision and one refund.
func TestConcurrentDecisions(t *testing.T) {
	h := newHarness(t)
	const uid int64 = 7
	h.credit(t, uid, 100)
	h.text(t, uid, keyboard.BtnWithdraw)
	h.text(t, uid, keyboard.BtnBkash)
	h.text(t, uid, "017")
	h.text(t, uid, "60")

	const presses = 20
	answers := make([]string, presses)
	var wg sync.WaitGroup
	for i := 0; i < presses; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := h.d.Dispatch(context.Background(), Event{Kind: EventCallback, ActorID: adminID, Data: "reject_1"})
			if err == nil {
				answers[i] = resp.Answer
			}
		}(i)
	}
	wg.Wait()

	rejected := 0
	for _, a := range answers {
		if a == keyboard.AnswerRejected {
			rejected++
		} else {
			assert.Equal(t, keyboard.AnswerAlreadyProcessed, a)
		}
	}
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(100), h.user(t, uid).Balance)
}
