package keyboard

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnbot/internal/model"
)

func TestWithdrawCard_PendingHasControls(t *testing.T) {
	req := &model.WithdrawRequest{ID: 12, UserID: 5, Method: model.MethodBkash, Number: "017", Amount: 60, Status: model.StatusPending}

	text, markup := WithdrawCard(req)
	assert.Contains(t, text, "🆔 12 | 👤 5")
	assert.Contains(t, text, "60৳")
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	row := markup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, "approve_12", row[0].Data)
	assert.Equal(t, "reject_12", row[1].Data)
}

func TestWithdrawCard_DecidedHasNoControls(t *testing.T) {
	for _, status := range []model.Status{model.StatusApproved, model.StatusRejected} {
		req := &model.WithdrawRequest{ID: 1, Status: status, Method: model.MethodNagad}
		text, markup := WithdrawCard(req)
		assert.Nil(t, markup)
		assert.Contains(t, text, string(status))
	}
}

func TestTaskCard_Tokens(t *testing.T) {
	task := &model.PendingTask{TaskSubmission: model.TaskSubmission{ID: 3, UserID: 9}, Balance: 15}

	text, markup := TaskCard(task)
	assert.Contains(t, text, "@—")
	require.NotNil(t, markup)
	row := markup.InlineKeyboard[0]
	require.Len(t, row, 3)
	assert.Equal(t, "topen_3", row[0].Data)
	assert.Equal(t, "tapprove_3", row[1].Data)
	assert.Equal(t, "treject_3", row[2].Data)
}

func TestMethodFromLabel(t *testing.T) {
	tests := []struct {
		label string
		want  model.Method
		ok    bool
	}{
		{BtnBkash, model.MethodBkash, true},
		{BtnNagad, model.MethodNagad, true},
		{" " + BtnNagad + " ", model.MethodNagad, true},
		{"Bkash", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MethodFromLabel(tt.label)
		assert.Equal(t, tt.ok, ok, tt.label)
		assert.Equal(t, tt.want, got, tt.label)
	}
}

func TestMenus(t *testing.T) {
	main := MainMenu()
	assert.True(t, main.ResizeKeyboard)
	require.Len(t, main.ReplyKeyboard, 3)
	assert.Equal(t, BtnBalance, main.ReplyKeyboard[0][0].Text)
	assert.Equal(t, BtnSupport, main.ReplyKeyboard[2][1].Text)

	admin := AdminMenu()
	require.Len(t, admin.ReplyKeyboard, 5)
	assert.Equal(t, BtnBack, admin.ReplyKeyboard[4][0].Text)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "https://t.me/earnbot?start=42", ReferLink("earnbot", 42))
	assert.Contains(t, FormatRefer("link", 2, 5, 3, 1), "3%")
	assert.Contains(t, FormatTaskOffer(decimal.RequireFromString("7.50"), "https://guide"), "7.5 টাকা")
	assert.Contains(t, FormatUserList(&model.UserSummary{}), "📭")
	assert.Equal(t, FormatBalance(9), FormatBalanceHistory(9, nil))
	history := FormatBalanceHistory(9, []*model.JournalEntry{
		{Amount: -51, Kind: model.EntryWithdrawHold},
		{Amount: 60, Kind: model.EntryAdminAdd},
	})
	assert.Contains(t, history, "-51৳ উইথড্র")
	assert.Contains(t, history, "+60৳ এডমিন যোগ")

	rejected := &model.WithdrawRequest{ID: 4, Amount: 60, Status: model.StatusRejected}
	assert.Contains(t, FormatWithdrawDecidedUser(rejected), "ফেরত")
	assert.Equal(t, "🆔 4 Withdraw Rejected ❌", FormatWithdrawDecidedCard(rejected))
	assert.Equal(t, AnswerRejected, DecisionAnswer(model.StatusRejected))
	assert.Equal(t, AnswerApproved, DecisionAnswer(model.StatusApproved))
}
