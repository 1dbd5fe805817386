// Package keyboard builds the reply menus, decision cards and message texts.
package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"earnbot/internal/model"
)

// Main menu labels.
const (
	BtnBalance    = "💰 Balance"
	BtnRefer      = "👥 Refer"
	BtnWithdraw   = "💵 Withdraw"
	BtnCreateTask = "🎁 Create Gmail"
	BtnSupport    = "💌 Support group 🛑"
)

// Admin menu labels.
const (
	BtnAddBalance    = "➕ Add Balance"
	BtnSetBalance    = "✏️ Set Balance"
	BtnReduceBalance = "➖ Reduce Balance"
	BtnAllRequests   = "📋 All Requests"
	BtnUserList      = "👥 User List"
	BtnTaskRequests  = "📂 Task Requests"
	BtnSetTaskPrice  = "⚙️ Set Task Price"
	BtnBack          = "⬅️ Back"
)

// Payout method labels.
const (
	BtnBkash = "📲 Bkash"
	BtnNagad = "📲 Nagad"
)

// Callback data prefixes, followed by the decimal request id.
const (
	CallbackApprove     = "approve_"  // approve_12
	CallbackReject      = "reject_"   // reject_12
	CallbackTaskApprove = "tapprove_" // tapprove_3
	CallbackTaskReject  = "treject_"  // treject_3
	CallbackTaskOpen    = "topen_"    // topen_3
)

// MethodFromLabel maps a method button label to its payout method.
func MethodFromLabel(label string) (model.Method, bool) {
	switch strings.TrimSpace(label) {
	case BtnBkash:
		return model.MethodBkash, true
	case BtnNagad:
		return model.MethodNagad, true
	}
	return "", false
}

// MethodLabel returns the button label for a payout method.
func MethodLabel(m model.Method) string {
	switch m {
	case model.MethodBkash:
		return BtnBkash
	case model.MethodNagad:
		return BtnNagad
	}
	return string(m)
}

func replyMenu(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	var out []tele.Row
	for _, labels := range rows {
		var row tele.Row
		for _, label := range labels {
			row = append(row, markup.Text(label))
		}
		out = append(out, row)
	}
	markup.Reply(out...)
	return markup
}

// MainMenu is the ordinary user's home keyboard.
func MainMenu() *tele.ReplyMarkup {
	return replyMenu(
		[]string{BtnBalance, BtnRefer},
		[]string{BtnWithdraw},
		[]string{BtnCreateTask, BtnSupport},
	)
}

// AdminMenu is the administrator's home keyboard.
func AdminMenu() *tele.ReplyMarkup {
	return replyMenu(
		[]string{BtnAddBalance, BtnSetBalance},
		[]string{BtnReduceBalance, BtnAllRequests},
		[]string{BtnUserList, BtnTaskRequests},
		[]string{BtnSetTaskPrice},
		[]string{BtnBack},
	)
}

// MethodMenu offers the payout methods plus a way back.
func MethodMenu() *tele.ReplyMarkup {
	return replyMenu(
		[]string{BtnBkash, BtnNagad},
		[]string{BtnBack},
	)
}

// inlineRow builds an inline keyboard with raw callback data so the
// tokens reach the callback handler unprefixed.
func inlineRow(buttons ...tele.InlineButton) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{buttons}}
}

func token(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

// WithdrawCard renders a withdrawal decision card. Controls are attached
// only while the request is Pending.
func WithdrawCard(req *model.WithdrawRequest) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("🆔 %d | 👤 %d\n💳 %s (%s)\n💵 %d৳ | 📌 %s",
		req.ID, req.UserID, MethodLabel(req.Method), req.Number, req.Amount, req.Status)
	if req.Status != model.StatusPending {
		return text, nil
	}
	return text, inlineRow(
		tele.InlineButton{Text: "✅ Approve", Data: token(CallbackApprove, req.ID)},
		tele.InlineButton{Text: "❌ Reject", Data: token(CallbackReject, req.ID)},
	)
}

// TaskCard renders a pending task submission with open/approve/reject controls.
func TaskCard(task *model.PendingTask) (string, *tele.ReplyMarkup) {
	username := task.Username
	if username == "" {
		username = "—"
	}
	text := fmt.Sprintf("🗂️ Task #%d\n👤 User: %d @%s\n💰 Balance: %d৳",
		task.ID, task.UserID, username, task.Balance)
	return text, inlineRow(
		tele.InlineButton{Text: "📥 Open File", Data: token(CallbackTaskOpen, task.ID)},
		tele.InlineButton{Text: "✅ Approve", Data: token(CallbackTaskApprove, task.ID)},
		tele.InlineButton{Text: "❌ Reject", Data: token(CallbackTaskReject, task.ID)},
	)
}
