package keyboard

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"earnbot/internal/model"
)

// Fixed texts.
const (
	MsgMainMenu         = "👋 মেনু থেকে একটি অপশন সিলেক্ট করুন:"
	MsgAdminMenu        = "🔐 Admin Panel:"
	MsgChooseMethod     = "💵 কোন পেমেন্ট মেথডে নিতে চান?"
	MsgInvalidMethod    = "❌ Bkash/Nagad সিলেক্ট করুন বা ⬅️ Back চাপুন।"
	MsgAmountNotNumber  = "❌ পরিমাণ সংখ্যায় দিন।"
	MsgUploadPrompt     = "📂 এখন আপনার `.xlsx` ফাইলটি আপলোড করুন।"
	MsgNotSpreadsheet   = "❌ অনুগ্রহ করে শুধুমাত্র `.xlsx` ফাইল আপলোড করুন।"
	MsgTaskSubmitted    = "✅ আপনার ফাইলটি সফলভাবে জমা হয়েছে, আমরা যাচাই করছি।"
	MsgNotAdmin         = "❌ আপনি এডমিন নন।"
	MsgNoRequests       = "📭 কোনো রিকোয়েস্ট পাওয়া যায়নি।"
	MsgNoPendingTasks   = "📭 কোনো Pending Task নেই।"
	MsgAskTarget        = "🎯 ইউজারের ID দিন:"
	MsgInvalidTarget    = "❌ সঠিক ইউজার ID দিন।"
	MsgAskAddAmount     = "💵 কত টাকা যোগ করবেন?"
	MsgAskReduceAmount  = "💵 কত টাকা কমাবেন?"
	MsgInvalidNumber    = "❌ সঠিক সংখ্যা দিন।"
	MsgAmountTooLarge   = "❌ পরিমাণ অনেক বড়, ছোট সংখ্যা দিন।"
	MsgInvalidPrice     = "❌ সঠিক সংখ্যা লিখুন। (উদাহরণ: 7)"
	MsgTaskApprovedUser = "✅ আপনার Gmail অ্যাপ্রুভ হয়েছে। আপনার Report কাউন্ট করে আপনার ব্যালান্স যুক্ত হয়ে যাবে ধন্যবাদ!"
	MsgTaskRejectedUser = "❌ দুঃখিত, আপনার Gmail রিজেক্ট করা হয়েছে।"
	MsgTryLater         = "⚠️ সাময়িক সমস্যা হয়েছে, কিছুক্ষণ পরে আবার চেষ্টা করুন।"
)

// Callback answers.
const (
	AnswerInvalidID        = "ভুল ID"
	AnswerNotFound         = "রিকোয়েস্ট পাওয়া যায়নি"
	AnswerTaskNotFound     = "টাস্ক পাওয়া যায়নি"
	AnswerFileNotFound     = "ফাইল পাওয়া যায়নি"
	AnswerAlreadyProcessed = "ইতিমধ্যে প্রসেস হয়েছে"
	AnswerApproved         = "Approved ✅"
	AnswerRejected         = "Rejected ❌"
	AnswerFileSent         = "ফাইল পাঠানো হলো"
)

// FormatBalance shows the user's balance.
func FormatBalance(balance int64) string {
	return fmt.Sprintf("💳 আপনার ব্যালেন্স: %d৳", balance)
}

var entryLabels = map[model.EntryKind]string{
	model.EntryCredit:         "জমা",
	model.EntryDebit:          "কর্তন",
	model.EntryAdminAdd:       "এডমিন যোগ",
	model.EntryAdminSet:       "এডমিন সেট",
	model.EntryAdminReduce:    "এডমিন কর্তন",
	model.EntryWithdrawHold:   "উইথড্র",
	model.EntryWithdrawRefund: "উইথড্র ফেরত",
	model.EntryReferralBonus:  "রেফার বোনাস",
	model.EntryJoinBonus:      "জয়েন বোনাস",
}

// FormatBalanceHistory shows the balance followed by the latest changes.
func FormatBalanceHistory(balance int64, recent []*model.JournalEntry) string {
	if len(recent) == 0 {
		return FormatBalance(balance)
	}
	var b strings.Builder
	b.WriteString(FormatBalance(balance))
	b.WriteString("\n\n🧾 সাম্প্রতিক লেনদেন:")
	for _, e := range recent {
		label, ok := entryLabels[e.Kind]
		if !ok {
			label = string(e.Kind)
		}
		fmt.Fprintf(&b, "\n%+d৳ %s", e.Amount, label)
	}
	return b.String()
}

// ReferLink builds the deep link that attaches the referrer on /start.
func ReferLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}

// FormatRefer shows the referral link, counters and rules.
func FormatRefer(link string, refCount, refEarn, percent, joinBonus int64) string {
	return fmt.Sprintf(
		"🔗 আপনার রেফার লিঙ্ক:\n%s\n\n"+
			"👥 মোট রেফার করেছে: %d\n"+
			"💰 রেফার থেকে আয়: %d৳\n\n"+
			"✅ নিয়ম: আপনার রেফার্ড ইউজারের ব্যালেন্স যখনই বাড়বে,\n"+
			"আপনি পাবেন সেই বৃদ্ধির %d%%।\n\n"+
			"🔔 চাইলে প্রত্যেক রেফারে সরাসরি %d৳ পান।",
		link, refCount, refEarn, percent, joinBonus,
	)
}

// FormatSupport points to the support group.
func FormatSupport(url string) string {
	return "ℹ️ যেকোনো সমস্যা হলে সাপোর্ট গ্রুপে জানাতে পারেন:\n👉 " + url
}

// FormatTaskOffer shows the current price per task and the guide link (Markdown).
func FormatTaskOffer(price decimal.Decimal, guideURL string) string {
	return fmt.Sprintf("💰আপনি প্রতি জিমেইল এ পাবেন : %s টাকা🎁\n📍 [কিভাবে কাজ করবেন?](%s)",
		price.String(), guideURL)
}

// FormatAskNumber asks for the payout destination.
func FormatAskNumber(m model.Method) string {
	return fmt.Sprintf("📱 আপনার %s নম্বর লিখুন:", MethodLabel(m))
}

// FormatAskWithdrawAmount asks for the withdrawal amount.
func FormatAskWithdrawAmount(minimum int64) string {
	return fmt.Sprintf("💵 কত টাকা Withdraw করবেন? (সর্বনিম্ন %d৳)", minimum)
}

// FormatBelowMinimum reports an amount under the withdrawal floor.
func FormatBelowMinimum(minimum int64) string {
	return fmt.Sprintf("⚠️ সর্বনিম্ন withdraw %d৳", minimum)
}

// FormatInsufficientBalance reports an amount above the current balance.
func FormatInsufficientBalance(balance int64) string {
	return fmt.Sprintf("❌ আপনার ব্যালেন্সে যথেষ্ট টাকা নেই (বর্তমান: %d৳)", balance)
}

// FormatWithdrawSubmitted confirms a withdrawal to its submitter.
func FormatWithdrawSubmitted(req *model.WithdrawRequest) string {
	return fmt.Sprintf("✅ Withdraw Request সাবমিট হয়েছে!\n💳 %s\n☎️ %s\n💵 %d৳",
		MethodLabel(req.Method), req.Number, req.Amount)
}

// FormatNewWithdrawAlert prefixes the decision card sent to the administrator.
func FormatNewWithdrawAlert(card string) string {
	return "🔔 নতুন Withdraw Request:\n" + card
}

// FormatNewTaskAlert tells the administrator about a new submission.
func FormatNewTaskAlert(task *model.TaskSubmission) string {
	return fmt.Sprintf("🆕 নতুন টাস্ক সাবমিশন\n👤 User: %d (@%s)\n📄 File: %s",
		task.UserID, task.Username, task.FileName)
}

// FormatUserList renders the administrator's user overview.
func FormatUserList(summary *model.UserSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 মোট ইউজার: %d\n💰 মোট ব্যালেন্স: %d৳\n\n", summary.TotalUsers, summary.TotalBalance)
	if len(summary.Latest) == 0 {
		b.WriteString("📭 এখনো কোনো ইউজার নেই।")
		return b.String()
	}
	fmt.Fprintf(&b, "📌 সর্বশেষ %d জন ইউজার:\n", len(summary.Latest))
	for _, u := range summary.Latest {
		fmt.Fprintf(&b, "🆔 %d | 💰 Balance: %d৳\n", u.UserID, u.Balance)
	}
	return b.String()
}

// FormatAskSetAmount asks for the new balance and shows the current one.
func FormatAskSetAmount(current int64) string {
	return fmt.Sprintf("💵 নতুন ব্যালেন্স কত হবে? (বর্তমান %d৳)", current)
}

// FormatAdminAdded confirms a credit to the administrator.
func FormatAdminAdded(target, amount int64) string {
	return fmt.Sprintf("✅ %d এর ব্যালেন্সে %d৳ যোগ হয়েছে।", target, amount)
}

// FormatUserCredited tells the target about a credit.
func FormatUserCredited(amount int64) string {
	return fmt.Sprintf("🎉 আপনার ব্যালেন্সে %d৳ যোগ হয়েছে।", amount)
}

// FormatAdminSet confirms a balance replacement to the administrator.
func FormatAdminSet(target, value int64) string {
	return fmt.Sprintf("✅ %d এর ব্যালেন্স %d৳ এ সেট হয়েছে।", target, value)
}

// FormatUserSet tells the target their balance was replaced.
func FormatUserSet(value int64) string {
	return fmt.Sprintf("⚠️ অ্যাডমিন আপনার ব্যালেন্স সেট করেছে: %d৳", value)
}

// FormatAdminReduced confirms a debit to the administrator.
func FormatAdminReduced(target, amount int64) string {
	return fmt.Sprintf("✅ %d এর ব্যালেন্স থেকে %d৳ কেটে নেওয়া হয়েছে।", target, amount)
}

// FormatUserReduced tells the target about a debit.
func FormatUserReduced(amount int64) string {
	return fmt.Sprintf("⚠️ আপনার ব্যালেন্স থেকে %d৳ কমানো হয়েছে।", amount)
}

// FormatAskTaskPrice shows the current price and asks for a new one.
func FormatAskTaskPrice(current decimal.Decimal) string {
	return fmt.Sprintf("🛠️ বর্তমান টাস্ক প্রাইস %s৳\nনতুন প্রাইস লিখুন:", current.String())
}

// FormatTaskPriceSet confirms the new price.
func FormatTaskPriceSet(price decimal.Decimal) string {
	return fmt.Sprintf("✅ টাস্ক প্রাইস এখন %s৳ করা হয়েছে।", price.String())
}

// FormatReferralJoined tells a referrer someone joined through their link.
func FormatReferralJoined(bonus int64) string {
	return fmt.Sprintf("🎉 আপনার রেফারে নতুন একজন জয়েন করেছে!\nআপনি বোনাস %d৳ পেয়েছেন।", bonus)
}

// FormatReferralBonus tells a referrer about a cascade bonus.
func FormatReferralBonus(subject, bonus, percent int64) string {
	return fmt.Sprintf("🎉 আপনার রেফার্ড %d এর ব্যালেন্স বৃদ্ধি পেয়েছে। আপনি পেলেন %d৳ (%d%%)", subject, bonus, percent)
}

// FormatWithdrawDecidedUser tells the submitter how their withdrawal was decided.
func FormatWithdrawDecidedUser(req *model.WithdrawRequest) string {
	if req.Status == model.StatusRejected {
		return fmt.Sprintf("❌ আপনার Withdraw Request %d৳ Rejected হয়েছে। টাকা ফেরত দেওয়া হয়েছে।", req.Amount)
	}
	return fmt.Sprintf("✅ আপনার Withdraw Request %d৳ Approved হয়েছে!", req.Amount)
}

// FormatWithdrawDecidedCard replaces a resolved withdrawal card.
func FormatWithdrawDecidedCard(req *model.WithdrawRequest) string {
	if req.Status == model.StatusRejected {
		return fmt.Sprintf("🆔 %d Withdraw Rejected ❌", req.ID)
	}
	return fmt.Sprintf("🆔 %d Withdraw Approved ✅", req.ID)
}

// FormatTaskDecidedUser tells the submitter how their task was decided.
func FormatTaskDecidedUser(task *model.TaskSubmission) string {
	if task.Status == model.StatusRejected {
		return MsgTaskRejectedUser
	}
	return MsgTaskApprovedUser
}

// FormatTaskDecidedCard replaces a resolved task card.
func FormatTaskDecidedCard(task *model.TaskSubmission) string {
	return fmt.Sprintf("🗂️ Task #%d → %s", task.ID, task.Status)
}

// FormatTaskFileCaption captions a re-sent task file.
func FormatTaskFileCaption(id int64) string {
	return fmt.Sprintf("🗂️ Task #%d file", id)
}

// DecisionAnswer is the short callback answer for a decided request.
func DecisionAnswer(status model.Status) string {
	if status == model.StatusRejected {
		return AnswerRejected
	}
	return AnswerApproved
}
