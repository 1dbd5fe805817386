// Package model defines the data models for the earnings bot.
package model

import "time"

// User represents a Telegram user account.
// Balance is non-negative by policy; the database does not enforce it.
type User struct {
	UserID    int64     `db:"user_id"`
	Balance   int64     `db:"balance"`
	ReferBy   *int64    `db:"refer_by"`
	RefCount  int64     `db:"ref_count"`
	RefEarn   int64     `db:"ref_earn"`
	CreatedAt time.Time `db:"created_at"`
}

// HasReferrer reports whether a referrer has been attached.
func (u *User) HasReferrer() bool {
	return u.ReferBy != nil && *u.ReferBy != 0
}

// Status is the review state shared by withdrawal requests and task submissions.
type Status string

// Review states. Approved and Rejected are terminal.
const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Method is a payout channel.
type Method string

// Supported payout channels.
const (
	MethodBkash Method = "Bkash"
	MethodNagad Method = "Nagad"
)

// Methods returns the supported payout channels in display order.
func Methods() []Method {
	return []Method{MethodBkash, MethodNagad}
}

// WithdrawRequest is a payout request; its amount is held from the balance at creation.
type WithdrawRequest struct {
	ID        int64      `db:"id"`
	UserID    int64      `db:"user_id"`
	Method    Method     `db:"method"`
	Number    string     `db:"number"`
	Amount    int64      `db:"amount"`
	Status    Status     `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
	DecidedAt *time.Time `db:"decided_at"`
}

// TaskSubmission is an uploaded spreadsheet waiting for review.
type TaskSubmission struct {
	ID        int64      `db:"id"`
	UserID    int64      `db:"user_id"`
	Username  string     `db:"username"`
	FileID    string     `db:"file_id"`
	FileName  string     `db:"file_name"`
	Status    Status     `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
	DecidedAt *time.Time `db:"decided_at"`
}

// PendingTask is a pending submission joined with its submitter's balance.
type PendingTask struct {
	TaskSubmission
	Balance int64 `db:"balance"`
}

// UserSummary aggregates the user table for the admin user list.
type UserSummary struct {
	TotalUsers   int64
	TotalBalance int64
	Latest       []*User
}

// EntryKind classifies a journal entry.
type EntryKind string

// Journal entry kinds.
const (
	EntryCredit         EntryKind = "credit"
	EntryDebit          EntryKind = "debit"
	EntryAdminAdd       EntryKind = "admin_add"
	EntryAdminSet       EntryKind = "admin_set"
	EntryAdminReduce    EntryKind = "admin_reduce"
	EntryWithdrawHold   EntryKind = "withdraw_hold"
	EntryWithdrawRefund EntryKind = "withdraw_refund"
	EntryReferralBonus  EntryKind = "referral_bonus"
	EntryJoinBonus      EntryKind = "join_bonus"
)

// JournalEntry records one balance change. Amount is signed.
// Ref points at what caused it: the withdrawal id for holds and refunds,
// the referred user for referral payouts and the administrator for admin
// operations. Zero means none.
type JournalEntry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Amount    int64     `db:"amount"`
	Kind      EntryKind `db:"kind"`
	Ref       int64     `db:"ref"`
	CreatedAt time.Time `db:"created_at"`
}

// Setting keys.
const (
	SettingTaskPrice = "task_price"
)
