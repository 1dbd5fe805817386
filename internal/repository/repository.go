// Package repository provides data access layer implementations.
package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"earnbot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("request not found")
	ErrSettingNotFound = errors.New("setting not found")
	ErrBalanceOverflow = errors.New("balance out of range")
)

// CheckedAdd returns a+b or ErrBalanceOverflow when the sum leaves int64.
func CheckedAdd(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrBalanceOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrBalanceOverflow when the difference leaves int64.
func CheckedSub(a, b int64) (int64, error) {
	diff := a - b
	if (b > 0 && diff > a) || (b < 0 && diff < a) {
		return 0, ErrBalanceOverflow
	}
	return diff, nil
}

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserStore persists user accounts and their balances.
type UserStore interface {
	// Ensure creates the user if missing. created reports whether a row was inserted.
	Ensure(ctx context.Context, userID int64) (user *model.User, created bool, err error)
	Get(ctx context.Context, userID int64) (*model.User, error)
	// GetForUpdate reads the user and row-locks it until the transaction ends.
	GetForUpdate(ctx context.Context, userID int64) (*model.User, error)
	AddBalance(ctx context.Context, userID int64, delta int64) (*model.User, error)
	SetBalance(ctx context.Context, userID int64, balance int64) (*model.User, error)
	// SetReferrer sets refer_by only while it is still empty.
	SetReferrer(ctx context.Context, userID int64, referrerID int64) (bool, error)
	// AddReferralReward credits balance and ref_earn by amount and bumps ref_count by joined.
	AddReferralReward(ctx context.Context, userID int64, amount int64, joined int64) (*model.User, error)
	Summary(ctx context.Context, limit int) (*model.UserSummary, error)
}

// WithdrawStore persists withdrawal requests.
type WithdrawStore interface {
	Create(ctx context.Context, userID int64, method model.Method, number string, amount int64) (*model.WithdrawRequest, error)
	Get(ctx context.Context, id int64) (*model.WithdrawRequest, error)
	GetForUpdate(ctx context.Context, id int64) (*model.WithdrawRequest, error)
	SetStatus(ctx context.Context, id int64, status model.Status) (*model.WithdrawRequest, error)
	Recent(ctx context.Context, limit int) ([]*model.WithdrawRequest, error)
}

// TaskStore persists task submissions.
type TaskStore interface {
	Create(ctx context.Context, userID int64, username, fileID, fileName string) (*model.TaskSubmission, error)
	Get(ctx context.Context, id int64) (*model.TaskSubmission, error)
	GetForUpdate(ctx context.Context, id int64) (*model.TaskSubmission, error)
	SetStatus(ctx context.Context, id int64, status model.Status) (*model.TaskSubmission, error)
	Pending(ctx context.Context, limit int) ([]*model.PendingTask, error)
}

// SettingStore persists key/value settings.
type SettingStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// JournalStore records every balance change.
type JournalStore interface {
	Append(ctx context.Context, userID, amount int64, kind model.EntryKind, ref int64) (*model.JournalEntry, error)
	ForUser(ctx context.Context, userID int64, limit int) ([]*model.JournalEntry, error)
	ForUserAndKind(ctx context.Context, userID int64, kind model.EntryKind, limit int) ([]*model.JournalEntry, error)
}

// Repos groups the stores bound to one connection or transaction.
type Repos interface {
	Users() UserStore
	Withdraws() WithdrawStore
	Tasks() TaskStore
	Settings() SettingStore
	Journal() JournalStore
}

// UnitOfWork exposes autocommit stores and runs fn inside one transaction.
// fn's error rolls the transaction back and is returned unchanged.
type UnitOfWork interface {
	Repos
	Do(ctx context.Context, fn func(tx Repos) error) error
}
