package service

import (
	"fmt"

	"github.com/go-faster/errors"

	"earnbot/internal/repository"
)

// Input validation errors. Callers re-prompt the same step.
var (
	ErrInvalidAmount  = errors.New("invalid amount: must be positive")
	ErrInvalidMethod  = errors.New("invalid payout method")
	ErrInvalidNumber  = errors.New("payout number is empty")
	ErrInvalidPrice   = errors.New("invalid price: must be a non-negative number")
	ErrInvalidOutcome = errors.New("invalid decision outcome")
	ErrNotSpreadsheet = errors.New("only .xlsx files are accepted")
)

// Business rule violations. Callers report and abandon the attempt.
var (
	ErrBelowMinimum        = errors.New("amount below withdrawal minimum")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyProcessed    = errors.New("request already processed")
	ErrSelfReferral        = errors.New("cannot refer yourself")
	ErrInvalidReferrer     = errors.New("invalid referrer id")
	ErrReferrerAlreadySet  = errors.New("referrer already set")
	ErrRequestNotFound     = repository.ErrRequestNotFound
	ErrUserNotFound        = repository.ErrUserNotFound
	ErrBalanceOverflow     = repository.ErrBalanceOverflow
)

// ErrNotAuthorized is returned when a non-administrator reaches an admin surface.
var ErrNotAuthorized = errors.New("not authorized")

// InsufficientBalanceError carries the balance observed when a hold was refused.
// It matches ErrInsufficientBalance with errors.Is.
type InsufficientBalanceError struct {
	Balance int64
	Amount  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d", e.Balance, e.Amount)
}

// Is reports whether target is ErrInsufficientBalance.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
