package service

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"

	"earnbot/internal/keyboard"
	"earnbot/internal/model"
	"earnbot/internal/pkg/metrics"
	"earnbot/internal/repository"
)

// Withdrawals takes payout requests and holds their amount.
type Withdrawals struct {
	uow      repository.UnitOfWork
	ledger   *Ledger
	notifier *Notifier
	adminID  int64
	minimum  int64
}

// NewWithdrawals creates a new Withdrawals instance.
func NewWithdrawals(uow repository.UnitOfWork, ledger *Ledger, notifier *Notifier, adminID, minimum int64) *Withdrawals {
	return &Withdrawals{
		uow:      uow,
		ledger:   ledger,
		notifier: notifier,
		adminID:  adminID,
		minimum:  minimum,
	}
}

// Minimum returns the smallest amount that may be withdrawn.
func (w *Withdrawals) Minimum() int64 {
	return w.minimum
}

// Submit creates a Pending withdrawal and debits its amount in one
// transaction. Amounts under the minimum fail with ErrBelowMinimum and
// amounts over the balance with *InsufficientBalanceError.
func (w *Withdrawals) Submit(ctx context.Context, userID int64, method model.Method, number string, amount int64) (*model.WithdrawRequest, error) {
	if method != model.MethodBkash && method != model.MethodNagad {
		return nil, ErrInvalidMethod
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrInvalidNumber
	}
	if amount < w.minimum {
		metrics.WithdrawRequests.WithLabelValues("below_minimum").Inc()
		return nil, ErrBelowMinimum
	}

	var req *model.WithdrawRequest
	err := w.uow.Do(ctx, func(tx repository.Repos) error {
		user, err := tx.Users().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if amount > user.Balance {
			return &InsufficientBalanceError{Balance: user.Balance, Amount: amount}
		}
		req, err = tx.Withdraws().Create(ctx, userID, method, number, amount)
		if err != nil {
			return err
		}
		_, err = w.ledger.DebitTx(ctx, tx, userID, amount, model.EntryWithdrawHold, req.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			metrics.WithdrawRequests.WithLabelValues("insufficient_balance").Inc()
		} else {
			metrics.WithdrawRequests.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.WithdrawRequests.WithLabelValues("submitted").Inc()

	log.Info().
		Int64("request_id", req.ID).
		Int64("user_id", userID).
		Str("method", string(method)).
		Int64("amount", amount).
		Msg("Withdraw request submitted")

	card, markup := keyboard.WithdrawCard(req)
	w.notifier.Deliver(
		Message(userID, keyboard.FormatWithdrawSubmitted(req)),
		Message(w.adminID, keyboard.FormatNewWithdrawAlert(card), markup),
	)

	return req, nil
}

// Recent returns the newest withdrawal requests first.
func (w *Withdrawals) Recent(ctx context.Context, limit int) ([]*model.WithdrawRequest, error) {
	return w.uow.Withdraws().Recent(ctx, limit)
}
