package service

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"

	"earnbot/internal/keyboard"
	"earnbot/internal/model"
	"earnbot/internal/pkg/metrics"
	"earnbot/internal/repository"
)

// ReferralPolicy configures the referral program.
type ReferralPolicy struct {
	// Percent of every balance increase paid to the referrer.
	Percent int64
	// JoinBonus is paid once when a referred user joins.
	JoinBonus int64
}

// ReferralBonus returns floor(delta*percent/100), or 0 for non-positive deltas.
// A percent above 100 pays nothing. The product is split around 100 so large
// deltas cannot overflow.
func ReferralBonus(delta, percent int64) int64 {
	if delta <= 0 || percent <= 0 || percent > 100 {
		return 0
	}
	return delta/100*percent + delta%100*percent/100
}

// Ledger mutates balances and runs the referral program.
type Ledger struct {
	uow      repository.UnitOfWork
	notifier *Notifier
	policy   ReferralPolicy
}

// NewLedger creates a new Ledger instance.
func NewLedger(uow repository.UnitOfWork, notifier *Notifier, policy ReferralPolicy) *Ledger {
	return &Ledger{
		uow:      uow,
		notifier: notifier,
		policy:   policy,
	}
}

// Policy returns the referral policy in effect.
func (l *Ledger) Policy() ReferralPolicy {
	return l.policy
}

// CreditTx adds amount to the user's balance inside tx and journals it.
func (l *Ledger) CreditTx(ctx context.Context, tx repository.Repos, userID, amount int64, kind model.EntryKind, ref int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return applyTx(ctx, tx, userID, amount, kind, ref)
}

// DebitTx subtracts amount from the user's balance inside tx and journals it.
// No floor is enforced here; callers check eligibility first.
func (l *Ledger) DebitTx(ctx context.Context, tx repository.Repos, userID, amount int64, kind model.EntryKind, ref int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return applyTx(ctx, tx, userID, -amount, kind, ref)
}

func applyTx(ctx context.Context, tx repository.Repos, userID, delta int64, kind model.EntryKind, ref int64) (*model.User, error) {
	current, err := tx.Users().GetForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := repository.CheckedAdd(current.Balance, delta); err != nil {
		return nil, err
	}
	user, err := tx.Users().AddBalance(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Journal().Append(ctx, userID, delta, kind, ref); err != nil {
		return nil, err
	}
	return user, nil
}

// Credit adds amount to the user's balance in its own transaction.
func (l *Ledger) Credit(ctx context.Context, userID, amount int64) (*model.User, error) {
	return l.apply(ctx, userID, amount, false, model.EntryCredit, 0)
}

// Debit subtracts amount from the user's balance in its own transaction.
func (l *Ledger) Debit(ctx context.Context, userID, amount int64) (*model.User, error) {
	return l.apply(ctx, userID, amount, true, model.EntryDebit, 0)
}

// apply credits or debits amount in its own transaction.
func (l *Ledger) apply(ctx context.Context, userID, amount int64, debit bool, kind model.EntryKind, ref int64) (*model.User, error) {
	var user *model.User
	err := l.uow.Do(ctx, func(tx repository.Repos) error {
		var err error
		if debit {
			user, err = l.DebitTx(ctx, tx, userID, amount, kind, ref)
		} else {
			user, err = l.CreditTx(ctx, tx, userID, amount, kind, ref)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetBalance replaces the user's balance and returns the delta against the
// balance read under row lock in the same transaction.
func (l *Ledger) SetBalance(ctx context.Context, userID, value int64) (*model.User, int64, error) {
	return l.setBalance(ctx, userID, value, 0)
}

func (l *Ledger) setBalance(ctx context.Context, userID, value, ref int64) (*model.User, int64, error) {
	if value < 0 {
		return nil, 0, ErrInvalidAmount
	}

	var (
		user  *model.User
		delta int64
	)
	err := l.uow.Do(ctx, func(tx repository.Repos) error {
		prior, err := tx.Users().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		delta, err = repository.CheckedSub(value, prior.Balance)
		if err != nil {
			return err
		}
		user, err = tx.Users().SetBalance(ctx, userID, value)
		if err != nil {
			return err
		}
		_, err = tx.Journal().Append(ctx, userID, delta, model.EntryAdminSet, ref)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return user, delta, nil
}

// History returns the user's most recent balance changes, newest first.
func (l *Ledger) History(ctx context.Context, userID int64, limit int) ([]*model.JournalEntry, error) {
	entries, err := l.uow.Journal().ForUser(ctx, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "read journal")
	}
	return entries, nil
}

// ApplyReferralBonusOnIncrease pays the user's referrer a share of delta.
// It is a no-op for non-positive deltas, users without a referrer and
// bonuses that round down to zero. The referrer is notified after commit.
func (l *Ledger) ApplyReferralBonusOnIncrease(ctx context.Context, userID, delta int64) (int64, error) {
	if delta <= 0 {
		return 0, nil
	}

	var (
		bonus      int64
		referrerID int64
	)
	err := l.uow.Do(ctx, func(tx repository.Repos) error {
		user, err := tx.Users().Get(ctx, userID)
		if err != nil {
			return err
		}
		if !user.HasReferrer() {
			return nil
		}
		bonus = ReferralBonus(delta, l.policy.Percent)
		if bonus == 0 {
			return nil
		}
		referrerID = *user.ReferBy
		if _, err := tx.Users().AddReferralReward(ctx, referrerID, bonus, 0); err != nil {
			return err
		}
		_, err = tx.Journal().Append(ctx, referrerID, bonus, model.EntryReferralBonus, userID)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "apply referral bonus")
	}
	if bonus == 0 {
		return 0, nil
	}

	metrics.ReferralBonus.Add(float64(bonus))
	log.Info().
		Int64("user_id", userID).
		Int64("referrer_id", referrerID).
		Int64("delta", delta).
		Int64("bonus", bonus).
		Msg("Referral bonus credited")

	l.notifier.Send(referrerID, keyboard.FormatReferralBonus(userID, bonus, l.policy.Percent))
	return bonus, nil
}

// AttachReferrer links userID to referrerID once and pays the flat join bonus.
// The referrer's row is created if needed. A second call returns
// ErrReferrerAlreadySet without mutating anything.
func (l *Ledger) AttachReferrer(ctx context.Context, userID, referrerID int64) error {
	if referrerID <= 0 {
		return ErrInvalidReferrer
	}
	if referrerID == userID {
		return ErrSelfReferral
	}

	err := l.uow.Do(ctx, func(tx repository.Repos) error {
		if _, _, err := tx.Users().Ensure(ctx, referrerID); err != nil {
			return err
		}
		if _, _, err := tx.Users().Ensure(ctx, userID); err != nil {
			return err
		}
		set, err := tx.Users().SetReferrer(ctx, userID, referrerID)
		if err != nil {
			return err
		}
		if !set {
			return ErrReferrerAlreadySet
		}
		if _, err := tx.Users().AddReferralReward(ctx, referrerID, l.policy.JoinBonus, 1); err != nil {
			return err
		}
		if l.policy.JoinBonus <= 0 {
			return nil
		}
		_, err = tx.Journal().Append(ctx, referrerID, l.policy.JoinBonus, model.EntryJoinBonus, userID)
		return err
	})
	if err != nil {
		return err
	}

	if l.policy.JoinBonus > 0 {
		metrics.ReferralBonus.Add(float64(l.policy.JoinBonus))
	}
	log.Info().
		Int64("user_id", userID).
		Int64("referrer_id", referrerID).
		Int64("bonus", l.policy.JoinBonus).
		Msg("Referrer attached")

	l.notifier.Send(referrerID, keyboard.FormatReferralJoined(l.policy.JoinBonus))
	return nil
}

// AdminCredit credits a user and then, as a separate transaction, pays the
// referral cascade. A failed cascade is logged and does not fail the credit.
func (l *Ledger) AdminCredit(ctx context.Context, adminID, userID, amount int64) (*model.User, error) {
	user, err := l.apply(ctx, userID, amount, false, model.EntryAdminAdd, adminID)
	if err != nil {
		return nil, err
	}
	logAdminOp(adminID, userID, amount, model.EntryAdminAdd)
	l.cascade(ctx, userID, amount)
	return user, nil
}

// AdminSetBalance replaces a user's balance and cascades on the increase.
func (l *Ledger) AdminSetBalance(ctx context.Context, adminID, userID, value int64) (*model.User, int64, error) {
	user, delta, err := l.setBalance(ctx, userID, value, adminID)
	if err != nil {
		return nil, 0, err
	}
	logAdminOp(adminID, userID, value, model.EntryAdminSet)
	l.cascade(ctx, userID, delta)
	return user, delta, nil
}

// AdminDebit debits a user. Decreases never cascade.
func (l *Ledger) AdminDebit(ctx context.Context, adminID, userID, amount int64) (*model.User, error) {
	user, err := l.apply(ctx, userID, amount, true, model.EntryAdminReduce, adminID)
	if err != nil {
		return nil, err
	}
	logAdminOp(adminID, userID, amount, model.EntryAdminReduce)
	return user, nil
}

func (l *Ledger) cascade(ctx context.Context, userID, delta int64) {
	if _, err := l.ApplyReferralBonusOnIncrease(ctx, userID, delta); err != nil {
		log.Error().
			Err(err).
			Int64("user_id", userID).
			Int64("delta", delta).
			Msg("Referral cascade failed after committed balance change")
	}
}

func logAdminOp(adminID, targetID, amount int64, operation model.EntryKind) {
	log.Info().
		Int64("admin_id", adminID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", string(operation)).
		Msg("Admin operation executed")
}
