package service

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"earnbot/internal/keyboard"
	"earnbot/internal/model"
	"earnbot/internal/pkg/metrics"
	"earnbot/internal/repository"
)

// Request kinds reported in metrics and logs.
const (
	KindWithdraw = "withdraw"
	KindTask     = "task"
)

// TaskApprovalHook runs after a task approval commits. Crediting the
// submitter for approved work is left to the hook.
type TaskApprovalHook interface {
	OnTaskApproved(ctx context.Context, task *model.TaskSubmission) error
}

// TaskApprovalHookFunc adapts a function to TaskApprovalHook.
type TaskApprovalHookFunc func(ctx context.Context, task *model.TaskSubmission) error

// OnTaskApproved calls f.
func (f TaskApprovalHookFunc) OnTaskApproved(ctx context.Context, task *model.TaskSubmission) error {
	return f(ctx, task)
}

// noopTaskHook only records that an approved task awaits external crediting.
var noopTaskHook = TaskApprovalHookFunc(func(_ context.Context, task *model.TaskSubmission) error {
	log.Info().
		Int64("task_id", task.ID).
		Int64("user_id", task.UserID).
		Msg("Task approved, balance crediting handled outside the bot")
	return nil
})

// transition checks a Pending -> outcome move.
func transition(current, outcome model.Status) error {
	if outcome != model.StatusApproved && outcome != model.StatusRejected {
		return ErrInvalidOutcome
	}
	if current != model.StatusPending {
		return ErrAlreadyProcessed
	}
	return nil
}

func outcomeLabel(err error, outcome model.Status) string {
	switch {
	case err == nil:
		return strings.ToLower(string(outcome))
	case errors.Is(err, ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, ErrRequestNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Lifecycle moves withdrawal requests and task submissions out of Pending.
type Lifecycle struct {
	uow      repository.UnitOfWork
	ledger   *Ledger
	notifier *Notifier
	hook     TaskApprovalHook
}

// NewLifecycle creates a new Lifecycle. A nil hook logs approvals only.
func NewLifecycle(uow repository.UnitOfWork, ledger *Ledger, notifier *Notifier, hook TaskApprovalHook) *Lifecycle {
	if hook == nil {
		hook = noopTaskHook
	}
	return &Lifecycle{
		uow:      uow,
		ledger:   ledger,
		notifier: notifier,
		hook:     hook,
	}
}

// DecideWithdraw approves or rejects a Pending withdrawal. A rejection
// refunds the held amount in the same transaction. After commit the
// submitter is notified and card, when set, is rewritten in place.
func (m *Lifecycle) DecideWithdraw(ctx context.Context, id int64, outcome model.Status, card tele.Editable) (*model.WithdrawRequest, error) {
	var decided *model.WithdrawRequest
	err := m.uow.Do(ctx, func(tx repository.Repos) error {
		req, err := tx.Withdraws().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := transition(req.Status, outcome); err != nil {
			return err
		}
		decided, err = tx.Withdraws().SetStatus(ctx, id, outcome)
		if err != nil {
			return err
		}
		if outcome == model.StatusRejected {
			if _, err := m.ledger.CreditTx(ctx, tx, req.UserID, req.Amount, model.EntryWithdrawRefund, req.ID); err != nil {
				return err
			}
		}
		return nil
	})
	metrics.Decisions.WithLabelValues(KindWithdraw, outcomeLabel(err, outcome)).Inc()
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("request_id", decided.ID).
		Int64("user_id", decided.UserID).
		Int64("amount", decided.Amount).
		Str("status", string(decided.Status)).
		Msg("Withdraw request decided")

	notices := []Notice{Message(decided.UserID, keyboard.FormatWithdrawDecidedUser(decided))}
	if card != nil {
		notices = append(notices, EditMessage(card, keyboard.FormatWithdrawDecidedCard(decided)))
	}
	m.notifier.Deliver(notices...)

	return decided, nil
}

// DecideTask approves or rejects a Pending task submission. Approval fires
// the TaskApprovalHook after commit; hook errors are logged only.
func (m *Lifecycle) DecideTask(ctx context.Context, id int64, outcome model.Status, card tele.Editable) (*model.TaskSubmission, error) {
	var decided *model.TaskSubmission
	err := m.uow.Do(ctx, func(tx repository.Repos) error {
		task, err := tx.Tasks().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := transition(task.Status, outcome); err != nil {
			return err
		}
		decided, err = tx.Tasks().SetStatus(ctx, id, outcome)
		return err
	})
	metrics.Decisions.WithLabelValues(KindTask, outcomeLabel(err, outcome)).Inc()
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("task_id", decided.ID).
		Int64("user_id", decided.UserID).
		Str("status", string(decided.Status)).
		Msg("Task submission decided")

	if decided.Status == model.StatusApproved {
		if err := m.hook.OnTaskApproved(ctx, decided); err != nil {
			log.Error().Err(err).Int64("task_id", decided.ID).Msg("Task approval hook failed")
		}
	}

	notices := []Notice{Message(decided.UserID, keyboard.FormatTaskDecidedUser(decided))}
	if card != nil {
		notices = append(notices, EditMessage(card, keyboard.FormatTaskDecidedCard(decided)))
	}
	m.notifier.Deliver(notices...)

	return decided, nil
}

// OpenTask returns the stored submission so its file can be re-sent.
func (m *Lifecycle) OpenTask(ctx context.Context, id int64) (*model.TaskSubmission, error) {
	return m.uow.Tasks().Get(ctx, id)
}
