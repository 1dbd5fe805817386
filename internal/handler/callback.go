package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"earnbot/internal/keyboard"
	"earnbot/internal/model"
	"earnbot/internal/service"
)

// Action is the decision an inline button asks for.
type Action int

const (
	ActionUnknown Action = iota
	ActionApproveWithdraw
	ActionRejectWithdraw
	ActionApproveTask
	ActionRejectTask
	ActionOpenTask
)

var callbackPrefixes = []struct {
	prefix string
	action Action
}{
	{keyboard.CallbackApprove, ActionApproveWithdraw},
	{keyboard.CallbackReject, ActionRejectWithdraw},
	{keyboard.CallbackTaskApprove, ActionApproveTask},
	{keyboard.CallbackTaskReject, ActionRejectTask},
	{keyboard.CallbackTaskOpen, ActionOpenTask},
}

// ErrMalformedToken is returned for a known prefix with a bad id.
var ErrMalformedToken = errors.New("malformed callback id")

// ParseCallback splits a "<prefix><id>" token. Unknown prefixes yield
// ActionUnknown; a known prefix with a non-decimal id yields ErrMalformedToken.
func ParseCallback(data string) (Action, int64, error) {
	data = strings.TrimPrefix(data, "\f")
	for _, p := range callbackPrefixes {
		rest, ok := strings.CutPrefix(data, p.prefix)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return p.action, 0, ErrMalformedToken
		}
		return p.action, id, nil
	}
	return ActionUnknown, 0, nil
}

// handleCallback runs an administrator decision. Non-administrators get an
// empty answer and a log line.
func (d *Dispatcher) handleCallback(ctx context.Context, ev Event) (Response, error) {
	logger := zerolog.Ctx(ctx)

	if !d.isAdmin(ev.ActorID) {
		logger.Warn().Str("data", ev.Data).Msg("Non-admin pressed a decision button")
		return Response{}, nil
	}

	action, id, err := ParseCallback(ev.Data)
	if err != nil {
		return Response{Answer: keyboard.AnswerInvalidID}, nil
	}

	switch action {
	case ActionApproveWithdraw, ActionRejectWithdraw:
		outcome := model.StatusApproved
		if action == ActionRejectWithdraw {
			outcome = model.StatusRejected
		}
		_, err := d.lifecycle.DecideWithdraw(ctx, id, outcome, ev.Card)
		return decisionResponse(outcome, err, keyboard.AnswerNotFound)

	case ActionApproveTask, ActionRejectTask:
		outcome := model.StatusApproved
		if action == ActionRejectTask {
			outcome = model.StatusRejected
		}
		_, err := d.lifecycle.DecideTask(ctx, id, outcome, ev.Card)
		return decisionResponse(outcome, err, keyboard.AnswerTaskNotFound)

	case ActionOpenTask:
		return d.openTask(ctx, id)
	}

	logger.Debug().Str("data", ev.Data).Msg("Ignoring unknown callback")
	return Response{}, nil
}

func decisionResponse(outcome model.Status, err error, notFound string) (Response, error) {
	switch {
	case err == nil:
		return Response{Answer: keyboard.DecisionAnswer(outcome)}, nil
	case errors.Is(err, service.ErrRequestNotFound):
		return Response{Answer: notFound}, nil
	case errors.Is(err, service.ErrAlreadyProcessed):
		return Response{Answer: keyboard.AnswerAlreadyProcessed}, nil
	}
	return Response{}, errors.Wrap(err, "decide")
}

// openTask re-sends a submission's file to the administrator.
func (d *Dispatcher) openTask(ctx context.Context, id int64) (Response, error) {
	task, err := d.lifecycle.OpenTask(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrRequestNotFound) {
			return Response{Answer: keyboard.AnswerFileNotFound}, nil
		}
		return Response{}, errors.Wrap(err, "open task")
	}
	if task.FileID == "" {
		return Response{Answer: keyboard.AnswerFileNotFound}, nil
	}

	doc := &tele.Document{
		File:     tele.File{FileID: task.FileID},
		FileName: task.FileName,
		Caption:  keyboard.FormatTaskFileCaption(task.ID),
	}
	d.notifier.Send(d.opts.AdminID, doc)
	return Response{Answer: keyboard.AnswerFileSent}, nil
}
