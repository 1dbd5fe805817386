package handler

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"earnbot/internal/conversation"
	"earnbot/internal/keyboard"
	"earnbot/internal/service"
)

// handleStart shows the main menu and attaches the referrer carried in
// "/start <referrer_id>". Referral problems never block the menu.
func (d *Dispatcher) handleStart(ctx context.Context, ev Event, args []string) error {
	if len(args) > 0 {
		d.attachReferrer(ctx, ev.ActorID, args[0])
	}
	d.reply(ev, conversation.Reply{Text: keyboard.MsgMainMenu, Markup: keyboard.MainMenu()})
	return nil
}

func (d *Dispatcher) attachReferrer(ctx context.Context, userID int64, arg string) {
	logger := zerolog.Ctx(ctx)

	referrerID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		logger.Debug().Str("arg", arg).Msg("Ignoring malformed referral argument")
		return
	}

	err = d.ledger.AttachReferrer(ctx, userID, referrerID)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrReferrerAlreadySet),
		errors.Is(err, service.ErrSelfReferral),
		errors.Is(err, service.ErrInvalidReferrer):
		logger.Debug().Err(err).Int64("referrer_id", referrerID).Msg("Referral not attached")
	default:
		logger.Error().Err(err).Int64("referrer_id", referrerID).Msg("Failed to attach referrer")
	}
}

func (d *Dispatcher) handleCancel(ctx context.Context, ev Event, _ []string) error {
	d.reply(ev, d.machine.Cancel(ctx, ev.ActorID))
	return nil
}

func (d *Dispatcher) handleBalance(ctx context.Context, ev Event, _ []string) error {
	user, err := d.users.Get(ctx, ev.ActorID)
	if err != nil {
		return errors.Wrap(err, "get balance")
	}
	recent, err := d.ledger.History(ctx, ev.ActorID, balanceHistoryLimit)
	if err != nil {
		return errors.Wrap(err, "get history")
	}
	d.reply(ev, conversation.Reply{Text: keyboard.FormatBalanceHistory(user.Balance, recent)})
	return nil
}

func (d *Dispatcher) handleRefer(ctx context.Context, ev Event, _ []string) error {
	user, err := d.users.Get(ctx, ev.ActorID)
	if err != nil {
		return errors.Wrap(err, "get referral stats")
	}
	policy := d.ledger.Policy()
	link := keyboard.ReferLink(d.opts.BotUsername, ev.ActorID)
	d.reply(ev, conversation.Reply{
		Text: keyboard.FormatRefer(link, user.RefCount, user.RefEarn, policy.Percent, policy.JoinBonus),
	})
	return nil
}

func (d *Dispatcher) handleWithdraw(_ context.Context, ev Event, _ []string) error {
	d.reply(ev, d.machine.StartWithdraw(ev.ActorID))
	return nil
}

func (d *Dispatcher) handleCreateTask(ctx context.Context, ev Event, _ []string) error {
	price, err := d.settings.TaskPrice(ctx)
	if err != nil {
		return errors.Wrap(err, "get task price")
	}
	d.reply(ev, conversation.Reply{
		Text:      keyboard.FormatTaskOffer(price, d.opts.GuideURL),
		ParseMode: tele.ModeMarkdown,
	})
	d.reply(ev, conversation.Reply{Text: keyboard.MsgUploadPrompt})
	return nil
}

func (d *Dispatcher) handleSupport(_ context.Context, ev Event, _ []string) error {
	d.reply(ev, conversation.Reply{Text: keyboard.FormatSupport(d.opts.SupportURL)})
	return nil
}

// handleDocument takes a task submission. Open flows are left alone.
func (d *Dispatcher) handleDocument(ctx context.Context, ev Event) error {
	_, err := d.tasks.Submit(ctx, ev.ActorID, ev.Username, ev.File)
	if errors.Is(err, service.ErrNotSpreadsheet) {
		d.reply(ev, conversation.Reply{Text: keyboard.MsgNotSpreadsheet})
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "submit task")
	}
	return nil
}
