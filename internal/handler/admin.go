package handler

import (
	"context"

	"github.com/go-faster/errors"

	"earnbot/internal/conversation"
	"earnbot/internal/keyboard"
)

// Listing sizes of the administrator views.
const (
	recentRequestsLimit = 10
	latestUsersLimit    = 20
	pendingTasksLimit   = 15
	balanceHistoryLimit = 5
)

func (d *Dispatcher) handleAdminMenu(_ context.Context, ev Event, _ []string) error {
	d.reply(ev, conversation.Reply{Text: keyboard.MsgAdminMenu, Markup: keyboard.AdminMenu()})
	return nil
}

func (d *Dispatcher) startAdminFlow(flow conversation.Flow) func(context.Context, Event, []string) error {
	return func(ctx context.Context, ev Event, _ []string) error {
		reply, err := d.machine.StartAdmin(ctx, ev.ActorID, flow)
		if err != nil {
			return errors.Wrapf(err, "start %s", flow)
		}
		d.reply(ev, reply)
		return nil
	}
}

// handleAllRequests sends the latest withdrawal cards. Only Pending cards
// carry decision controls.
func (d *Dispatcher) handleAllRequests(ctx context.Context, ev Event, _ []string) error {
	requests, err := d.withdrawals.Recent(ctx, recentRequestsLimit)
	if err != nil {
		return errors.Wrap(err, "list withdraw requests")
	}
	if len(requests) == 0 {
		d.reply(ev, conversation.Reply{Text: keyboard.MsgNoRequests})
		return nil
	}
	for _, req := range requests {
		text, markup := keyboard.WithdrawCard(req)
		d.reply(ev, conversation.Reply{Text: text, Markup: markup})
	}
	return nil
}

func (d *Dispatcher) handleUserList(ctx context.Context, ev Event, _ []string) error {
	summary, err := d.users.Summary(ctx, latestUsersLimit)
	if err != nil {
		return errors.Wrap(err, "summarize users")
	}
	d.reply(ev, conversation.Reply{Text: keyboard.FormatUserList(summary)})
	return nil
}

func (d *Dispatcher) handleTaskRequests(ctx context.Context, ev Event, _ []string) error {
	tasks, err := d.tasks.Pending(ctx, pendingTasksLimit)
	if err != nil {
		return errors.Wrap(err, "list pending tasks")
	}
	if len(tasks) == 0 {
		d.reply(ev, conversation.Reply{Text: keyboard.MsgNoPendingTasks})
		return nil
	}
	for _, task := range tasks {
		text, markup := keyboard.TaskCard(task)
		d.reply(ev, conversation.Reply{Text: text, Markup: markup})
	}
	return nil
}
