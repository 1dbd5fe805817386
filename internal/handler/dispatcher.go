// Package handler routes inbound chat events to the conversation machine
// and the services.
package handler

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"earnbot/internal/conversation"
	"earnbot/internal/keyboard"
	"earnbot/internal/pkg/lock"
	"earnbot/internal/pkg/metrics"
	"earnbot/internal/service"
)

// lockWaitTimeout bounds how long an event waits behind the same actor's
// previous event.
const lockWaitTimeout = 30 * time.Second

// EventKind is the shape of an inbound event.
type EventKind string

const (
	EventText     EventKind = "text"
	EventDocument EventKind = "document"
	EventCallback EventKind = "callback"
)

// Event is one inbound update, already stripped of transport details.
type Event struct {
	// ID correlates log lines; Dispatch fills it when empty.
	ID       string
	Kind     EventKind
	ActorID  int64
	Username string

	// Text is the message text for EventText.
	Text string
	// File is the upload for EventDocument.
	File service.TaskFile
	// Data and Card are the token and source message for EventCallback.
	Data string
	Card tele.Editable
}

// Response is what the transport owes the actor besides sent messages.
type Response struct {
	// Answer is the short callback answer. Empty answers silently.
	Answer string
}

// Options holds the static values the dispatcher renders.
type Options struct {
	AdminID     int64
	BotUsername string
	SupportURL  string
	GuideURL    string
}

// Deps holds everything the dispatcher calls into.
type Deps struct {
	Options     Options
	Locks       *lock.ActorLock
	Machine     *conversation.Machine
	Users       *service.Users
	Ledger      *service.Ledger
	Withdrawals *service.Withdrawals
	Tasks       *service.Tasks
	Lifecycle   *service.Lifecycle
	Settings    *service.Settings
	Notifier    *service.Notifier
}

type route struct {
	handle    func(ctx context.Context, ev Event, args []string) error
	adminOnly bool
}

// Dispatcher serializes each actor's events and routes them.
type Dispatcher struct {
	opts        Options
	locks       *lock.ActorLock
	machine     *conversation.Machine
	users       *service.Users
	ledger      *service.Ledger
	withdrawals *service.Withdrawals
	tasks       *service.Tasks
	lifecycle   *service.Lifecycle
	settings    *service.Settings
	notifier    *service.Notifier

	routes map[Command]route
}

// New creates a new Dispatcher.
func New(deps Deps) *Dispatcher {
	locks := deps.Locks
	if locks == nil {
		locks = lock.NewActorLock()
	}
	d := &Dispatcher{
		opts:        deps.Options,
		locks:       locks,
		machine:     deps.Machine,
		users:       deps.Users,
		ledger:      deps.Ledger,
		withdrawals: deps.Withdrawals,
		tasks:       deps.Tasks,
		lifecycle:   deps.Lifecycle,
		settings:    deps.Settings,
		notifier:    deps.Notifier,
	}
	d.routes = map[Command]route{
		CmdStart:         {handle: d.handleStart},
		CmdCancel:        {handle: d.handleCancel},
		CmdBalance:       {handle: d.handleBalance},
		CmdRefer:         {handle: d.handleRefer},
		CmdWithdraw:      {handle: d.handleWithdraw},
		CmdCreateTask:    {handle: d.handleCreateTask},
		CmdSupport:       {handle: d.handleSupport},
		CmdAdmin:         {handle: d.handleAdminMenu, adminOnly: true},
		CmdAddBalance:    {handle: d.startAdminFlow(conversation.FlowAddBalance), adminOnly: true},
		CmdSetBalance:    {handle: d.startAdminFlow(conversation.FlowSetBalance), adminOnly: true},
		CmdReduceBalance: {handle: d.startAdminFlow(conversation.FlowReduceBalance), adminOnly: true},
		CmdSetTaskPrice:  {handle: d.startAdminFlow(conversation.FlowTaskPrice), adminOnly: true},
		CmdAllRequests:   {handle: d.handleAllRequests, adminOnly: true},
		CmdUserList:      {handle: d.handleUserList, adminOnly: true},
		CmdTaskRequests:  {handle: d.handleTaskRequests, adminOnly: true},
	}
	return d
}

// SetBotUsername sets the name used in referral links once it is known.
func (d *Dispatcher) SetBotUsername(name string) {
	d.opts.BotUsername = name
}

// isAdmin reports whether id is the configured administrator. An unset
// administrator grants nobody.
func (d *Dispatcher) isAdmin(id int64) bool {
	return d.opts.AdminID != 0 && id == d.opts.AdminID
}

// Dispatch handles one event while holding the actor's lock. Errors are
// storage failures; the actor has already been told to try later.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Response, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	logger := log.With().
		Str("event_id", ev.ID).
		Str("kind", string(ev.Kind)).
		Int64("actor_id", ev.ActorID).
		Logger()
	ctx = logger.WithContext(ctx)

	metrics.Events.WithLabelValues(string(ev.Kind)).Inc()

	lockCtx, cancel := context.WithTimeout(ctx, lockWaitTimeout)
	err := d.locks.LockContext(lockCtx, ev.ActorID)
	cancel()
	if err != nil {
		return d.fail(ctx, ev, errors.Wrap(err, "acquire actor lock"))
	}
	defer d.locks.Unlock(ev.ActorID)

	if _, _, err := d.users.Ensure(ctx, ev.ActorID); err != nil {
		return d.fail(ctx, ev, err)
	}

	var resp Response
	switch ev.Kind {
	case EventText:
		err = d.dispatchText(ctx, ev)
	case EventDocument:
		err = d.handleDocument(ctx, ev)
	case EventCallback:
		resp, err = d.handleCallback(ctx, ev)
	default:
		logger.Debug().Msg("Ignoring unsupported event")
	}
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	return resp, nil
}

func (d *Dispatcher) fail(ctx context.Context, ev Event, err error) (Response, error) {
	zerolog.Ctx(ctx).Error().Err(err).Msg("Event handling failed")
	if ev.Kind == EventCallback {
		return Response{Answer: keyboard.MsgTryLater}, err
	}
	d.notifier.Send(ev.ActorID, keyboard.MsgTryLater)
	return Response{}, err
}

// dispatchText routes text: cancel, then commands, then the open user
// flow, then the open admin flow. Anything else is ignored.
func (d *Dispatcher) dispatchText(ctx context.Context, ev Event) error {
	cmd, args := ParseCommand(ev.Text)
	if cmd != CmdNone {
		r := d.routes[cmd]
		if r.adminOnly && !d.isAdmin(ev.ActorID) {
			zerolog.Ctx(ctx).Warn().
				Str("command", cmd.String()).
				Msg("Non-admin attempted admin command")
			d.reply(ev, conversation.Reply{Text: keyboard.MsgNotAdmin})
			return nil
		}
		zerolog.Ctx(ctx).Debug().Str("command", cmd.String()).Msg("Routing command")
		return r.handle(ctx, ev, args)
	}

	reply, handled, err := d.machine.Handle(ctx, ev.ActorID, conversation.NamespaceUser, ev.Text)
	if !handled && err == nil && d.isAdmin(ev.ActorID) {
		reply, handled, err = d.machine.Handle(ctx, ev.ActorID, conversation.NamespaceAdmin, ev.Text)
	}
	if err != nil {
		return err
	}
	if !handled {
		zerolog.Ctx(ctx).Debug().Msg("Ignoring unmatched text")
		return nil
	}
	d.reply(ev, reply)
	return nil
}

func (d *Dispatcher) reply(ev Event, r conversation.Reply) {
	if r.Text == "" {
		return
	}
	d.notifier.Send(ev.ActorID, r.Text, r.Options()...)
}
