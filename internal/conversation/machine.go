package conversation

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"earnbot/internal/keyboard"
	"earnbot/internal/service"
)

// Reply is the answer sent back to the actor. An empty Text sends nothing.
type Reply struct {
	Text      string
	Markup    *tele.ReplyMarkup
	ParseMode tele.ParseMode
}

// Options returns the send options telebot expects for r.
func (r Reply) Options() []interface{} {
	var opts []interface{}
	if r.Markup != nil {
		opts = append(opts, r.Markup)
	}
	if r.ParseMode != tele.ModeDefault {
		opts = append(opts, r.ParseMode)
	}
	return opts
}

func text(msg string) Reply {
	return Reply{Text: msg}
}

// Machine advances open flows. Callers serialize events per actor.
type Machine struct {
	store       *Store
	users       *service.Users
	ledger      *service.Ledger
	withdrawals *service.Withdrawals
	settings    *service.Settings
	notifier    *service.Notifier
	adminID     int64
}

// NewMachine creates a new Machine.
func NewMachine(
	store *Store,
	users *service.Users,
	ledger *service.Ledger,
	withdrawals *service.Withdrawals,
	settings *service.Settings,
	notifier *service.Notifier,
	adminID int64,
) *Machine {
	return &Machine{
		store:       store,
		users:       users,
		ledger:      ledger,
		withdrawals: withdrawals,
		settings:    settings,
		notifier:    notifier,
		adminID:     adminID,
	}
}

// Open reports whether actor has a flow open in ns.
func (m *Machine) Open(actor int64, ns Namespace) bool {
	_, ok := m.store.Get(actor, ns)
	return ok
}

// State returns the open flow of actor in ns.
func (m *Machine) State(actor int64, ns Namespace) (State, bool) {
	return m.store.Get(actor, ns)
}

// Home returns the actor's home menu.
func (m *Machine) Home(actor int64) Reply {
	if actor == m.adminID {
		return Reply{Text: keyboard.MsgAdminMenu, Markup: keyboard.AdminMenu()}
	}
	return Reply{Text: keyboard.MsgMainMenu, Markup: keyboard.MainMenu()}
}

// Cancel closes every open flow of actor and returns the home menu.
func (m *Machine) Cancel(ctx context.Context, actor int64) Reply {
	if m.store.ClearAll(actor) {
		zerolog.Ctx(ctx).Debug().Int64("actor_id", actor).Msg("Conversation cancelled")
	}
	return m.Home(actor)
}

// StartWithdraw opens the withdrawal flow at the method step.
func (m *Machine) StartWithdraw(actor int64) Reply {
	m.store.Put(actor, State{Flow: FlowWithdraw, Step: StepMethod})
	return Reply{Text: keyboard.MsgChooseMethod, Markup: keyboard.MethodMenu()}
}

// StartAdmin opens an administrator flow, replacing any open one.
func (m *Machine) StartAdmin(ctx context.Context, actor int64, flow Flow) (Reply, error) {
	switch flow {
	case FlowAddBalance, FlowSetBalance, FlowReduceBalance:
		m.store.Put(actor, State{Flow: flow, Step: StepTarget})
		return text(keyboard.MsgAskTarget), nil
	case FlowTaskPrice:
		price, err := m.settings.TaskPrice(ctx)
		if err != nil {
			return Reply{}, err
		}
		m.store.Put(actor, State{Flow: flow, Step: StepPrice})
		return text(keyboard.FormatAskTaskPrice(price)), nil
	}
	return Reply{}, errors.Errorf("flow %q is not an admin flow", flow)
}

// Handle feeds input to the open flow of actor in ns. handled is false
// when no flow is open there. Input and business-rule problems become
// replies; only storage failures are returned as errors.
func (m *Machine) Handle(ctx context.Context, actor int64, ns Namespace, input string) (reply Reply, handled bool, err error) {
	st, ok := m.store.Get(actor, ns)
	if !ok {
		return Reply{}, false, nil
	}

	switch st.Flow {
	case FlowWithdraw:
		reply, err = m.withdrawStep(ctx, actor, st, input)
	case FlowAddBalance, FlowSetBalance, FlowReduceBalance:
		reply, err = m.balanceStep(ctx, actor, st, input)
	case FlowTaskPrice:
		reply, err = m.priceStep(ctx, actor, input)
	default:
		m.store.Clear(actor, ns)
		return Reply{}, false, nil
	}
	return reply, true, err
}

func (m *Machine) withdrawStep(ctx context.Context, actor int64, st State, input string) (Reply, error) {
	switch st.Step {
	case StepMethod:
		method, ok := keyboard.MethodFromLabel(input)
		if !ok {
			return text(keyboard.MsgInvalidMethod), nil
		}
		st.Method = method
		st.Step = StepNumber
		m.store.Put(actor, st)
		return Reply{Text: keyboard.FormatAskNumber(method), Markup: &tele.ReplyMarkup{RemoveKeyboard: true}}, nil

	case StepNumber:
		number := strings.TrimSpace(input)
		if number == "" {
			return text(keyboard.FormatAskNumber(st.Method)), nil
		}
		st.Number = number
		st.Step = StepAmount
		m.store.Put(actor, st)
		return text(keyboard.FormatAskWithdrawAmount(m.withdrawals.Minimum())), nil

	case StepAmount:
		amount, err := parseInt(input)
		if err != nil {
			return text(keyboard.MsgAmountNotNumber), nil
		}

		// The attempt ends here whatever the outcome.
		m.store.Clear(actor, NamespaceUser)

		_, err = m.withdrawals.Submit(ctx, actor, st.Method, st.Number, amount)
		var balErr *service.InsufficientBalanceError
		switch {
		case err == nil:
			return Reply{Text: keyboard.MsgMainMenu, Markup: keyboard.MainMenu()}, nil
		case errors.Is(err, service.ErrBelowMinimum):
			return Reply{Text: keyboard.FormatBelowMinimum(m.withdrawals.Minimum()), Markup: keyboard.MainMenu()}, nil
		case errors.As(err, &balErr):
			return Reply{Text: keyboard.FormatInsufficientBalance(balErr.Balance), Markup: keyboard.MainMenu()}, nil
		case errors.Is(err, service.ErrUserNotFound):
			return Reply{Text: keyboard.FormatInsufficientBalance(0), Markup: keyboard.MainMenu()}, nil
		default:
			return Reply{}, errors.Wrap(err, "submit withdraw")
		}
	}

	m.store.Clear(actor, NamespaceUser)
	return Reply{}, nil
}

func (m *Machine) balanceStep(ctx context.Context, actor int64, st State, input string) (Reply, error) {
	switch st.Step {
	case StepTarget:
		target, err := parseInt(input)
		if err != nil {
			return text(keyboard.MsgInvalidTarget), nil
		}
		user, err := m.users.Get(ctx, target)
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				return text(keyboard.MsgInvalidTarget), nil
			}
			return Reply{}, errors.Wrap(err, "get target")
		}
		st.TargetID = target
		st.PriorBalance = user.Balance
		st.Step = StepAmount
		m.store.Put(actor, st)
		return text(askAmount(st)), nil

	case StepAmount:
		amount, err := parseInt(input)
		if err != nil || amount < 0 || (amount == 0 && st.Flow != FlowSetBalance) {
			return text(keyboard.MsgInvalidNumber), nil
		}
		return m.applyBalance(ctx, actor, st, amount)
	}

	m.store.Clear(actor, NamespaceAdmin)
	return Reply{}, nil
}

func askAmount(st State) string {
	switch st.Flow {
	case FlowSetBalance:
		return keyboard.FormatAskSetAmount(st.PriorBalance)
	case FlowReduceBalance:
		return keyboard.MsgAskReduceAmount
	default:
		return keyboard.MsgAskAddAmount
	}
}

func (m *Machine) applyBalance(ctx context.Context, actor int64, st State, amount int64) (Reply, error) {
	var (
		adminText, userText string
		err                 error
	)
	switch st.Flow {
	case FlowAddBalance:
		_, err = m.ledger.AdminCredit(ctx, actor, st.TargetID, amount)
		adminText = keyboard.FormatAdminAdded(st.TargetID, amount)
		userText = keyboard.FormatUserCredited(amount)
	case FlowSetBalance:
		_, _, err = m.ledger.AdminSetBalance(ctx, actor, st.TargetID, amount)
		adminText = keyboard.FormatAdminSet(st.TargetID, amount)
		userText = keyboard.FormatUserSet(amount)
	case FlowReduceBalance:
		_, err = m.ledger.AdminDebit(ctx, actor, st.TargetID, amount)
		adminText = keyboard.FormatAdminReduced(st.TargetID, amount)
		userText = keyboard.FormatUserReduced(amount)
	}
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			st.Step = StepTarget
			st.TargetID, st.PriorBalance = 0, 0
			m.store.Put(actor, st)
			return text(keyboard.MsgInvalidTarget), nil
		}
		if errors.Is(err, service.ErrBalanceOverflow) {
			return text(keyboard.MsgAmountTooLarge), nil
		}
		m.store.Clear(actor, NamespaceAdmin)
		return Reply{}, errors.Wrapf(err, "%s for %d", st.Flow, st.TargetID)
	}

	m.store.Clear(actor, NamespaceAdmin)
	m.notifier.Send(st.TargetID, userText)
	return Reply{Text: adminText, Markup: keyboard.AdminMenu()}, nil
}

func (m *Machine) priceStep(ctx context.Context, actor int64, input string) (Reply, error) {
	price, err := service.ParsePrice(input)
	if err != nil {
		return text(keyboard.MsgInvalidPrice), nil
	}
	if err := m.settings.SetTaskPrice(ctx, price); err != nil {
		m.store.Clear(actor, NamespaceAdmin)
		return Reply{}, errors.Wrap(err, "set task price")
	}
	m.store.Clear(actor, NamespaceAdmin)

	zerolog.Ctx(ctx).Info().
		Int64("admin_id", actor).
		Str("price", price.String()).
		Msg("Task price updated")

	return Reply{Text: keyboard.FormatTaskPriceSet(price), Markup: keyboard.AdminMenu()}, nil
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
