package service

import (
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"earnbot/internal/pkg/metrics"
)

// Outbox is the outbound side of the chat transport. *tele.Bot satisfies it.
type Outbox interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notice is one best-effort outbound message. When Edit is set the
// message it points to is rewritten instead of sending a new one.
type Notice struct {
	ChatID int64
	What   interface{}
	Opts   []interface{}
	Edit   tele.Editable
}

// Message builds a Notice that sends what to chatID.
func Message(chatID int64, what interface{}, opts ...interface{}) Notice {
	return Notice{ChatID: chatID, What: what, Opts: opts}
}

// EditMessage builds a Notice that rewrites msg in place.
func EditMessage(msg tele.Editable, what interface{}, opts ...interface{}) Notice {
	return Notice{Edit: msg, What: what, Opts: opts}
}

// Notifier delivers notices after the mutation they describe has committed.
// Delivery failures are logged and counted, never returned or retried.
type Notifier struct {
	out Outbox
}

// NewNotifier creates a Notifier over out.
func NewNotifier(out Outbox) *Notifier {
	return &Notifier{out: out}
}

// Deliver sends every notice in order.
func (n *Notifier) Deliver(notices ...Notice) {
	for _, notice := range notices {
		n.deliver(notice)
	}
}

// Send delivers a single message to chatID.
func (n *Notifier) Send(chatID int64, what interface{}, opts ...interface{}) {
	n.deliver(Message(chatID, what, opts...))
}

func (n *Notifier) deliver(notice Notice) {
	if n == nil || n.out == nil {
		return
	}

	var err error
	if notice.Edit != nil {
		_, err = n.out.Edit(notice.Edit, notice.What, notice.Opts...)
	} else {
		_, err = n.out.Send(tele.ChatID(notice.ChatID), notice.What, notice.Opts...)
	}
	if err != nil {
		metrics.NotificationFailures.Inc()
		log.Warn().
			Err(err).
			Int64("chat_id", notice.ChatID).
			Bool("edit", notice.Edit != nil).
			Msg("Notification delivery failed")
	}
}
