// Package servicetest provides a recording Outbox for tests.
package servicetest

import (
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	tele "gopkg.in/telebot.v3"
)

// ErrDeliveryFailed is returned by a failing Outbox.
var ErrDeliveryFailed = errors.New("delivery failed")

// Sent is one recorded outbound message or edit.
type Sent struct {
	ChatID int64
	What   interface{}
	Opts   []interface{}
	Edit   tele.Editable
}

// Text returns the message text, or "" for non-text payloads.
func (s Sent) Text() string {
	if text, ok := s.What.(string); ok {
		return text
	}
	return ""
}

// Markup returns the attached reply markup, if any.
func (s Sent) Markup() *tele.ReplyMarkup {
	for _, opt := range s.Opts {
		if m, ok := opt.(*tele.ReplyMarkup); ok && m != nil {
			return m
		}
	}
	return nil
}

// Outbox records every Send and Edit call.
type Outbox struct {
	mu    sync.Mutex
	sent  []Sent
	edits []Sent
	fail  bool
}

// NewOutbox creates an empty recording Outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// FailAll makes every later call fail with ErrDeliveryFailed (still recorded).
func (o *Outbox) FailAll(fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = fail
}

// Send records a message.
func (o *Outbox) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	chatID, _ := strconv.ParseInt(to.Recipient(), 10, 64)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, Sent{ChatID: chatID, What: what, Opts: opts})
	if o.fail {
		return nil, ErrDeliveryFailed
	}
	return &tele.Message{ID: len(o.sent), Chat: &tele.Chat{ID: chatID}}, nil
}

// Edit records an in-place edit.
func (o *Outbox) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	_, chatID := msg.MessageSig()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.edits = append(o.edits, Sent{ChatID: chatID, What: what, Opts: opts, Edit: msg})
	if o.fail {
		return nil, ErrDeliveryFailed
	}
	return &tele.Message{Chat: &tele.Chat{ID: chatID}}, nil
}

// Sent returns all recorded sends.
func (o *Outbox) Sent() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Sent(nil), o.sent...)
}

// SentTo returns the recorded sends addressed to chatID.
func (o *Outbox) SentTo(chatID int64) []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Sent
	for _, s := range o.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent send to chatID.
func (o *Outbox) Last(chatID int64) (Sent, bool) {
	sent := o.SentTo(chatID)
	if len(sent) == 0 {
		return Sent{}, false
	}
	return sent[len(sent)-1], true
}

// Edits returns all recorded edits.
func (o *Outbox) Edits() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Sent(nil), o.edits...)
}

// Reset forgets everything recorded so far.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = nil
	o.edits = nil
}
