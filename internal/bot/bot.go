// Package bot adapts telebot updates to dispatcher events.
package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"earnbot/internal/config"
	"earnbot/internal/handler"
	"earnbot/internal/service"
)

// secretHeader carries the webhook secret token set at registration.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// NewClient creates the telebot client. In webhook mode the poller only
// registers the public URL; updates arrive through WebhookHandler.
func NewClient(cfg *config.BotConfig) (*tele.Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot token is required")
	}

	var poller tele.Poller
	switch cfg.Mode {
	case config.ModeWebhook:
		if cfg.WebhookURL == "" {
			return nil, errors.New("webhook url is required in webhook mode")
		}
		poller = &tele.Webhook{
			SecretToken:    cfg.WebhookSecret,
			AllowedUpdates: []string{"message", "callback_query"},
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	default:
		poller = &tele.LongPoller{Timeout: cfg.PollTimeout}
	}

	client, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: poller,
		OnError: func(err error, c tele.Context) {
			ev := log.Error().Err(err)
			if c != nil && c.Sender() != nil {
				ev = ev.Int64("user_id", c.Sender().ID)
			}
			ev.Msg("Telegram handler error")
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create bot")
	}
	return client, nil
}

// Bot wires the dispatcher onto a telebot client.
type Bot struct {
	bot        *tele.Bot
	cfg        *config.BotConfig
	dispatcher *handler.Dispatcher
}

// New registers middleware and handlers on client.
func New(client *tele.Bot, cfg *config.BotConfig, dispatcher *handler.Dispatcher) *Bot {
	b := &Bot{
		bot:        client,
		cfg:        cfg,
		dispatcher: dispatcher,
	}
	if client.Me != nil && client.Me.Username != "" {
		dispatcher.SetBotUsername(client.Me.Username)
	}

	b.registerMiddleware()
	b.registerHandlers()
	return b
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(PrivateOnlyMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers hands every text, document and button press to the
// dispatcher. Commands without their own handler fall through to OnText.
func (b *Bot) registerHandlers() {
	b.bot.Handle(tele.OnText, b.onUpdate)
	b.bot.Handle(tele.OnDocument, b.onUpdate)
	b.bot.Handle(tele.OnCallback, b.onUpdate)
}

func (b *Bot) onUpdate(c tele.Context) error {
	ev, ok := EventFromContext(c)
	if !ok {
		return nil
	}

	// Failures are logged and answered by the dispatcher.
	resp, _ := b.dispatcher.Dispatch(context.Background(), ev)
	if ev.Kind == handler.EventCallback {
		if err := c.Respond(&tele.CallbackResponse{Text: resp.Answer}); err != nil {
			log.Warn().Err(err).Int64("user_id", ev.ActorID).Msg("Failed to answer callback")
		}
	}
	return nil
}

// EventFromContext converts a telebot update into a dispatcher event.
// ok is false for updates the dispatcher does not handle.
func EventFromContext(c tele.Context) (handler.Event, bool) {
	sender := c.Sender()
	if sender == nil {
		return handler.Event{}, false
	}
	ev := handler.Event{ActorID: sender.ID, Username: sender.Username}

	if cb := c.Callback(); cb != nil {
		ev.Kind = handler.EventCallback
		ev.Data = strings.TrimPrefix(cb.Data, "\f")
		// A nil *tele.Message must not become a non-nil Editable.
		if cb.Message != nil {
			ev.Card = cb.Message
		}
		return ev, true
	}

	msg := c.Message()
	if msg == nil {
		return handler.Event{}, false
	}
	if doc := msg.Document; doc != nil {
		ev.Kind = handler.EventDocument
		ev.File = service.TaskFile{FileID: doc.FileID, FileName: doc.FileName, MIME: doc.MIME}
		return ev, true
	}
	if msg.Text != "" {
		ev.Kind = handler.EventText
		ev.Text = msg.Text
		return ev, true
	}
	return handler.Event{}, false
}

// WebhookHandler accepts updates pushed by Telegram and queues them for
// the running bot. Requests without the configured secret are refused.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.cfg.WebhookSecret != "" && r.Header.Get(secretHeader) != b.cfg.WebhookSecret {
			log.Warn().Str("remote", r.RemoteAddr).Msg("Webhook request with invalid secret")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var update tele.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			log.Warn().Err(err).Msg("Cannot decode webhook update")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		select {
		case b.bot.Updates <- update:
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
}

// Start runs the bot until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("mode", b.cfg.Mode).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// Client returns the underlying telebot instance.
func (b *Bot) Client() *tele.Bot {
	return b.bot
}
