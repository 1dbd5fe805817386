package bot

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"earnbot/internal/config"
	"earnbot/internal/handler"
)

func TestEventFromContext(t *testing.T) {
	client := offlineBot(t)
	user := &tele.User{ID: 42, Username: "alice"}
	chat := &tele.Chat{ID: 42, Type: tele.ChatPrivate}

	t.Run("text", func(t *testing.T) {
		c := client.NewContext(tele.Update{Message: &tele.Message{Sender: user, Chat: chat, Text: "/start 7"}})
		ev, ok := EventFromContext(c)
		require.True(t, ok)
		assert.Equal(t, handler.EventText, ev.Kind)
		assert.Equal(t, int64(42), ev.ActorID)
		assert.Equal(t, "alice", ev.Username)
		assert.Equal(t, "/start 7", ev.Text)
	})

	t.Run("document", func(t *testing.T) {
		doc := &tele.Document{File: tele.File{FileID: "F1"}, FileName: "work.xlsx", MIME: "application/vnd.ms-excel"}
		c := client.NewContext(tele.Update{Message: &tele.Message{Sender: user, Chat: chat, Document: doc}})
		ev, ok := EventFromContext(c)
		require.True(t, ok)
		assert.Equal(t, handler.EventDocument, ev.Kind)
		assert.Equal(t, "F1", ev.File.FileID)
		assert.Equal(t, "work.xlsx", ev.File.FileName)
		assert.Equal(t, "application/vnd.ms-excel", ev.File.MIME)
	})

	t.Run("callback", func(t *testing.T) {
		msg := &tele.Message{ID: 10, Chat: chat}
		c := client.NewContext(tele.Update{Callback: &tele.Callback{Sender: user, Data: "\freject_3", Message: msg}})
		ev, ok := EventFromContext(c)
		require.True(t, ok)
		assert.Equal(t, handler.EventCallback, ev.Kind)
		assert.Equal(t, "reject_3", ev.Data)
		assert.NotNil(t, ev.Card)
	})

	t.Run("callback without message", func(t *testing.T) {
		c := client.NewContext(tele.Update{Callback: &tele.Callback{Sender: user, Data: "approve_1"}})
		ev, ok := EventFromContext(c)
		require.True(t, ok)
		assert.Nil(t, ev.Card)
	})

	t.Run("sticker is ignored", func(t *testing.T) {
		c := client.NewContext(tele.Update{Message: &tele.Message{Sender: user, Chat: chat, Sticker: &tele.Sticker{}}})
		_, ok := EventFromContext(c)
		assert.False(t, ok)
	})

	t.Run("no sender", func(t *testing.T) {
		_, ok := EventFromContext(client.NewContext(tele.Update{}))
		assert.False(t, ok)
	})
}

func TestWebhookHandler(t *testing.T) {
	client := offlineBot(t)
	b := &Bot{bot: client, cfg: &config.BotConfig{Mode: config.ModeWebhook, WebhookSecret: "s3cret"}}
	h := b.WebhookHandler()

	body := `{"update_id": 5, "message": {"message_id": 1, "text": "hi", "from": {"id": 42}, "chat": {"id": 42, "type": "private"}}}`

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set(secretHeader, "nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, client.Updates)
	})

	t.Run("bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{"))
		req.Header.Set(secretHeader, "s3cret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("queued", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set(secretHeader, "s3cret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, client.Updates, 1)
		update := <-client.Updates
		assert.Equal(t, 5, update.ID)
		require.NotNil(t, update.Message)
		assert.Equal(t, "hi", update.Message.Text)
	})
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(&config.BotConfig{})
	assert.Error(t, err)

	_, err = NewClient(&config.BotConfig{Token: "x", Mode: config.ModeWebhook})
	assert.Error(t, err)
}
