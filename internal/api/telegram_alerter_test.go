package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:test-token"

type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []map[string]string
	failSend bool
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/bot" + testToken + "/getMe":
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Alarm","username":"alarm_bot"}}`))
		case "/bot" + testToken + "/sendMessage":
			if f.failSend {
				w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
				return
			}
			_ = r.ParseForm()
			f.mu.Lock()
			f.sent = append(f.sent, map[string]string{
				"chat_id": r.PostForm.Get("chat_id"),
				"text":    r.PostForm.Get("text"),
			})
			f.mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100,"type":"group"}}}`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func newTestAlerter(t *testing.T, fake *fakeBotAPI) *TelegramAlerter {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	alerter, err := NewTelegramAlerter(testToken, server.URL+"/bot%s/%s", -100, nil)
	require.NoError(t, err)
	return alerter
}

func TestTelegramAlerter_Alert(t *testing.T) {
	fake := &fakeBotAPI{}
	alerter := newTestAlerter(t, fake)

	err := alerter.Alert(context.Background(), "portal form not found")
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "-100", fake.sent[0]["chat_id"])
	assert.Equal(t, "portal form not found", fake.sent[0]["text"])
}

func TestTelegramAlerter_SendFails(t *testing.T) {
	fake := &fakeBotAPI{failSend: true}
	alerter := newTestAlerter(t, fake)

	err := alerter.Alert(context.Background(), "x")
	assert.Error(t, err)
}

func TestTelegramAlerter_CancelledContext(t *testing.T) {
	fake := &fakeBotAPI{}
	alerter := newTestAlerter(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, alerter.Alert(ctx, "x"), context.Canceled)
	assert.Empty(t, fake.sent)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("ب", maxMessageRunes+10)
	got := truncate(long, maxMessageRunes)
	assert.Equal(t, maxMessageRunes, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))

	assert.Equal(t, "short", truncate("short", maxMessageRunes))
}
