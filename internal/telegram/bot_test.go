package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"chefitup/internal/app"
	"chefitup/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	texts []string
	chats []int64
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.texts = append(f.texts, m.Text)
		f.chats = append(f.chats, m.ChatID)
	case tgbotapi.EditMessageTextConfig:
		f.texts = append(f.texts, m.Text)
		f.chats = append(f.chats, m.ChatID)
	}
	return tgbotapi.Message{MessageID: len(f.texts)}, nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

const (
	userID  = int64(42)
	adminID = int64(7)
)

func newTestBot(t *testing.T) (*Bot, *fakeSender) {
	t.Helper()
	cfg := &config.Config{
		DatabasePath:           filepath.Join(t.TempDir(), "chefitup.db"),
		InstacartBaseURL:       "http://127.0.0.1:1",
		TelegramAllowedUserIDs: []int64{userID, adminID},
		AdminTelegramID:        adminID,
	}
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	api := &fakeSender{}
	b := newBot(api, a, cfg, nil)
	b.now = func() time.Time { return time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) }
	return b, api
}

func message(from int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

func TestBot_PlanAndList(t *testing.T) {
	b, api := newTestBot(t)

	b.processMessage(message(userID, "/plan"))
	assert.Contains(t, api.last(), "Week of 2026-03-02")
	assert.Contains(t, api.last(), "Nothing planned yet")

	b.processMessage(message(userID, "/add mon dinner recipe-1 4"))
	assert.Contains(t, api.last(), "*Monday* Mar 2")
	assert.Contains(t, api.last(), "dinner:")
	assert.Contains(t, api.last(), "(4 servings)")

	b.processMessage(message(userID, "/add someday dinner recipe-1"))
	assert.Contains(t, api.last(), "Unknown day or meal slot")

	b.processMessage(message(userID, "/add tue lunch recipe-404"))
	assert.Contains(t, api.last(), "I don't know that recipe")

	b.processMessage(message(userID, "/list generate"))
	assert.Contains(t, api.last(), "🛒 *Shopping List*")
	assert.Contains(t, api.last(), "1. ▫️")

	b.processMessage(message(userID, "/item 2 bags coffee beans"))
	assert.Contains(t, api.last(), "2 bags coffee beans")

	b.processMessage(message(userID, "/check 1"))
	assert.Contains(t, api.last(), "1. ✅")
	assert.Contains(t, api.last(), "1 of")

	b.processMessage(message(userID, "/export"))
	assert.Contains(t, api.last(), "https://www.instacart.com/store/mock-cart")
	assert.Contains(t, api.last(), "mock link")

	b.processMessage(message(userID, "/clear"))
	assert.NotContains(t, api.last(), "✅")

	b.processMessage(message(userID, "/check 999"))
	assert.Contains(t, api.last(), "Your list has")

	b.processMessage(message(userID, "/remove monday dinner"))
	assert.Contains(t, api.last(), "Nothing planned yet")
}

func TestBot_Recipes(t *testing.T) {
	b, api := newTestBot(t)

	b.processMessage(message(userID, "/recipe recipe-1"))
	assert.Contains(t, api.last(), "*Ingredients*")
	assert.Contains(t, api.last(), "`recipe-1`")

	b.processMessage(message(userID, "/recipe nope"))
	assert.Contains(t, api.last(), "I don't know that recipe")

	before := api.count()
	b.processMessage(message(userID, "pasta"))
	assert.Equal(t, before+2, api.count(), "status message then edited result")
	assert.Contains(t, api.last(), "*Results for* _pasta_")

	b.processMessage(message(userID, "/generate a quick soup"))
	assert.Contains(t, api.last(), "not configured")
}

func TestBot_MetricsIsAdminOnly(t *testing.T) {
	b, api := newTestBot(t)

	b.processMessage(message(userID, "/metrics"))
	assert.Contains(t, api.last(), "Access Denied")

	b.processMessage(message(adminID, "/metrics"))
	assert.Contains(t, api.last(), "Usage & Health Report")
	assert.Contains(t, api.last(), "_No data yet_")
}

func TestBot_UnknownCommand(t *testing.T) {
	b, api := newTestBot(t)

	b.processMessage(message(userID, "/dance"))
	assert.Contains(t, api.last(), "Unknown command /dance")
}

func TestBot_DropsSupersededResult(t *testing.T) {
	b, api := newTestBot(t)
	c := &chat{bot: b, id: userID, user: userID}

	var stale context.Context
	b.runTracked(c, "working", func(ctx context.Context) string {
		stale = ctx
		_, _, done := b.requests.begin(c.id, time.Minute)
		defer done()
		return "old result"
	})

	assert.Equal(t, 1, api.count())
	assert.Equal(t, "working", api.last())
	assert.ErrorIs(t, stale.Err(), context.Canceled)
}

func TestBot_Webhook(t *testing.T) {
	b, api := newTestBot(t)
	h := b.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"update_id":1,"message":{"message_id":1,"from":{"id":999,"username":"stranger"},"chat":{"id":999},"text":"/plan"}}`
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, api.count())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "OK", rec.Body.String())
}

func TestParseItem(t *testing.T) {
	cases := []struct {
		in       string
		name     string
		quantity string
		unit     string
	}{
		{"milk", "milk", "", ""},
		{"2 eggs", "eggs", "2", ""},
		{"1/2 cup brown sugar", "brown sugar", "1/2", "cup"},
		{"olive oil", "olive oil", "", ""},
		{"3", "3", "", ""},
	}
	for _, tc := range cases {
		name, quantity, unit := parseItem(tc.in)
		assert.Equal(t, tc.name, name, tc.in)
		assert.Equal(t, tc.quantity, quantity, tc.in)
		assert.Equal(t, tc.unit, unit, tc.in)
	}
}

func TestTracker(t *testing.T) {
	tr := newTracker()

	first, t1, done1 := tr.begin(1, time.Minute)
	other, t3, done3 := tr.begin(2, time.Minute)
	defer done3()
	assert.True(t, tr.current(1, t1))

	second, t2, done2 := tr.begin(1, time.Minute)
	assert.ErrorIs(t, first.Err(), context.Canceled)
	assert.False(t, tr.current(1, t1))
	assert.True(t, tr.current(1, t2))
	assert.NoError(t, other.Err(), "other chats are untouched")
	assert.True(t, tr.current(2, t3))

	done1()
	assert.True(t, tr.current(1, t2), "finishing a stale request keeps the newer one")
	done2()
	assert.False(t, tr.current(1, t2))
	assert.ErrorIs(t, second.Err(), context.Canceled)
}
