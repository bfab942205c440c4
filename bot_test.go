package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sitecrew/attendance-bot/internal/attendance"
	"github.com/sitecrew/attendance-bot/internal/auth"
	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/storage"
	"github.com/sitecrew/attendance-bot/internal/workflow"
)

const (
	testUser     int64 = 7
	testPassword       = "secret"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	editErr  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := c.(tgbotapi.EditMessageTextConfig); ok && f.editErr != nil {
		return tgbotapi.Message{}, f.editErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) last(t *testing.T) tgbotapi.Chattable {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	switch c := f.last(t).(type) {
	case tgbotapi.MessageConfig:
		return c.Text
	case tgbotapi.EditMessageTextConfig:
		return c.Text
	}
	t.Fatalf("unexpected chattable %T", f.last(t))
	return ""
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func commandUpdate(text string) tgbotapi.Update {
	n := len(text)
	for i, r := range text {
		if r == ' ' {
			n = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: testUser},
		Chat:      &tgbotapi.Chat{ID: testUser},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: testUser},
		Chat:      &tgbotapi.Chat{ID: testUser},
		Text:      text,
	}}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUser},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: testUser}},
		Data:    data,
	}}
}

// juneWorkbook holds two workers dated 01/06/2025, Ahmed already present.
func juneWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet("יוני")
	require.NoError(t, err)
	day := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	rows := [][]interface{}{
		{"תאריך", "שם הפועל", "הגיע לעבודה?", "", "שכר ליום (₪)"},
		{day, "Ahmed", true, "", 250},
		{day, "Sami", false, "", 300},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("יוני", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type harness struct {
	api   *fakeAPI
	bot   *Bot
	gate  *auth.Gate
	store *storage.Memory
	svc   *attendance.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := &fakeAPI{}
	store := storage.NewMemory(juneWorkbook(t))
	svc := attendance.New(store, attendance.Options{Logger: quiet()})
	gate := auth.NewGate(testPassword, auth.NewMemoryStore())
	engine := workflow.NewEngine(gate, svc, workflow.NewSessions(), workflow.Config{}, quiet())
	return &harness{
		api:   api,
		bot:   NewBot(api, engine, gate, svc, quiet()),
		gate:  gate,
		store: store,
		svc:   svc,
	}
}

func (h *harness) handle(u tgbotapi.Update) {
	h.bot.handleUpdate(context.Background(), u)
}

func TestBotRecordsAttendance(t *testing.T) {
	h := newHarness(t)

	h.handle(commandUpdate("/start"))
	assert.Contains(t, h.api.lastText(t), "password")

	h.handle(textUpdate(testPassword))
	h.handle(textUpdate("2025-06-01"))
	msg, ok := h.api.last(t).(tgbotapi.MessageConfig)
	require.True(t, ok)
	kb, ok := msg.ReplyMarkup.(*tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Equal(t, "w:Ahmed", *kb.InlineKeyboard[0][0].CallbackData)

	h.handle(callbackUpdate("w:Sami"))
	edit, ok := h.api.last(t).(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 10, edit.MessageID)
	require.NotNil(t, edit.ReplyMarkup)

	h.handle(callbackUpdate("done"))
	h.handle(callbackUpdate("confirm"))
	edit, ok = h.api.last(t).(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Contains(t, edit.Text, "Sami")
	assert.Nil(t, edit.ReplyMarkup)
	assert.Len(t, h.api.requests, 3)

	rows, err := h.svc.Rows(context.Background(), dates.MustParse("2025-06-01"))
	require.NoError(t, err)
	for _, r := range rows {
		assert.True(t, r.Attended, r.Name)
	}
}

func TestBotEditFallback(t *testing.T) {
	h := newHarness(t)
	h.api.editErr = errors.New("Bad Request: message can't be edited")

	h.handle(callbackUpdate("done"))
	_, ok := h.api.last(t).(tgbotapi.MessageConfig)
	assert.True(t, ok)

	h.api.editErr = errors.New("Bad Request: message is not modified")
	before := len(h.api.sent)
	h.handle(callbackUpdate("done"))
	assert.Len(t, h.api.sent, before)
}

func TestBotCommands(t *testing.T) {
	h := newHarness(t)

	h.handle(commandUpdate("/help"))
	assert.Equal(t, helpText, h.api.lastText(t))

	h.handle(commandUpdate("/addworker"))
	assert.Equal(t, workflow.MsgNotAuthorized, h.api.lastText(t))

	h.handle(commandUpdate("/start"))
	h.handle(commandUpdate("/cancel"))
	assert.Contains(t, h.api.lastText(t), "cancelled")

	h.handle(textUpdate(testPassword))
	assert.Contains(t, h.api.lastText(t), "/start")
}

func TestBotAddWorker(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.gate.Grant(context.Background(), testUser))

	h.handle(commandUpdate("/addworker"))
	h.handle(textUpdate("Dana"))
	h.handle(textUpdate("320"))
	h.handle(textUpdate("01/06/2025"))
	assert.Contains(t, h.api.lastText(t), "Dana")

	names, err := h.svc.Candidates(context.Background(), dates.MustParse("2025-06-01"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ahmed", "Sami", "Dana"}, names)
}

func TestBotRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	updates := make(chan tgbotapi.Update, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx, updates) }()

	updates <- commandUpdate("/help")
	require.Eventually(t, func() bool {
		h.api.mu.Lock()
		defer h.api.mu.Unlock()
		return len(h.api.sent) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestBotRunKeepsPerUserOrder(t *testing.T) {
	h := newHarness(t)
	const n = 40
	updates := make(chan tgbotapi.Update, 2*n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			updates <- commandUpdate("/help")
		} else {
			updates <- commandUpdate("/cancel")
		}
		other := commandUpdate("/help")
		other.Message.From = &tgbotapi.User{ID: testUser + 1}
		other.Message.Chat = &tgbotapi.Chat{ID: testUser + 1}
		updates <- other
	}
	close(updates)

	require.NoError(t, h.bot.Run(context.Background(), updates))

	var texts []string
	for _, c := range h.api.sent {
		if msg := c.(tgbotapi.MessageConfig); msg.ChatID == testUser {
			texts = append(texts, msg.Text)
		}
	}
	require.Len(t, texts, n)
	for i, text := range texts {
		if i%2 == 0 {
			assert.Equal(t, helpText, text, i)
		} else {
			assert.Contains(t, text, "cancelled", i)
		}
	}
	assert.Len(t, h.api.sent, 2*n)
	assert.Empty(t, h.bot.pending)
}

func TestUpdateUser(t *testing.T) {
	assert.Equal(t, testUser, updateUser(textUpdate("hi")))
	assert.Equal(t, testUser, updateUser(callbackUpdate("done")))
	assert.Zero(t, updateUser(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}))
	assert.Zero(t, updateUser(tgbotapi.Update{}))
}

func TestBotIgnoresMessagesWithoutSender(t *testing.T) {
	h := newHarness(t)
	h.handle(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"}})
	h.handle(textUpdate("   "))
	assert.Empty(t, h.api.sent)
}
