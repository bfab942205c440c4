package main

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/attendance-bot/internal/auth"
	"github.com/sitecrew/attendance-bot/internal/config"
)

func TestNextRun(t *testing.T) {
	loc := time.FixedZone("IDT", 3*60*60)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"later today", time.Date(2025, 6, 1, 9, 0, 0, 0, loc), time.Date(2025, 6, 1, 18, 30, 0, 0, loc)},
		{"exactly now", time.Date(2025, 6, 1, 18, 30, 0, 0, loc), time.Date(2025, 6, 2, 18, 30, 0, 0, loc)},
		{"after", time.Date(2025, 6, 1, 20, 0, 0, 0, loc), time.Date(2025, 6, 2, 18, 30, 0, 0, loc)},
		{"month end", time.Date(2025, 6, 30, 23, 0, 0, 0, loc), time.Date(2025, 7, 1, 18, 30, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextRun(tt.now, 18, 30))
		})
	}
}

func TestReminderSendsToAuthorizedUsers(t *testing.T) {
	ctx := context.Background()
	gate := auth.NewGate("pw", auth.NewMemoryStore())
	require.NoError(t, gate.Grant(ctx, 11))
	require.NoError(t, gate.Grant(ctx, 12))

	api := &fakeAPI{}
	r := newReminder(api, gate, config.ReminderConfig{Hour: 18, Text: "record attendance"}, quiet())
	assert.Equal(t, 2, r.sendAll(ctx))

	var chats []int64
	for _, c := range api.sent {
		msg := c.(tgbotapi.MessageConfig)
		assert.Equal(t, "record attendance", msg.Text)
		chats = append(chats, msg.ChatID)
	}
	assert.ElementsMatch(t, []int64{11, 12}, chats)
}

func TestReminderRunStops(t *testing.T) {
	r := newReminder(&fakeAPI{}, auth.NewGate("pw", auth.NewMemoryStore()), config.ReminderConfig{Hour: 3}, quiet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, r.Run(ctx))
}
