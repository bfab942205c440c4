package main

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/attendance-bot/internal/workflow"
)

func TestKeyboard(t *testing.T) {
	long := strings.Repeat("א", 40)
	kb, dropped := keyboard([][]workflow.Button{
		{{Label: "Ahmed", Action: workflow.Action{Kind: workflow.ActionSelect, Name: "Ahmed"}}},
		{{Label: long, Action: workflow.Action{Kind: workflow.ActionSelect, Name: long}}},
		{{Label: "✅ Done", Action: workflow.Action{Kind: workflow.ActionDone}}},
	})
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "Ahmed", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "w:Ahmed", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "done", *kb.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, []string{long}, dropped)

	kb, dropped = keyboard(nil)
	assert.Nil(t, kb)
	assert.Empty(t, dropped)
}

func TestNewMessage(t *testing.T) {
	msg, _ := newMessage(5, workflow.Reply{Text: "hello"})
	assert.Equal(t, int64(5), msg.ChatID)
	assert.Nil(t, msg.ReplyMarkup)

	msg, _ = newMessage(5, workflow.Reply{
		Text:    "pick",
		Buttons: [][]workflow.Button{{{Label: "Back", Action: workflow.Action{Kind: workflow.ActionBack}}}},
	})
	kb, ok := msg.ReplyMarkup.(*tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "back", *kb.InlineKeyboard[0][0].CallbackData)
}

func TestEditMessage(t *testing.T) {
	edit, _ := editMessage(5, 9, workflow.Reply{Text: "saved", Done: true})
	assert.Equal(t, 9, edit.MessageID)
	assert.Equal(t, "saved", edit.Text)
	assert.Nil(t, edit.ReplyMarkup)

	edit, _ = editMessage(5, 9, workflow.Reply{
		Text:    "confirm?",
		Buttons: [][]workflow.Button{{{Label: "OK", Action: workflow.Action{Kind: workflow.ActionConfirm}}}},
	})
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, "confirm", *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}
