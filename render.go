package main

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sitecrew/attendance-bot/internal/workflow"
)

// Telegram rejects callback data longer than this many bytes.
const maxCallbackData = 64

// keyboard converts reply buttons to an inline keyboard. Buttons whose
// payload would be rejected are left out and their labels returned.
func keyboard(rows [][]workflow.Button) (*tgbotapi.InlineKeyboardMarkup, []string) {
	var (
		out     [][]tgbotapi.InlineKeyboardButton
		dropped []string
	)
	for _, row := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			data := btn.Action.Encode()
			if data == "" || len(data) > maxCallbackData {
				dropped = append(dropped, btn.Label)
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, data))
		}
		if len(buttons) > 0 {
			out = append(out, buttons)
		}
	}
	if len(out) == 0 {
		return nil, dropped
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb, dropped
}

func newMessage(chatID int64, r workflow.Reply) (tgbotapi.MessageConfig, []string) {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	kb, dropped := keyboard(r.Buttons)
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	return msg, dropped
}

// editMessage replaces the text and keyboard of an earlier message. A reply
// without buttons clears the keyboard.
func editMessage(chatID int64, messageID int, r workflow.Reply) (tgbotapi.EditMessageTextConfig, []string) {
	kb, dropped := keyboard(r.Buttons)
	if kb == nil {
		return tgbotapi.NewEditMessageText(chatID, messageID, r.Text), dropped
	}
	return tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, r.Text, *kb), dropped
}
