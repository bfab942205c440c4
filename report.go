package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/workbook"
	"github.com/sitecrew/attendance-bot/internal/workflow"
)

const (
	msgReportBadDate     = "❌ Invalid date. Use /report YYYY-MM-DD"
	msgReportNoSheet     = "⚠️ No month sheet for %s."
	msgReportNoRows      = "No rows for %s."
	msgReportBuildFailed = "❌ Could not build the report."
)

// sendReport answers /report [date] with an xlsx export of the date's rows
// and a short summary as the caption.
func (b *Bot) sendReport(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ok, err := b.gate.IsAuthorized(ctx, msg.From.ID)
	if err != nil {
		b.log.Error("authorization lookup failed", "user", msg.From.ID, "error", err)
	}
	if !ok {
		b.send(tgbotapi.NewMessage(chatID, workflow.MsgNotAuthorized))
		return
	}

	day := dates.FromTime(time.Now())
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		if day, err = dates.Parse(arg); err != nil {
			b.send(tgbotapi.NewMessage(chatID, msgReportBadDate))
			return
		}
	}

	rows, err := b.rows.Rows(ctx, day)
	switch {
	case errors.Is(err, workbook.ErrSheetNotFound):
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(msgReportNoSheet, day)))
		return
	case err != nil:
		b.log.Error("report rows failed", "date", day.String(), "error", err)
		b.send(tgbotapi.NewMessage(chatID, workflow.MsgStorageFailure))
		return
	case len(rows) == 0:
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(msgReportNoRows, day)))
		return
	}

	data, err := workbook.BuildReport(day, rows)
	if err != nil {
		b.log.Error("building report failed", "date", day.String(), "error", err)
		b.send(tgbotapi.NewMessage(chatID, msgReportBuildFailed))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  reportFileName(day),
		Bytes: data,
	})
	doc.Caption = reportSummary(day, rows)
	b.send(doc)
}

func reportFileName(day dates.Day) string {
	return "attendance_" + day.Time().Format("2006-01-02") + ".xlsx"
}

func reportSummary(day dates.Day, rows []workbook.Row) string {
	var present []string
	for _, r := range rows {
		if r.Attended {
			present = append(present, r.Name)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s: %d of %d present", day, len(present), len(rows))
	for _, name := range present {
		b.WriteString("\n• ")
		b.WriteString(name)
	}
	return b.String()
}
