package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/workbook"
	"github.com/sitecrew/attendance-bot/internal/workflow"
)

func TestReportSummary(t *testing.T) {
	day := dates.MustParse("2025-06-01")
	got := reportSummary(day, []workbook.Row{
		{Name: "Ahmed", Attended: true},
		{Name: "Sami"},
		{Name: "Rabia", Attended: true},
	})
	assert.Equal(t, "📊 01/06/2025: 2 of 3 present\n• Ahmed\n• Rabia", got)
	assert.Equal(t, "attendance_2025-06-01.xlsx", reportFileName(day))
}

func TestReportCommand(t *testing.T) {
	h := newHarness(t)

	h.handle(commandUpdate("/report 2025-06-01"))
	assert.Equal(t, workflow.MsgNotAuthorized, h.api.lastText(t))

	require.NoError(t, h.gate.Grant(context.Background(), testUser))
	h.handle(commandUpdate("/report 2025-06-01"))
	doc, ok := h.api.last(t).(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Contains(t, doc.Caption, "1 of 2 present")
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "attendance_2025-06-01.xlsx", file.Name)

	f, err := excelize.OpenReader(bytes.NewReader(file.Bytes))
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 1)

	h.handle(commandUpdate("/report 2025-06-02"))
	assert.Equal(t, "No rows for 02/06/2025.", h.api.lastText(t))

	h.handle(commandUpdate("/report 2025-07-01"))
	assert.Contains(t, h.api.lastText(t), "No month sheet")

	h.handle(commandUpdate("/report someday"))
	assert.Equal(t, msgReportBadDate, h.api.lastText(t))

	h.store.FailDownload = errors.New("drive unavailable")
	h.handle(commandUpdate("/report 2025-06-01"))
	assert.Equal(t, workflow.MsgStorageFailure, h.api.lastText(t))
}
