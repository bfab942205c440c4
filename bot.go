package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sitecrew/attendance-bot/internal/auth"
	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/workbook"
	"github.com/sitecrew/attendance-bot/internal/workflow"
)

const helpText = "Commands:\n" +
	"/start - record attendance for a date\n" +
	"/addworker - add a new worker\n" +
	"/report <date> - attendance sheet for a date\n" +
	"/cancel - stop the current operation"

// sender is the part of *tgbotapi.BotAPI the bot talks through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type rowSource interface {
	Rows(ctx context.Context, day dates.Day) ([]workbook.Row, error)
}

// Bot turns Telegram updates into workflow events and replies.
type Bot struct {
	api    sender
	engine *workflow.Engine
	gate   *auth.Gate
	rows   rowSource
	log    *slog.Logger

	wg sync.WaitGroup
	mu sync.Mutex
	// pending holds the queued updates per user. A key is present while
	// that user's worker is running.
	pending map[int64][]tgbotapi.Update
}

func NewBot(api sender, engine *workflow.Engine, gate *auth.Gate, rows rowSource, log *slog.Logger) *Bot {
	return &Bot{
		api:     api,
		engine:  engine,
		gate:    gate,
		rows:    rows,
		log:     log.With("component", "bot"),
		pending: make(map[int64][]tgbotapi.Update),
	}
}

// Run handles updates until ctx is done or the channel closes. Users are
// served concurrently; one user's updates are handled in arrival order.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

// dispatch queues the update behind the user's earlier ones and starts a
// worker for the user if none is running.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	userID := updateUser(update)
	b.mu.Lock()
	queue, running := b.pending[userID]
	b.pending[userID] = append(queue, update)
	b.mu.Unlock()
	if running {
		return
	}
	b.wg.Add(1)
	go b.drain(ctx, userID)
}

func (b *Bot) drain(ctx context.Context, userID int64) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		queue := b.pending[userID]
		if len(queue) == 0 {
			delete(b.pending, userID)
			b.mu.Unlock()
			return
		}
		next := queue[0]
		b.pending[userID] = queue[1:]
		b.mu.Unlock()

		b.handleUpdate(ctx, next)
	}
}

// updateUser returns the sender of the update, or 0 when it has none.
func updateUser(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panicked", "update", update.UpdateID, "panic", r)
		}
	}()

	switch {
	case update.Message != nil && update.Message.From != nil:
		if update.Message.IsCommand() {
			b.handleCommand(ctx, update.Message)
			return
		}
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleAction(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	b.log.Debug("command", "user", userID, "command", msg.Command())

	switch msg.Command() {
	case "start":
		b.reply(chatID, b.engine.Start(ctx, userID))
	case "cancel":
		b.reply(chatID, b.engine.Cancel(userID))
	case "addworker":
		b.reply(chatID, b.engine.StartEnrollment(ctx, userID))
	case "report":
		b.sendReport(ctx, msg)
	default:
		b.send(tgbotapi.NewMessage(chatID, helpText))
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	b.reply(msg.Chat.ID, b.engine.HandleText(ctx, msg.From.ID, text))
}

// handleAction answers the callback and edits the message that carried the
// button, so old keyboards disappear as the session moves on.
func (b *Bot) handleAction(ctx context.Context, query *tgbotapi.CallbackQuery) {
	r := b.engine.HandleAction(ctx, query.From.ID, query.Data)
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.Warn("answering callback failed", "user", query.From.ID, "error", err)
	}
	if query.Message == nil {
		return
	}
	edit, dropped := editMessage(query.Message.Chat.ID, query.Message.MessageID, r)
	b.logDropped(dropped)
	_, err := b.api.Send(edit)
	switch {
	case err == nil:
	case strings.Contains(err.Error(), "message is not modified"):
	default:
		// Old messages can no longer be edited.
		b.log.Debug("editing message failed, sending a new one", "error", err)
		b.reply(query.Message.Chat.ID, r)
	}
}

func (b *Bot) reply(chatID int64, r workflow.Reply) {
	msg, dropped := newMessage(chatID, r)
	b.logDropped(dropped)
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("sending message failed", "error", err)
	}
}

func (b *Bot) logDropped(labels []string) {
	if len(labels) > 0 {
		b.log.Warn("buttons dropped, callback data too long", "labels", labels)
	}
}
