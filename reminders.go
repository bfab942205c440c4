package main

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sitecrew/attendance-bot/internal/config"
)

type userLister interface {
	Users(ctx context.Context) ([]int64, error)
}

// reminder sends a daily prompt to every authorized user.
type reminder struct {
	api    sender
	users  userLister
	hour   int
	minute int
	text   string
	log    *slog.Logger
	now    func() time.Time
}

func newReminder(api sender, users userLister, cfg config.ReminderConfig, log *slog.Logger) *reminder {
	return &reminder{
		api:    api,
		users:  users,
		hour:   cfg.Hour,
		minute: cfg.Minute,
		text:   cfg.Text,
		log:    log.With("component", "reminder"),
		now:    time.Now,
	}
}

// nextRun returns the first hour:minute strictly after now, in now's zone.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

func (r *reminder) Run(ctx context.Context) error {
	for {
		next := nextRun(r.now(), r.hour, r.minute)
		r.log.Debug("next reminder", "at", next)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			r.sendAll(ctx)
		}
	}
}

// sendAll messages each authorized user. Private chat ids equal user ids.
func (r *reminder) sendAll(ctx context.Context) int {
	ids, err := r.users.Users(ctx)
	if err != nil {
		r.log.Error("listing users failed", "error", err)
		return 0
	}
	sent := 0
	for _, id := range ids {
		if _, err := r.api.Send(tgbotapi.NewMessage(id, r.text)); err != nil {
			r.log.Warn("reminder not delivered", "user", id, "error", err)
			continue
		}
		sent++
	}
	r.log.Info("reminders sent", "sent", sent, "users", len(ids))
	return sent
}
