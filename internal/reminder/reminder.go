// Package reminder implements the daily reminder sweep for GapBot.
//
// A sweep scans all user records and sends a reminder to each user whose
// stored reminder time exactly equals the current UTC wall-clock "HH:MM".
// Sweeps are triggered either by the in-process cron scheduler or externally
// via the /cron/remind endpoint; each invocation runs to completion once.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gap-labs/gapbot/internal/messaging"
	"github.com/gap-labs/gapbot/internal/models"
	"github.com/gap-labs/gapbot/internal/store"
)

// ClockLayout is the wall-clock format reminders are matched against.
const ClockLayout = "15:04"

// Sweeper scans users and fires reminders at matching times.
type Sweeper struct {
	store store.Store
	msg   messaging.Service
	now   func() time.Time // injectable clock for tests
}

// NewSweeper creates a Sweeper over the given store and messaging service.
func NewSweeper(st store.Store, msg messaging.Service) *Sweeper {
	return &Sweeper{store: st, msg: msg, now: time.Now}
}

// NewSweeperWithClock creates a Sweeper with a fixed clock source for tests.
func NewSweeperWithClock(st store.Store, msg messaging.Service, now func() time.Time) *Sweeper {
	return &Sweeper{store: st, msg: msg, now: now}
}

// Sweep sends a reminder to every user whose reminder time matches the current
// UTC "HH:MM" and returns the number sent. Send failures are logged and do not
// abort the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	clock := s.now().UTC().Format(ClockLayout)

	users, err := s.store.ListUsers()
	if err != nil {
		return 0, fmt.Errorf("failed to list users for reminder sweep: %w", err)
	}

	sent := 0
	for _, u := range users {
		reminderTime := u.ReminderTime
		if reminderTime == "" {
			reminderTime = models.DefaultReminderTime
		}
		if reminderTime != clock {
			continue
		}
		body := fmt.Sprintf(
			"⏰ Reminder, %s!\nLog your progress with 'progress ...' and send proof (image or link) to earn points.",
			u.DisplayName())
		if err := s.msg.SendMessage(ctx, u.Phone, body); err != nil {
			slog.Error("Sweeper failed to send reminder", "error", err, "phone", u.Phone)
			continue
		}
		sent++
	}

	slog.Info("Reminder sweep completed", "sent", sent, "time", clock)
	return sent, nil
}
