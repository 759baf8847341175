package reminder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gap-labs/gapbot/internal/messaging"
	"github.com/gap-labs/gapbot/internal/models"
	"github.com/gap-labs/gapbot/internal/store"
	"github.com/gap-labs/gapbot/internal/twilioclient"
)

func seedUser(t *testing.T, st store.Store, phone, name, reminderTime string) {
	t.Helper()
	u := &models.User{
		Phone:        phone,
		Name:         name,
		State:        models.StateIdle,
		ReminderTime: reminderTime,
		Timezone:     models.DefaultTimezone,
	}
	if err := st.CreateUser(u); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func TestSweepSendsOnlyExactMatches(t *testing.T) {
	st := store.NewInMemoryStore()
	mock := twilioclient.NewMockClient()
	svc := messaging.NewTwilioService(mock)

	seedUser(t, st, "+15550001111", "Alex", "21:00")
	seedUser(t, st, "+15550002222", "Sam", "09:30")
	seedUser(t, st, "+15550003333", "Kim", "21:00")

	at := func() time.Time { return time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC) }
	sweeper := NewSweeperWithClock(st, svc, at)

	sent, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
	if len(mock.SentMessages) != 2 {
		t.Fatalf("mock recorded %d messages", len(mock.SentMessages))
	}
	if !strings.Contains(mock.SentMessages[0].Body, "Reminder, Alex") {
		t.Errorf("body = %q", mock.SentMessages[0].Body)
	}
}

func TestSweepDefaultsEmptyReminderTime(t *testing.T) {
	st := store.NewInMemoryStore()
	mock := twilioclient.NewMockClient()
	svc := messaging.NewTwilioService(mock)

	seedUser(t, st, "+15550001111", "Alex", "")

	at := func() time.Time { return time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC) }
	sweeper := NewSweeperWithClock(st, svc, at)

	sent, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if sent != 1 {
		t.Errorf("empty reminder time should default to 21:00, sent = %d", sent)
	}
}

func TestSweepNoMatches(t *testing.T) {
	st := store.NewInMemoryStore()
	mock := twilioclient.NewMockClient()
	svc := messaging.NewTwilioService(mock)

	seedUser(t, st, "+15550001111", "Alex", "21:00")

	at := func() time.Time { return time.Date(2025, 3, 10, 8, 15, 0, 0, time.UTC) }
	sweeper := NewSweeperWithClock(st, svc, at)

	sent, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if sent != 0 || len(mock.SentMessages) != 0 {
		t.Errorf("sent = %d, messages = %d", sent, len(mock.SentMessages))
	}
}
