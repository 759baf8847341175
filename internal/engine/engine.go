// Package engine implements the conversation engine for GapBot.
//
// The engine is a function of (current user record, incoming message) that
// mutates the store and produces exactly one reply per message. It dispatches
// on the per-user conversation state first; keyword commands are only
// reachable from the idle state, so onboarding cannot be bypassed.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gap-labs/gapbot/internal/models"
	"github.com/gap-labs/gapbot/internal/store"
)

// urlRegex matches the first http(s) URL in a message body.
var urlRegex = regexp.MustCompile(`(?i)(https?://[^\s]+)`)

// reminderTimeRegex matches a strict two-digit 24-hour HH:MM time.
var reminderTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Engine drives the per-user conversation state machine over a Store.
type Engine struct {
	store store.Store
	now   func() time.Time // injectable clock for tests
}

// New creates an Engine backed by the given store.
func New(st store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

// NewWithClock creates an Engine with a fixed clock source for tests.
func NewWithClock(st store.Store, now func() time.Time) *Engine {
	return &Engine{store: st, now: now}
}

// today returns the current UTC calendar date.
func (e *Engine) today() string {
	return e.now().UTC().Format(models.DateLayout)
}

// extractURL returns the first http(s) URL in text, or "".
func extractURL(text string) string {
	return urlRegex.FindString(text)
}

// proofLink returns the submitted proof reference: attached media wins over a
// URL in the body. Empty when the message carries neither.
func proofLink(msg *models.IncomingMessage, text string) string {
	if msg.HasMedia() {
		return msg.MediaURL
	}
	return extractURL(text)
}

// maskHandle shows only the last four characters of a handle.
func maskHandle(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}

// HandleMessage processes one inbound message and returns the reply text.
// All store mutations are committed before the reply is returned.
func (e *Engine) HandleMessage(ctx context.Context, msg models.IncomingMessage) (string, error) {
	if msg.From == "" {
		return "", models.ErrEmptyRecipient
	}

	user, created, err := e.getOrCreateUser(msg.From)
	if err != nil {
		return "", err
	}
	if created {
		// First contact: greet and ask for a name; the next message fills it in.
		return "👋 Welcome to GAP, your accountability buddy!\nWhat should I call you?", nil
	}

	text := strings.TrimSpace(msg.Body)
	lower := strings.ToLower(text)

	// State-specific handling always takes priority over keyword commands.
	switch user.State {
	case models.StateAwaitingName:
		return e.handleAwaitingName(user, text)
	case models.StateAwaitingGoal:
		return e.handleAwaitingGoal(user, text)
	case models.StateAwaitingProof:
		return e.handleAwaitingProof(user, &msg, text, lower)
	}

	return e.dispatchCommand(user, &msg, text, lower)
}

// getOrCreateUser loads the user record, creating a fresh one in the
// awaiting_name state on first contact. The created flag tells the caller to
// greet instead of interpreting the message.
func (e *Engine) getOrCreateUser(phone string) (*models.User, bool, error) {
	user, err := e.store.GetUser(phone)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}
	user = &models.User{
		Phone:        phone,
		State:        models.StateAwaitingName,
		ReminderTime: models.DefaultReminderTime,
		Timezone:     models.DefaultTimezone,
	}
	if err := e.store.CreateUser(user); err != nil {
		return nil, false, fmt.Errorf("failed to create user %s: %w", phone, err)
	}
	slog.Info("Engine created new user", "phone", phone)
	return user, true, nil
}

func (e *Engine) handleAwaitingName(u *models.User, text string) (string, error) {
	u.Name = text
	u.State = models.StateAwaitingGoal
	if err := e.store.UpdateUser(u); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Nice to meet you, %s! 🎉\n\nWhat's the main goal you'd love to work on today?",
		u.DisplayName()), nil
}

func (e *Engine) handleAwaitingGoal(u *models.User, text string) (string, error) {
	if text == "" {
		return "Please enter your goal (just type it in).", nil
	}
	u.Goal = text
	u.State = models.StateIdle
	if err := e.store.UpdateUser(u); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"✅ Got it, %s! Your goal is:\n%s\n\n"+
			"Log your progress anytime with:\n"+
			"👉 'progress I did X today'\n\n"+
			"After logging, send a proof (image or link) to earn points.\n"+
			"Type 'help' to see all commands.",
		u.DisplayName(), u.Goal), nil
}

func (e *Engine) handleAwaitingProof(u *models.User, msg *models.IncomingMessage, text, lower string) (string, error) {
	pending, err := e.store.PendingProgressForDate(u.Phone, e.today())
	if err != nil {
		return "", err
	}
	if pending == nil {
		// Inconsistent state, reset to idle
		u.State = models.StateIdle
		if err := e.store.UpdateUser(u); err != nil {
			return "", err
		}
		return "Hmm, I don't see a pending progress entry for today. Try 'progress ...' again.", nil
	}

	link := proofLink(msg, text)
	if link == "" {
		if lower == "skip" {
			return e.rejectProof(u, pending)
		}
		return "I'm waiting for your proof. Please send an image or paste a link.\n" +
			"If you want to skip proof, reply 'skip' (no points will be awarded).", nil
	}

	if err := e.approveProof(u, pending, link); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"🧾 Proof received and verified ✅\n+%d points added. Total points: %d\nStreak: %d days\nGreat job! 🎉",
		models.ProofPoints, u.Points, u.Streak), nil
}

// approveProof accepts the submitted evidence: the entry is approved with the
// fixed award, the user's total increases, and the conversation returns to idle.
func (e *Engine) approveProof(u *models.User, pending *models.ProgressEntry, link string) error {
	pending.ProofURL = link
	pending.ProofStatus = models.ProofApproved
	pending.PointsAwarded = models.ProofPoints
	if err := e.store.UpdateProgress(pending); err != nil {
		return err
	}
	u.Points += models.ProofPoints
	u.State = models.StateIdle
	if err := e.store.UpdateUser(u); err != nil {
		return err
	}
	slog.Info("Engine approved proof", "phone", u.Phone, "entry_id", pending.ID, "points", u.Points)
	return nil
}

// rejectProof skips evidence for today's pending entry; no points are awarded.
func (e *Engine) rejectProof(u *models.User, pending *models.ProgressEntry) (string, error) {
	pending.ProofStatus = models.ProofRejected
	if err := e.store.UpdateProgress(pending); err != nil {
		return "", err
	}
	u.State = models.StateIdle
	if err := e.store.UpdateUser(u); err != nil {
		return "", err
	}
	return "Okay, skipped proof for today. No points awarded.\nYou can still log progress tomorrow. 👍", nil
}
