package engine

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/gap-labs/gapbot/internal/models"
)

// commandHandler mutates state as needed and returns the reply text.
type commandHandler func(u *models.User, msg *models.IncomingMessage, text string) (string, error)

// command pairs a match predicate with its handler. The dispatcher evaluates
// the table in order; the first match wins. Keyword matching is deliberately
// substring containment, not exact match ("hi" matches inside other words).
type command struct {
	name    string
	matches func(lower string) bool
	handle  commandHandler
}

func contains(keyword string) func(string) bool {
	return func(lower string) bool { return strings.Contains(lower, keyword) }
}

func prefix(keyword string) func(string) bool {
	return func(lower string) bool { return strings.HasPrefix(lower, keyword) }
}

// commands returns the keyword dispatch table in priority order.
func (e *Engine) commands() []command {
	return []command{
		{"help", contains("help"), e.cmdHelp},
		{"goal", prefix("goal"), e.cmdGoal},
		{"progress", prefix("progress"), e.cmdProgress},
		{"skip", func(lower string) bool { return lower == "skip" }, e.cmdSkip},
		{"status", contains("status"), e.cmdStatus},
		{"history", contains("history"), e.cmdHistory},
		{"summary", contains("summary"), e.cmdSummary},
		{"leaderboard", contains("leaderboard"), e.cmdLeaderboard},
		{"reminder", prefix("reminder"), e.cmdReminder},
		// Greeting comes last: "hi" is a substring of "history", so the
		// specific commands have to win first.
		{"hello", func(lower string) bool {
			return strings.Contains(lower, "hello") || strings.Contains(lower, "hi")
		}, e.cmdHello},
	}
}

// dispatchCommand handles an idle-state message: keyword table first, then the
// implicit proof-in-idle rule, then the fallback help prompt.
func (e *Engine) dispatchCommand(u *models.User, msg *models.IncomingMessage, text, lower string) (string, error) {
	for _, cmd := range e.commands() {
		if cmd.matches(lower) {
			slog.Debug("Engine dispatching command", "command", cmd.name, "phone", u.Phone)
			return cmd.handle(u, msg, text)
		}
	}

	// Image or link sent in idle: treat as late proof if a pending entry exists.
	if msg.HasMedia() || extractURL(text) != "" {
		return e.lateProof(u, msg, text)
	}

	return "🤔 I didn't get that. Type 'help' to see what I can do.", nil
}

func (e *Engine) cmdHelp(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	return "📝 Commands:\n" +
		"• goal <text> — set your goal\n" +
		"• progress <what you did> — log today's progress\n" +
		"• status — see your stats\n" +
		"• history — last 7 updates\n" +
		"• summary — 7-day summary\n" +
		"• leaderboard — top users\n" +
		"• reminder <HH:MM> — set daily reminder time (UTC)\n" +
		"• skip — skip proof (no points)\n", nil
}

func (e *Engine) cmdHello(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	return fmt.Sprintf(
		"👋 Hey %s!\n"+
			"Type 'progress <what you did>' to log today's progress.\n"+
			"Remember: send a proof (image or link) afterwards to earn points.",
		u.DisplayName()), nil
}

func (e *Engine) cmdGoal(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	goalText := strings.TrimSpace(text[len("goal"):])
	if goalText == "" {
		return "Please enter a goal, e.g., 'goal Read 10 pages'.", nil
	}
	u.Goal = goalText
	if err := e.store.UpdateUser(u); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Goal saved:\n%s", goalText), nil
}

func (e *Engine) cmdProgress(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	entryText := strings.TrimSpace(text[len("progress"):])
	today := e.today()

	if u.LastUpdate == today {
		// Already logged today. If a pending entry still lacks proof, steer
		// the user back into the proof flow instead of double-counting.
		pending, err := e.store.PendingProgressForDate(u.Phone, today)
		if err != nil {
			return "", err
		}
		if pending != nil {
			u.State = models.StateAwaitingProof
			if err := e.store.UpdateUser(u); err != nil {
				return "", err
			}
			return "You've already logged progress today. Please send proof (image or link) to earn points.", nil
		}
		return "You've already reported progress today. See you tomorrow! 📊", nil
	}

	if entryText == "" {
		entryText = "No details provided."
	}
	entry := &models.ProgressEntry{
		Phone:       u.Phone,
		Date:        today,
		EntryText:   entryText,
		ProofStatus: models.ProofPending,
	}
	if err := e.store.AddProgress(entry); err != nil {
		return "", err
	}
	u.Streak++
	u.LastUpdate = today
	u.State = models.StateAwaitingProof
	if err := e.store.UpdateUser(u); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"📈 Progress logged! 🎉\nStreak: %d days\n"+
			"Now send a proof (image or link). Points will be added after verification.",
		u.Streak), nil
}

func (e *Engine) cmdSkip(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	pending, err := e.store.PendingProgressForDate(u.Phone, e.today())
	if err != nil {
		return "", err
	}
	if pending == nil {
		return "There's no pending proof to skip today.", nil
	}
	return e.rejectProof(u, pending)
}

func (e *Engine) cmdStatus(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	goal := u.Goal
	if goal == "" {
		goal = "Not set"
	}
	reminder := u.ReminderTime
	if reminder == "" {
		reminder = models.DefaultReminderTime
	}
	return fmt.Sprintf(
		"📊 Your Status, %s:\nGoal: %s\nStreak: %d days\nPoints: %d\nReminder: %s (UTC)",
		u.DisplayName(), goal, u.Streak, u.Points, reminder), nil
}

func (e *Engine) cmdHistory(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	entries, err := e.store.RecentProgress(u.Phone, models.HistoryLimit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "🗒 No history yet. Use 'progress <text>' to log.", nil
	}
	var lines []string
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s [%s]", entry.Date, entry.EntryText, proofBadge(entry.ProofStatus)))
	}
	return "🗒 Last 7 updates:\n" + strings.Join(lines, "\n"), nil
}

// proofBadge maps a proof status to its history glyph.
func proofBadge(status models.ProofStatus) string {
	switch status {
	case models.ProofApproved:
		return "✅"
	case models.ProofPending:
		return "⏳"
	default:
		return "❌"
	}
}

func (e *Engine) cmdSummary(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	since := e.now().UTC().AddDate(0, 0, -(models.SummaryWindowDays - 1)).Format(models.DateLayout)
	entries, err := e.store.ProgressSince(u.Phone, since)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "📅 No progress in the last 7 days.", nil
	}

	checkins := len(entries)
	percent := math.Round(float64(checkins)/float64(models.SummaryWindowDays)*100*10) / 10

	var marks []string
	for _, entry := range entries {
		mark := "⏳"
		if entry.ProofStatus == models.ProofApproved {
			mark = "✅"
		}
		marks = append(marks, fmt.Sprintf("%s: %s", entry.Date, mark))
	}

	name := u.Name
	if name == "" {
		name = "you"
	}
	return fmt.Sprintf(
		"📅 Weekly Summary for %s:\n%s\n\nCheck-ins: %d/%d (%.1f%%)\nStreak: %d days\nPoints: %d",
		name, strings.Join(marks, "\n"), checkins, models.SummaryWindowDays, percent, u.Streak, u.Points), nil
}

func (e *Engine) cmdLeaderboard(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	top, err := e.store.TopUsersByPoints(models.LeaderboardLimit)
	if err != nil {
		return "", err
	}
	if len(top) == 0 {
		return "🏆 No leaderboard data yet.", nil
	}
	var lines []string
	for i, entry := range top {
		lines = append(lines, fmt.Sprintf("%d. %s | %d pts | %d🔥", i+1, maskHandle(entry.Phone), entry.Points, entry.Streak))
	}
	return "🏆 Leaderboard (Top 10):\n" + strings.Join(lines, "\n"), nil
}

func (e *Engine) cmdReminder(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	parts := strings.Fields(text)
	if len(parts) < 2 || !reminderTimeRegex.MatchString(parts[1]) {
		return "Use 'reminder HH:MM' in 24h format (UTC), e.g., 'reminder 21:00'.", nil
	}
	u.ReminderTime = parts[1]
	if err := e.store.UpdateUser(u); err != nil {
		return "", err
	}
	return fmt.Sprintf("🕘 Reminder time set to %s (UTC).", u.ReminderTime), nil
}

// lateProof handles media or a URL arriving in idle: if today's entry is still
// pending this counts as proof without an explicit state transition.
func (e *Engine) lateProof(u *models.User, msg *models.IncomingMessage, text string) (string, error) {
	pending, err := e.store.PendingProgressForDate(u.Phone, e.today())
	if err != nil {
		return "", err
	}
	if pending == nil {
		return "Thanks! I saved your message. If you meant this as proof, log progress first with 'progress ...'.", nil
	}
	if err := e.approveProof(u, pending, proofLink(msg, text)); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"🧾 Proof received and verified ✅\n+%d points added. Total points: %d\nStreak: %d days",
		models.ProofPoints, u.Points, u.Streak), nil
}
