package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gap-labs/gapbot/internal/models"
	"github.com/gap-labs/gapbot/internal/store"
)

// testClock lets tests advance the engine's calendar date.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time { return c.t }

func newTestEngine() (*Engine, *store.InMemoryStore, *testClock) {
	st := store.NewInMemoryStore()
	clock := &testClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(st, clock.now), st, clock
}

func seedIdleUser(t *testing.T, st store.Store, phone, name string) {
	t.Helper()
	u := &models.User{
		Phone:        phone,
		Name:         name,
		State:        models.StateIdle,
		ReminderTime: models.DefaultReminderTime,
		Timezone:     models.DefaultTimezone,
	}
	if err := st.CreateUser(u); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func send(t *testing.T, e *Engine, from, body string) string {
	t.Helper()
	reply, err := e.HandleMessage(context.Background(), models.IncomingMessage{From: from, Body: body})
	if err != nil {
		t.Fatalf("HandleMessage(%q) returned error: %v", body, err)
	}
	if reply == "" {
		t.Fatalf("HandleMessage(%q) returned empty reply", body)
	}
	return reply
}

func mustGetUser(t *testing.T, st store.Store, phone string) *models.User {
	t.Helper()
	u, err := st.GetUser(phone)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u == nil {
		t.Fatalf("user %s not found", phone)
	}
	return u
}

func TestOnboardingFlow(t *testing.T) {
	e, st, _ := newTestEngine()

	reply := send(t, e, "+100", "Hi")
	if !strings.Contains(reply, "What should I call you") {
		t.Errorf("first contact should prompt for name, got %q", reply)
	}
	u := mustGetUser(t, st, "+100")
	if u.State != models.StateAwaitingName {
		t.Errorf("state = %q, want awaiting_name", u.State)
	}
	if u.Points != 0 {
		t.Errorf("new user points = %d, want 0", u.Points)
	}

	reply = send(t, e, "+100", "Alex")
	if !strings.Contains(reply, "Nice to meet you, Alex") {
		t.Errorf("name reply = %q", reply)
	}
	u = mustGetUser(t, st, "+100")
	if u.Name != "Alex" || u.State != models.StateAwaitingGoal {
		t.Errorf("after name: name=%q state=%q", u.Name, u.State)
	}

	reply = send(t, e, "+100", "Run 5k")
	if !strings.Contains(reply, "Your goal is") {
		t.Errorf("goal reply = %q", reply)
	}
	u = mustGetUser(t, st, "+100")
	if u.Goal != "Run 5k" || u.State != models.StateIdle {
		t.Errorf("after goal: goal=%q state=%q", u.Goal, u.State)
	}
}

func TestOnboardingStateBeatsCommands(t *testing.T) {
	e, st, _ := newTestEngine()
	send(t, e, "+101", "Hi")
	send(t, e, "+101", "Sam")

	// Mid-onboarding "help" is a goal, not a command.
	send(t, e, "+101", "help")
	u := mustGetUser(t, st, "+101")
	if u.Goal != "help" || u.State != models.StateIdle {
		t.Errorf("state should win over commands: goal=%q state=%q", u.Goal, u.State)
	}
}

func TestEmptyGoalReprompts(t *testing.T) {
	e, st, _ := newTestEngine()
	send(t, e, "+102", "Hi")
	send(t, e, "+102", "Sam")

	reply := send(t, e, "+102", "   ")
	if !strings.Contains(reply, "Please enter your goal") {
		t.Errorf("empty goal reply = %q", reply)
	}
	u := mustGetUser(t, st, "+102")
	if u.State != models.StateAwaitingGoal {
		t.Errorf("state = %q, want awaiting_goal", u.State)
	}
}

func TestProgressCreatesPendingEntry(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+200", "Alex")

	reply := send(t, e, "+200", "progress did 10 pushups")
	if !strings.Contains(reply, "Progress logged") {
		t.Errorf("progress reply = %q", reply)
	}
	u := mustGetUser(t, st, "+200")
	if u.Streak != 1 || u.State != models.StateAwaitingProof || u.LastUpdate != "2025-03-10" {
		t.Errorf("after progress: streak=%d state=%q lastUpdate=%q", u.Streak, u.State, u.LastUpdate)
	}
	pending, err := st.PendingProgressForDate("+200", "2025-03-10")
	if err != nil {
		t.Fatalf("PendingProgressForDate failed: %v", err)
	}
	if pending == nil {
		t.Fatal("no pending entry created")
	}
	if pending.EntryText != "did 10 pushups" || pending.PointsAwarded != 0 {
		t.Errorf("entry = %+v", pending)
	}
}

func TestProgressEmptyTextUsesPlaceholder(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+201", "Alex")

	send(t, e, "+201", "progress")
	pending, _ := st.PendingProgressForDate("+201", "2025-03-10")
	if pending == nil || pending.EntryText != "No details provided." {
		t.Errorf("entry = %+v", pending)
	}
}

func TestProofLinkApproval(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+202", "Alex")
	send(t, e, "+202", "progress ran 5k")

	reply := send(t, e, "+202", "here: https://img.example/a.jpg")
	if !strings.Contains(reply, "+100 points added") {
		t.Errorf("proof reply = %q", reply)
	}
	u := mustGetUser(t, st, "+202")
	if u.Points != 100 || u.State != models.StateIdle {
		t.Errorf("after proof: points=%d state=%q", u.Points, u.State)
	}
	entries, _ := st.RecentProgress("+202", 1)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.ProofStatus != models.ProofApproved || entry.PointsAwarded != 100 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.ProofURL != "https://img.example/a.jpg" {
		t.Errorf("proof URL = %q", entry.ProofURL)
	}
}

func TestProofMediaApproval(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+203", "Alex")
	send(t, e, "+203", "progress meditated")

	msg := models.IncomingMessage{From: "+203", Body: "", NumMedia: 1, MediaURL: "https://media.twilio.example/abc"}
	reply, err := e.HandleMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if !strings.Contains(reply, "Proof received") {
		t.Errorf("media proof reply = %q", reply)
	}
	entries, _ := st.RecentProgress("+203", 1)
	if entries[0].ProofURL != "https://media.twilio.example/abc" {
		t.Errorf("media proof should take the attached reference, got %q", entries[0].ProofURL)
	}
}

func TestProofSkip(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+204", "Alex")
	send(t, e, "+204", "progress wrote a page")

	reply := send(t, e, "+204", "skip")
	if !strings.Contains(reply, "No points awarded") {
		t.Errorf("skip reply = %q", reply)
	}
	u := mustGetUser(t, st, "+204")
	if u.Points != 0 || u.State != models.StateIdle {
		t.Errorf("after skip: points=%d state=%q", u.Points, u.State)
	}
	entries, _ := st.RecentProgress("+204", 1)
	if entries[0].ProofStatus != models.ProofRejected || entries[0].PointsAwarded != 0 {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestAwaitingProofReprompts(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+205", "Alex")
	send(t, e, "+205", "progress read a chapter")

	reply := send(t, e, "+205", "I promise I did it")
	if !strings.Contains(reply, "waiting for your proof") {
		t.Errorf("reprompt reply = %q", reply)
	}
	u := mustGetUser(t, st, "+205")
	if u.State != models.StateAwaitingProof {
		t.Errorf("state = %q, want awaiting_proof", u.State)
	}
}

func TestAwaitingProofWithoutPendingResets(t *testing.T) {
	e, st, _ := newTestEngine()
	u := &models.User{Phone: "+206", Name: "Alex", State: models.StateAwaitingProof, ReminderTime: "21:00", Timezone: "UTC"}
	if err := st.CreateUser(u); err != nil {
		t.Fatal(err)
	}

	reply := send(t, e, "+206", "https://img.example/a.jpg")
	if !strings.Contains(reply, "pending progress entry") {
		t.Errorf("reset reply = %q", reply)
	}
	if mustGetUser(t, st, "+206").State != models.StateIdle {
		t.Error("inconsistent awaiting_proof should reset to idle")
	}
}

func TestProgressTwiceSameDay(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+207", "Alex")
	send(t, e, "+207", "progress x")
	send(t, e, "+207", "skip")

	reply := send(t, e, "+207", "progress x")
	if !strings.Contains(reply, "already reported progress today") {
		t.Errorf("second progress reply = %q", reply)
	}
	u := mustGetUser(t, st, "+207")
	if u.Streak != 1 {
		t.Errorf("streak = %d, want 1 (at most one increment per day)", u.Streak)
	}
	entries, _ := st.RecentProgress("+207", 10)
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d (no duplicate entries)", len(entries))
	}
}

func TestProgressTwiceSameDayWithPendingSteersToProof(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+208", "Alex")
	send(t, e, "+208", "progress x")

	// Drop back to idle without resolving the pending entry.
	u := mustGetUser(t, st, "+208")
	u.State = models.StateIdle
	if err := st.UpdateUser(u); err != nil {
		t.Fatal(err)
	}

	reply := send(t, e, "+208", "progress y")
	if !strings.Contains(reply, "already logged progress today") {
		t.Errorf("reply = %q", reply)
	}
	u = mustGetUser(t, st, "+208")
	if u.State != models.StateAwaitingProof || u.Streak != 1 {
		t.Errorf("state=%q streak=%d", u.State, u.Streak)
	}
}

func TestStreakIncrementsAcrossDays(t *testing.T) {
	e, st, clock := newTestEngine()
	seedIdleUser(t, st, "+209", "Alex")

	send(t, e, "+209", "progress day one")
	send(t, e, "+209", "skip")

	clock.t = clock.t.AddDate(0, 0, 1)
	send(t, e, "+209", "progress day two")

	u := mustGetUser(t, st, "+209")
	if u.Streak != 2 {
		t.Errorf("streak = %d, want 2", u.Streak)
	}
}

func TestImplicitProofInIdle(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+210", "Alex")
	send(t, e, "+210", "progress x")

	// Back to idle with the entry still pending.
	u := mustGetUser(t, st, "+210")
	u.State = models.StateIdle
	if err := st.UpdateUser(u); err != nil {
		t.Fatal(err)
	}

	reply := send(t, e, "+210", "https://img.example/late.jpg")
	if !strings.Contains(reply, "+100 points added") {
		t.Errorf("late proof reply = %q", reply)
	}
	u = mustGetUser(t, st, "+210")
	if u.Points != 100 {
		t.Errorf("points = %d, want 100", u.Points)
	}
}

func TestIdleLinkWithoutPending(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+211", "Alex")

	reply := send(t, e, "+211", "https://img.example/a.jpg")
	if !strings.Contains(reply, "log progress first") {
		t.Errorf("reply = %q", reply)
	}
	if mustGetUser(t, st, "+211").Points != 0 {
		t.Error("no points without a pending entry")
	}
}

func TestFallback(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+212", "Alex")

	reply := send(t, e, "+212", "xyzzy")
	if !strings.Contains(reply, "Type 'help'") {
		t.Errorf("fallback reply = %q", reply)
	}
}

func TestHelloGreetsByName(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+213", "Alex")

	reply := send(t, e, "+213", "hello there")
	if !strings.Contains(reply, "Hey Alex") {
		t.Errorf("greeting = %q", reply)
	}
}

func TestHistoryNotShadowedByHi(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+214", "Alex")
	send(t, e, "+214", "progress x")
	send(t, e, "+214", "skip")

	reply := send(t, e, "+214", "history")
	if !strings.Contains(reply, "Last 7 updates") {
		t.Errorf("history should not be greeted away, got %q", reply)
	}
	if !strings.Contains(reply, "❌") {
		t.Errorf("rejected entry should carry the rejected badge, got %q", reply)
	}
}

func TestGoalCommand(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+215", "Alex")

	reply := send(t, e, "+215", "goal Read 10 pages")
	if !strings.Contains(reply, "Goal saved") {
		t.Errorf("goal reply = %q", reply)
	}
	if mustGetUser(t, st, "+215").Goal != "Read 10 pages" {
		t.Error("goal not stored")
	}

	reply = send(t, e, "+215", "goal")
	if !strings.Contains(reply, "Please enter a goal") {
		t.Errorf("empty goal reply = %q", reply)
	}
}

func TestStatus(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+216", "Alex")
	send(t, e, "+216", "goal Run 5k")

	reply := send(t, e, "+216", "status")
	for _, want := range []string{"Alex", "Run 5k", "Streak: 0 days", "Points: 0", "21:00"} {
		if !strings.Contains(reply, want) {
			t.Errorf("status missing %q: %q", want, reply)
		}
	}
}

func TestSummaryPercent(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+217", "Alex")

	// Three check-ins inside the trailing 7-day window.
	for _, date := range []string{"2025-03-04", "2025-03-07", "2025-03-10"} {
		entry := &models.ProgressEntry{Phone: "+217", Date: date, EntryText: "x", ProofStatus: models.ProofApproved, PointsAwarded: 100}
		if err := st.AddProgress(entry); err != nil {
			t.Fatal(err)
		}
	}
	// Outside the window: must not count.
	old := &models.ProgressEntry{Phone: "+217", Date: "2025-03-03", EntryText: "x", ProofStatus: models.ProofApproved, PointsAwarded: 100}
	if err := st.AddProgress(old); err != nil {
		t.Fatal(err)
	}

	reply := send(t, e, "+217", "summary")
	if !strings.Contains(reply, "Check-ins: 3/7 (42.9%)") {
		t.Errorf("summary = %q", reply)
	}
	if strings.Contains(reply, "2025-03-03") {
		t.Errorf("summary should exclude entries outside the window: %q", reply)
	}
}

func TestSummaryFullWeek(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+218", "Alex")
	for i := 0; i < 7; i++ {
		date := time.Date(2025, 3, 4+i, 0, 0, 0, 0, time.UTC).Format(models.DateLayout)
		entry := &models.ProgressEntry{Phone: "+218", Date: date, EntryText: "x", ProofStatus: models.ProofPending}
		if err := st.AddProgress(entry); err != nil {
			t.Fatal(err)
		}
	}

	reply := send(t, e, "+218", "summary")
	if !strings.Contains(reply, "Check-ins: 7/7 (100.0%)") {
		t.Errorf("summary = %q", reply)
	}
}

func TestSummaryEmpty(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+219", "Alex")

	reply := send(t, e, "+219", "summary")
	if !strings.Contains(reply, "No progress in the last 7 days") {
		t.Errorf("summary = %q", reply)
	}
}

func TestLeaderboardTopTenMasked(t *testing.T) {
	e, st, _ := newTestEngine()
	for i := 0; i < 12; i++ {
		u := &models.User{
			Phone:        fmt.Sprintf("+1555000%04d", i),
			Name:         fmt.Sprintf("User%d", i),
			Points:       i * 10,
			State:        models.StateIdle,
			ReminderTime: "21:00",
			Timezone:     "UTC",
		}
		if err := st.CreateUser(u); err != nil {
			t.Fatal(err)
		}
	}

	reply := send(t, e, "+15550000000", "leaderboard")
	lines := strings.Split(reply, "\n")
	if len(lines) != 11 { // header + 10 rows
		t.Fatalf("expected 10 leaderboard rows, got %d lines: %q", len(lines), reply)
	}
	if !strings.Contains(lines[1], "0011 | 110 pts") {
		t.Errorf("top row = %q, want highest points with masked handle", lines[1])
	}
	if strings.Contains(reply, "+1555") {
		t.Errorf("leaderboard must not expose full handles: %q", reply)
	}
}

func TestReminderValidation(t *testing.T) {
	e, st, _ := newTestEngine()
	seedIdleUser(t, st, "+220", "Alex")

	reply := send(t, e, "+220", "reminder 9:00")
	if !strings.Contains(reply, "24h format") {
		t.Errorf("single-digit hour must be rejected, got %q", reply)
	}
	if mustGetUser(t, st, "+220").ReminderTime != "21:00" {
		t.Error("rejected reminder must not be stored")
	}

	reply = send(t, e, "+220", "reminder 09:00")
	if !strings.Contains(reply, "Reminder time set to 09:00") {
		t.Errorf("reply = %q", reply)
	}
	if mustGetUser(t, st, "+220").ReminderTime != "09:00" {
		t.Error("accepted reminder must be stored verbatim")
	}

	for _, bad := range []string{"reminder 24:00", "reminder 12:60", "reminder noon", "reminder"} {
		reply = send(t, e, "+220", bad)
		if !strings.Contains(reply, "24h format") {
			t.Errorf("%q should be rejected, got %q", bad, reply)
		}
	}
}

func TestApprovedImpliesFixedAward(t *testing.T) {
	e, st, clock := newTestEngine()
	seedIdleUser(t, st, "+221", "Alex")

	// Mixed week: approve, skip, approve.
	send(t, e, "+221", "progress a")
	send(t, e, "+221", "https://x.example/1")
	clock.t = clock.t.AddDate(0, 0, 1)
	send(t, e, "+221", "progress b")
	send(t, e, "+221", "skip")
	clock.t = clock.t.AddDate(0, 0, 1)
	send(t, e, "+221", "progress c")
	send(t, e, "+221", "https://x.example/2")

	entries, err := st.RecentProgress("+221", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		approved := entry.ProofStatus == models.ProofApproved
		if approved && entry.PointsAwarded != models.ProofPoints {
			t.Errorf("approved entry with award %d", entry.PointsAwarded)
		}
		if !approved && entry.PointsAwarded != 0 {
			t.Errorf("non-approved entry with award %d", entry.PointsAwarded)
		}
	}
	if u := mustGetUser(t, st, "+221"); u.Points != 200 || u.Streak != 3 {
		t.Errorf("points=%d streak=%d", u.Points, u.Streak)
	}
}

func TestExtractURL(t *testing.T) {
	if got := extractURL("see HTTPS://Img.Example/A.jpg now"); got != "HTTPS://Img.Example/A.jpg" {
		t.Errorf("extractURL = %q", got)
	}
	if got := extractURL("no link here"); got != "" {
		t.Errorf("extractURL = %q, want empty", got)
	}
}
