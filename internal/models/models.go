// Package models defines the core data structures for GapBot.
//
// It includes the user and progress records shared across modules, the closed
// conversation-state and proof-status enums, and the inbound webhook payload.
package models

import "errors"

// ConversationState tracks where a user is in the onboarding/proof dialogue.
type ConversationState string

const (
	// StateAwaitingName means the user has made first contact and we asked for a name.
	StateAwaitingName ConversationState = "awaiting_name"
	// StateAwaitingGoal means the name is stored and we asked for a goal.
	StateAwaitingGoal ConversationState = "awaiting_goal"
	// StateAwaitingProof means progress was logged and we are waiting for evidence.
	StateAwaitingProof ConversationState = "awaiting_proof"
	// StateIdle is the steady state from which all commands are reachable.
	StateIdle ConversationState = "idle"
)

// IsValidConversationState checks if the given state is one of the closed set.
func IsValidConversationState(s ConversationState) bool {
	switch s {
	case StateAwaitingName, StateAwaitingGoal, StateAwaitingProof, StateIdle:
		return true
	default:
		return false
	}
}

// ProofStatus is the verification status of a progress entry.
type ProofStatus string

const (
	// ProofPending means the entry is logged but no evidence has arrived yet.
	ProofPending ProofStatus = "pending"
	// ProofApproved means evidence was accepted and points were awarded.
	ProofApproved ProofStatus = "approved"
	// ProofRejected means the user skipped evidence; no points.
	ProofRejected ProofStatus = "rejected"
)

// Scoring and reporting constants
const (
	// ProofPoints is the fixed award for an approved proof.
	ProofPoints = 100
	// HistoryLimit is the number of entries shown by the history command.
	HistoryLimit = 7
	// SummaryWindowDays is the trailing window of the summary command.
	SummaryWindowDays = 7
	// LeaderboardLimit caps the leaderboard at the top N users by points.
	LeaderboardLimit = 10
	// DefaultReminderTime is the reminder time assigned to new users (UTC).
	DefaultReminderTime = "21:00"
	// DefaultTimezone is stored per user as a placeholder; reminders match UTC.
	DefaultTimezone = "UTC"
	// DateLayout is the calendar-date format used for all stored dates.
	DateLayout = "2006-01-02"
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrUserNotFound   = errors.New("user not found")
)

// User is one row per participant, keyed by the phone-equivalent handle.
type User struct {
	Phone        string            `json:"phone"`
	Name         string            `json:"name,omitempty"`
	Goal         string            `json:"goal,omitempty"`
	Points       int               `json:"points"`
	Streak       int               `json:"streak"`
	LastUpdate   string            `json:"last_update,omitempty"` // YYYY-MM-DD, empty when never logged
	State        ConversationState `json:"state"`
	ReminderTime string            `json:"reminder_time"`
	Timezone     string            `json:"timezone"`
}

// DisplayName returns the stored name or a friendly placeholder.
func (u *User) DisplayName() string {
	if u.Name == "" {
		return "friend"
	}
	return u.Name
}

// ProgressEntry is one row per logged progress action. Entries are append-only;
// only the proof fields mutate after creation, and only while pending.
type ProgressEntry struct {
	ID            int64       `json:"id"`
	Phone         string      `json:"phone"`
	Date          string      `json:"date"` // YYYY-MM-DD (UTC)
	EntryText     string      `json:"entry_text"`
	ProofURL      string      `json:"proof_url,omitempty"`
	ProofStatus   ProofStatus `json:"proof_status"`
	PointsAwarded int         `json:"points_awarded"`
}

// IncomingMessage is the inbound webhook payload from the messaging transport.
type IncomingMessage struct {
	From     string
	Body     string
	NumMedia int
	MediaURL string // first attached media reference, if any
}

// HasMedia reports whether the message carries at least one attached media item.
func (m *IncomingMessage) HasMedia() bool {
	return m.NumMedia > 0 && m.MediaURL != ""
}

// APIResponse is the envelope for the JSON endpoints (health, reminder sweep).
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}

// PingResponse is returned by the health probe.
type PingResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RemindResponse is returned by the reminder sweep trigger.
type RemindResponse struct {
	OK   bool   `json:"ok"`
	Sent int    `json:"sent"`
	Time string `json:"time,omitempty"`
	Note string `json:"note,omitempty"`
}
