package store

import (
	"database/sql"
	"fmt"

	"github.com/gap-labs/gapbot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// userColumns is the select list shared by all user queries.
const userColumns = `phone, name, goal, points, streak, last_update, state, reminder_time, timezone`

// progressColumns is the select list shared by all progress queries.
const progressColumns = `id, phone, date, entry_text, proof_url, proof_status, points_awarded`

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans a User from a row using the userColumns select list.
func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var name, goal, lastUpdate sql.NullString
	var state, reminderTime, timezone string
	err := row.Scan(&u.Phone, &name, &goal, &u.Points, &u.Streak, &lastUpdate, &state, &reminderTime, &timezone)
	if err != nil {
		return u, err
	}
	u.Name = name.String
	u.Goal = goal.String
	u.LastUpdate = lastUpdate.String
	u.State = models.ConversationState(state)
	u.ReminderTime = reminderTime
	u.Timezone = timezone
	return u, nil
}

// scanProgress scans a ProgressEntry from a row using the progressColumns select list.
func scanProgress(row rowScanner) (models.ProgressEntry, error) {
	var e models.ProgressEntry
	var entryText, proofURL sql.NullString
	var proofStatus string
	err := row.Scan(&e.ID, &e.Phone, &e.Date, &entryText, &proofURL, &proofStatus, &e.PointsAwarded)
	if err != nil {
		return e, err
	}
	e.EntryText = entryText.String
	e.ProofURL = proofURL.String
	e.ProofStatus = models.ProofStatus(proofStatus)
	return e, nil
}

// collectUsers drains rows into a user slice.
func collectUsers(rows *sql.Rows) ([]models.User, error) {
	defer rows.Close()
	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row failed: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows failed: %w", err)
	}
	return users, nil
}

// collectProgress drains rows into a progress slice.
func collectProgress(rows *sql.Rows) ([]models.ProgressEntry, error) {
	defer rows.Close()
	var entries []models.ProgressEntry
	for rows.Next() {
		e, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress row failed: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress rows failed: %w", err)
	}
	return entries, nil
}
