// Package store provides storage backends for GapBot.
//
// This file implements an SQLite-backed store for users and progress entries.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/gap-labs/gapbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetUser(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE phone = ?`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUser not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query user %s: %w", phone, err)
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(u *models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (phone, name, goal, points, streak, last_update, state, reminder_time, timezone) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Phone, nilIfEmpty(u.Name), nilIfEmpty(u.Goal), u.Points, u.Streak, nilIfEmpty(u.LastUpdate), string(u.State), u.ReminderTime, u.Timezone)
	if err != nil {
		slog.Error("SQLiteStore CreateUser failed", "error", err, "phone", u.Phone)
		return fmt.Errorf("failed to insert user %s: %w", u.Phone, err)
	}
	slog.Debug("SQLiteStore CreateUser succeeded", "phone", u.Phone, "state", u.State)
	return nil
}

func (s *SQLiteStore) UpdateUser(u *models.User) error {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, goal = ?, points = ?, streak = ?, last_update = ?, state = ?, reminder_time = ?, timezone = ? WHERE phone = ?`,
		nilIfEmpty(u.Name), nilIfEmpty(u.Goal), u.Points, u.Streak, nilIfEmpty(u.LastUpdate), string(u.State), u.ReminderTime, u.Timezone, u.Phone)
	if err != nil {
		slog.Error("SQLiteStore UpdateUser failed", "error", err, "phone", u.Phone)
		return fmt.Errorf("failed to update user %s: %w", u.Phone, err)
	}
	slog.Debug("SQLiteStore UpdateUser succeeded", "phone", u.Phone, "state", u.State)
	return nil
}

func (s *SQLiteStore) ListUsers() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users`)
	if err != nil {
		slog.Error("SQLiteStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return collectUsers(rows)
}

func (s *SQLiteStore) TopUsersByPoints(limit int) ([]models.User, error) {
	rows, err := s.db.Query(`SELECT `+userColumns+` FROM users ORDER BY points DESC LIMIT ?`, limit)
	if err != nil {
		slog.Error("SQLiteStore TopUsersByPoints query failed", "error", err)
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	return collectUsers(rows)
}

func (s *SQLiteStore) AddProgress(e *models.ProgressEntry) error {
	res, err := s.db.Exec(
		`INSERT INTO progress (phone, date, entry_text, proof_url, proof_status, points_awarded) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Phone, e.Date, nilIfEmpty(e.EntryText), nilIfEmpty(e.ProofURL), string(e.ProofStatus), e.PointsAwarded)
	if err != nil {
		slog.Error("SQLiteStore AddProgress failed", "error", err, "phone", e.Phone)
		return fmt.Errorf("failed to insert progress for %s: %w", e.Phone, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		slog.Error("SQLiteStore AddProgress LastInsertId failed", "error", err, "phone", e.Phone)
		return fmt.Errorf("failed to read progress id for %s: %w", e.Phone, err)
	}
	e.ID = id
	slog.Debug("SQLiteStore AddProgress succeeded", "phone", e.Phone, "date", e.Date, "id", e.ID)
	return nil
}

func (s *SQLiteStore) UpdateProgress(e *models.ProgressEntry) error {
	_, err := s.db.Exec(
		`UPDATE progress SET proof_url = ?, proof_status = ?, points_awarded = ? WHERE id = ?`,
		nilIfEmpty(e.ProofURL), string(e.ProofStatus), e.PointsAwarded, e.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateProgress failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to update progress %d: %w", e.ID, err)
	}
	slog.Debug("SQLiteStore UpdateProgress succeeded", "id", e.ID, "status", e.ProofStatus)
	return nil
}

func (s *SQLiteStore) PendingProgressForDate(phone, date string) (*models.ProgressEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+progressColumns+` FROM progress WHERE phone = ? AND date = ? AND proof_status = ? ORDER BY id DESC LIMIT 1`,
		phone, date, string(models.ProofPending))
	e, err := scanProgress(row)
	if err != nil {
		if err == sql.ErrNoRows {
			slog.Debug("SQLiteStore PendingProgressForDate not found", "phone", phone, "date", date)
			return nil, nil
		}
		slog.Error("SQLiteStore PendingProgressForDate failed", "error", err, "phone", phone, "date", date)
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) RecentProgress(phone string, limit int) ([]models.ProgressEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+progressColumns+` FROM progress WHERE phone = ? ORDER BY date DESC, id DESC LIMIT ?`,
		phone, limit)
	if err != nil {
		slog.Error("SQLiteStore RecentProgress query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query history for %s: %w", phone, err)
	}
	return collectProgress(rows)
}

func (s *SQLiteStore) ProgressSince(phone, since string) ([]models.ProgressEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+progressColumns+` FROM progress WHERE phone = ? AND date >= ? ORDER BY date ASC, id ASC`,
		phone, since)
	if err != nil {
		slog.Error("SQLiteStore ProgressSince query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query summary for %s: %w", phone, err)
	}
	return collectProgress(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
