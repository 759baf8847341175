// Package store provides storage backends for GapBot.
//
// This file implements a PostgreSQL-backed store for users and progress entries.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/gap-labs/gapbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
// Hosted providers often require SSL, so URL DSNs without an explicit sslmode
// get sslmode=require appended.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}
	dsn = NormalizePostgresDSN(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	// Run migrations to ensure the users and progress tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetUser(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUser not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query user %s: %w", phone, err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(u *models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (phone, name, goal, points, streak, last_update, state, reminder_time, timezone) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.Phone, nilIfEmpty(u.Name), nilIfEmpty(u.Goal), u.Points, u.Streak, nilIfEmpty(u.LastUpdate), string(u.State), u.ReminderTime, u.Timezone)
	if err != nil {
		slog.Error("PostgresStore CreateUser failed", "error", err, "phone", u.Phone)
		return fmt.Errorf("failed to insert user %s: %w", u.Phone, err)
	}
	slog.Debug("PostgresStore CreateUser succeeded", "phone", u.Phone, "state", u.State)
	return nil
}

func (s *PostgresStore) UpdateUser(u *models.User) error {
	_, err := s.db.Exec(
		`UPDATE users SET name = $1, goal = $2, points = $3, streak = $4, last_update = $5, state = $6, reminder_time = $7, timezone = $8 WHERE phone = $9`,
		nilIfEmpty(u.Name), nilIfEmpty(u.Goal), u.Points, u.Streak, nilIfEmpty(u.LastUpdate), string(u.State), u.ReminderTime, u.Timezone, u.Phone)
	if err != nil {
		slog.Error("PostgresStore UpdateUser failed", "error", err, "phone", u.Phone)
		return fmt.Errorf("failed to update user %s: %w", u.Phone, err)
	}
	slog.Debug("PostgresStore UpdateUser succeeded", "phone", u.Phone, "state", u.State)
	return nil
}

func (s *PostgresStore) ListUsers() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users`)
	if err != nil {
		slog.Error("PostgresStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return collectUsers(rows)
}

func (s *PostgresStore) TopUsersByPoints(limit int) ([]models.User, error) {
	rows, err := s.db.Query(`SELECT `+userColumns+` FROM users ORDER BY points DESC LIMIT $1`, limit)
	if err != nil {
		slog.Error("PostgresStore TopUsersByPoints query failed", "error", err)
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	return collectUsers(rows)
}

func (s *PostgresStore) AddProgress(e *models.ProgressEntry) error {
	err := s.db.QueryRow(
		`INSERT INTO progress (phone, date, entry_text, proof_url, proof_status, points_awarded) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		e.Phone, e.Date, nilIfEmpty(e.EntryText), nilIfEmpty(e.ProofURL), string(e.ProofStatus), e.PointsAwarded).Scan(&e.ID)
	if err != nil {
		slog.Error("PostgresStore AddProgress failed", "error", err, "phone", e.Phone)
		return fmt.Errorf("failed to insert progress for %s: %w", e.Phone, err)
	}
	slog.Debug("PostgresStore AddProgress succeeded", "phone", e.Phone, "date", e.Date, "id", e.ID)
	return nil
}

func (s *PostgresStore) UpdateProgress(e *models.ProgressEntry) error {
	_, err := s.db.Exec(
		`UPDATE progress SET proof_url = $1, proof_status = $2, points_awarded = $3 WHERE id = $4`,
		nilIfEmpty(e.ProofURL), string(e.ProofStatus), e.PointsAwarded, e.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateProgress failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to update progress %d: %w", e.ID, err)
	}
	slog.Debug("PostgresStore UpdateProgress succeeded", "id", e.ID, "status", e.ProofStatus)
	return nil
}

func (s *PostgresStore) PendingProgressForDate(phone, date string) (*models.ProgressEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+progressColumns+` FROM progress WHERE phone = $1 AND date = $2 AND proof_status = $3 ORDER BY id DESC LIMIT 1`,
		phone, date, string(models.ProofPending))
	e, err := scanProgress(row)
	if err != nil {
		if err == sql.ErrNoRows {
			slog.Debug("PostgresStore PendingProgressForDate not found", "phone", phone, "date", date)
			return nil, nil
		}
		slog.Error("PostgresStore PendingProgressForDate failed", "error", err, "phone", phone, "date", date)
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) RecentProgress(phone string, limit int) ([]models.ProgressEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+progressColumns+` FROM progress WHERE phone = $1 ORDER BY date DESC, id DESC LIMIT $2`,
		phone, limit)
	if err != nil {
		slog.Error("PostgresStore RecentProgress query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query history for %s: %w", phone, err)
	}
	return collectProgress(rows)
}

func (s *PostgresStore) ProgressSince(phone, since string) ([]models.ProgressEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+progressColumns+` FROM progress WHERE phone = $1 AND date >= $2 ORDER BY date ASC, id ASC`,
		phone, since)
	if err != nil {
		slog.Error("PostgresStore ProgressSince query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query summary for %s: %w", phone, err)
	}
	return collectProgress(rows)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
