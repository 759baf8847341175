// Package store provides storage backends for GapBot.
//
// It includes SQLite and PostgreSQL stores for users and progress entries,
// plus an in-memory store used by tests and DSN-less runs.
package store

import (
	"strings"

	"github.com/gap-labs/gapbot/internal/models"
)

// Store is the persistence interface shared by all backends.
type Store interface {
	// GetUser returns the user for the given handle, or nil when absent.
	GetUser(phone string) (*models.User, error)
	// CreateUser inserts a new user row.
	CreateUser(u *models.User) error
	// UpdateUser writes all mutable user fields back by phone.
	UpdateUser(u *models.User) error
	// ListUsers returns all users.
	ListUsers() ([]models.User, error)
	// TopUsersByPoints returns up to limit users ordered by points descending.
	TopUsersByPoints(limit int) ([]models.User, error)

	// AddProgress inserts a new progress entry and assigns its ID.
	AddProgress(e *models.ProgressEntry) error
	// UpdateProgress writes the proof fields of an existing entry back by ID.
	UpdateProgress(e *models.ProgressEntry) error
	// PendingProgressForDate returns the most recent pending entry for the
	// given user and date, or nil when none exists.
	PendingProgressForDate(phone, date string) (*models.ProgressEntry, error)
	// RecentProgress returns up to limit entries for the user, newest date first.
	RecentProgress(phone string, limit int) ([]models.ProgressEntry, error)
	// ProgressSince returns entries for the user with date >= since, date ascending.
	ProgressSince(phone, since string) ([]models.ProgressEntry, error)

	// Close releases the underlying connection.
	Close() error
}

// Opts holds configuration options for store construction.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN configures the store to use SQLite with the given file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures the store to use PostgreSQL with the given DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL-style DSNs and "sqlite"
// for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NormalizePostgresDSN appends sslmode=require to URL-style Postgres DSNs that
// do not specify an sslmode. Hosted Postgres providers commonly require SSL.
func NormalizePostgresDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn
	}
	if strings.Contains(dsn, "sslmode") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "sslmode=require"
}
