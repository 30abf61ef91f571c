// Package store persists birthday records and user profiles in a single
// SQLite database. Every operation is scoped by the WhatsApp owner id so
// one database serves all users of a deployment.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
)

// MemoryDSN opens a throwaway in-process database, used by tests.
const MemoryDSN = ":memory:"

// ErrDuplicate reports a write that collided with an existing record for
// the same owner, name and date. Callers treat it as an outcome, not a
// failure.
var ErrDuplicate = errors.New("record already exists")

// Record is one stored birthday. Month holds the canonical short form
// ("Jan".."Dec"); no year is kept.
type Record struct {
	ID        int64
	OwnerID   string
	Name      string
	Day       int
	Month     string
	CreatedAt time.Time
}

// UserProfile tracks per-user bot state.
type UserProfile struct {
	OwnerID            string
	HasSeenWelcome     bool
	Timezone           string
	LastInteractionAt  *time.Time
	LastReminderSentAt *time.Time
	CreatedAt          time.Time
}

// Store is the storage contract consumed by the engine and the reminder
// worker.
type Store interface {
	// Birthday records
	SaveRecord(ctx context.Context, ownerID, name string, day int, month string) error
	RecordExists(ctx context.Context, ownerID, name string, day int, month string) (bool, error)
	FindByName(ctx context.Context, ownerID, query string) ([]Record, error)
	FindByDate(ctx context.Context, ownerID string, day int, month string) ([]Record, error)
	FindByMonth(ctx context.Context, ownerID, month string) ([]Record, error)
	ListAll(ctx context.Context, ownerID string) ([]Record, error)
	DeleteByName(ctx context.Context, ownerID, name string) (bool, error)
	DeleteBySubstring(ctx context.Context, ownerID, query string) ([]string, error)
	UpdateRecord(ctx context.Context, ownerID, name string, day int, month string) (bool, error)

	// User profiles
	UserExists(ctx context.Context, ownerID string) (bool, error)
	OnboardUser(ctx context.Context, ownerID, timezone string) error
	MarkWelcomeSeen(ctx context.Context, ownerID string) error
	TouchLastInteraction(ctx context.Context, ownerID string) error
	Profile(ctx context.Context, ownerID string) (*UserProfile, error)
	Profiles(ctx context.Context) ([]*UserProfile, error)
	SetLastReminderSent(ctx context.Context, ownerID string, at time.Time) error

	Close() error
}

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// Pass MemoryDSN for an in-memory database.
func Open(path string) (*SQLiteStore, error) {
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), config.DirPermUserRWX); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}

	// An in-memory database exists per connection; the pool must not open
	// a second one.
	if path == MemoryDSN {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: pragma %q: %w", config.ErrStoreOpen, p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info(config.MsgStoreReady,
		config.LogKeyComponent, config.CompStore,
		config.LogKeyFile, path,
	)
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS birthdays (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id   TEXT NOT NULL,
			name       TEXT NOT NULL,
			day        INTEGER NOT NULL CHECK(day BETWEEN 1 AND 31),
			month      TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE(owner_id, name COLLATE NOCASE, day, month COLLATE NOCASE)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_birthdays_owner ON birthdays(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_birthdays_owner_month ON birthdays(owner_id, month)`,

		`CREATE TABLE IF NOT EXISTS users (
			owner_id              TEXT PRIMARY KEY,
			has_seen_welcome      INTEGER NOT NULL DEFAULT 0,
			timezone              TEXT NOT NULL DEFAULT 'UTC',
			last_interaction_at   DATETIME,
			last_reminder_sent_at DATETIME,
			created_at            DATETIME NOT NULL
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreMigrate, err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", config.ErrStoreMigrate, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreMigrate, err)
	}
	return nil
}

// isUniqueViolation detects the UNIQUE constraint error surfaced by the
// sqlite driver. The driver exposes no typed error for it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
