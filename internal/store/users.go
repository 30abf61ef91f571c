package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
)

// UserExists reports whether the owner has a profile row.
func (s *SQLiteStore) UserExists(ctx context.Context, ownerID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE owner_id = ? LIMIT 1`, ownerID,
	).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
}

// OnboardUser creates the profile row for a first-time user. Repeated
// calls are harmless.
func (s *SQLiteStore) OnboardUser(ctx context.Context, ownerID, timezone string) error {
	if timezone == "" {
		timezone = config.DefaultTimezone
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (owner_id, has_seen_welcome, timezone, created_at)
		 VALUES (?, 0, ?, ?)`,
		ownerID, timezone, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	return nil
}

// MarkWelcomeSeen records that the welcome message went out.
func (s *SQLiteStore) MarkWelcomeSeen(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET has_seen_welcome = 1 WHERE owner_id = ?`, ownerID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	return nil
}

// TouchLastInteraction stamps the profile with the current time.
func (s *SQLiteStore) TouchLastInteraction(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_interaction_at = ? WHERE owner_id = ?`,
		time.Now().UTC(), ownerID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	return nil
}

// Profile returns the owner's profile, or nil when the user is unknown.
func (s *SQLiteStore) Profile(ctx context.Context, ownerID string) (*UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner_id, has_seen_welcome, timezone, last_interaction_at, last_reminder_sent_at, created_at
		 FROM users WHERE owner_id = ?`, ownerID,
	)
	p, err := scanProfile(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	return p, nil
}

// Profiles returns every user profile, for the reminder sweep.
func (s *SQLiteStore) Profiles(ctx context.Context) ([]*UserProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, has_seen_welcome, timezone, last_interaction_at, last_reminder_sent_at, created_at
		 FROM users ORDER BY owner_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	defer rows.Close()

	var out []*UserProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	return out, nil
}

// SetLastReminderSent records the moment of the owner's latest daily
// reminder, the guard against double sends.
func (s *SQLiteStore) SetLastReminderSent(ctx context.Context, ownerID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_reminder_sent_at = ? WHERE owner_id = ?`,
		at.UTC(), ownerID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	return nil
}

func scanProfile(scan func(dest ...interface{}) error) (*UserProfile, error) {
	var (
		p           UserProfile
		seenWelcome int
		lastSeen    sql.NullTime
		lastRemind  sql.NullTime
	)
	if err := scan(&p.OwnerID, &seenWelcome, &p.Timezone, &lastSeen, &lastRemind, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.HasSeenWelcome = seenWelcome != 0
	if lastSeen.Valid {
		t := lastSeen.Time
		p.LastInteractionAt = &t
	}
	if lastRemind.Valid {
		t := lastRemind.Time
		p.LastReminderSentAt = &t
	}
	return &p, nil
}
