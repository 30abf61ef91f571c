package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
)

const recordColumns = "id, owner_id, name, day, month, created_at"

// SaveRecord inserts a birthday. A collision with an existing record for
// the same owner returns ErrDuplicate.
func (s *SQLiteStore) SaveRecord(ctx context.Context, ownerID, name string, day int, month string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO birthdays (owner_id, name, day, month, created_at) VALUES (?, ?, ?, ?, ?)`,
		ownerID, name, day, month, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	return nil
}

// RecordExists reports whether the owner already stores this exact
// birthday, comparing name and month case-insensitively.
func (s *SQLiteStore) RecordExists(ctx context.Context, ownerID, name string, day int, month string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM birthdays
		 WHERE owner_id = ? AND name = ? COLLATE NOCASE AND day = ? AND month = ? COLLATE NOCASE
		 LIMIT 1`,
		ownerID, name, day, month,
	).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
}

// FindByName returns records whose name contains the query,
// case-insensitively, ordered by name.
func (s *SQLiteStore) FindByName(ctx context.Context, ownerID, query string) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM birthdays
		 WHERE owner_id = ? AND instr(lower(name), lower(?)) > 0
		 ORDER BY name COLLATE NOCASE`,
		ownerID, query,
	)
}

// FindByDate returns records on an exact day and month.
func (s *SQLiteStore) FindByDate(ctx context.Context, ownerID string, day int, month string) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM birthdays
		 WHERE owner_id = ? AND day = ? AND month = ? COLLATE NOCASE
		 ORDER BY name COLLATE NOCASE`,
		ownerID, day, month,
	)
}

// FindByMonth returns records in a month ordered by day.
func (s *SQLiteStore) FindByMonth(ctx context.Context, ownerID, month string) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM birthdays
		 WHERE owner_id = ? AND month = ? COLLATE NOCASE
		 ORDER BY day, name COLLATE NOCASE`,
		ownerID, month,
	)
}

// ListAll returns every record the owner stores. Chronological grouping
// is the caller's concern; month is text here.
func (s *SQLiteStore) ListAll(ctx context.Context, ownerID string) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM birthdays WHERE owner_id = ? ORDER BY id`,
		ownerID,
	)
}

// DeleteByName removes records matching the name exactly,
// case-insensitively, and reports whether anything was removed.
func (s *SQLiteStore) DeleteByName(ctx context.Context, ownerID, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM birthdays WHERE owner_id = ? AND name = ? COLLATE NOCASE`,
		ownerID, name,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	return n > 0, nil
}

// DeleteBySubstring removes records whose name contains the query,
// case-insensitively, and returns the names that were actually removed.
func (s *SQLiteStore) DeleteBySubstring(ctx context.Context, ownerID, query string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT name FROM birthdays
		 WHERE owner_id = ? AND instr(lower(name), lower(?)) > 0
		 ORDER BY name COLLATE NOCASE`,
		ownerID, query,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	if len(names) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM birthdays WHERE owner_id = ? AND instr(lower(name), lower(?)) > 0`,
		ownerID, query,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	return names, nil
}

// UpdateRecord changes the date of an existing record matched by name,
// case-insensitively. It reports whether a record was updated; moving a
// record onto a date already stored under the same name returns
// ErrDuplicate.
func (s *SQLiteStore) UpdateRecord(ctx context.Context, ownerID, name string, day int, month string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE birthdays SET day = ?, month = ?
		 WHERE owner_id = ? AND name = ? COLLATE NOCASE`,
		day, month, ownerID, name,
	)
	if isUniqueViolation(err) {
		return false, ErrDuplicate
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", config.ErrStoreExec, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Day, &r.Month, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	return out, nil
}
