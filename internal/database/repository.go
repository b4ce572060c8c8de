package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"idlewatch/internal/models"
)

// storedTimestampLayout has a fixed-width fraction so that lexicographic
// order on the last_active column matches chronological order. A trimmed
// fraction (RFC3339Nano style) would sort "…00.5Z" before "…00.123456Z".
const storedTimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// naiveTimestampLayout is the zone-less fallback for historical rows stored
// without an offset. Such timestamps are interpreted as UTC.
const naiveTimestampLayout = "2006-01-02T15:04:05.999999999"

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// UpsertActivity writes or replaces the last-active timestamp for a user.
// The write is last-write-wins; redundant writes are harmless.
func (r *Repository) UpsertActivity(userID string, t time.Time) error {
	id, err := parseUserID(userID)
	if err != nil {
		return err
	}

	_, err = r.db.conn.Exec(`
		INSERT INTO activity (user_id, last_active)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET last_active = EXCLUDED.last_active`,
		id, formatTimestamp(t))
	if err != nil {
		return fmt.Errorf("failed to upsert activity: %w", err)
	}
	return nil
}

// GetLastActive returns the last-active timestamp for a user in UTC.
// The second return value is false when the user has never been observed.
func (r *Repository) GetLastActive(userID string) (time.Time, bool, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return time.Time{}, false, err
	}

	var raw string
	err = r.db.conn.QueryRow(
		"SELECT last_active FROM activity WHERE user_id = $1", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last active: %w", err)
	}

	t, err := parseTimestamp(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// ListLeastActive returns up to limit records ordered by ascending
// last-active time, least recently active first.
func (r *Repository) ListLeastActive(limit int) ([]models.ActivityRecord, error) {
	rows, err := r.db.conn.Query(
		"SELECT user_id, last_active FROM activity ORDER BY last_active ASC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list least active: %w", err)
	}
	defer rows.Close()

	var records []models.ActivityRecord
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		t, err := parseTimestamp(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, models.ActivityRecord{UserID: id, LastActive: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list least active: %w", err)
	}

	return records, nil
}

// CountTracked returns the number of users with an activity record.
func (r *Repository) CountTracked() (int64, error) {
	var n int64
	if err := r.db.conn.QueryRow("SELECT COUNT(*) FROM activity").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activity rows: %w", err)
	}
	return n, nil
}

func parseUserID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return id, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveTimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid last_active timestamp %q: %w", s, err)
	}
	return t, nil
}
