package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertUser inserts or replaces the cached record for u.ID.
func (db *DB) UpsertUser(u User) error {
	var isActive any
	if u.IsActive != nil {
		isActive = boolToInt(*u.IsActive)
	}
	_, err := db.conn.Exec(`
		INSERT INTO users (id, display_name, email, is_active, last_checked)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			is_active = excluded.is_active,
			last_checked = excluded.last_checked
	`, u.ID, u.DisplayName, u.Email, isActive, nullTime(u.LastChecked))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser returns the cached user record for id, or nil if unknown.
func (db *DB) GetUser(id string) (*User, error) {
	var u User
	var isActive sql.NullInt64
	var lastChecked sql.NullInt64

	err := db.conn.QueryRow(`
		SELECT id, display_name, email, is_active, last_checked FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.DisplayName, &u.Email, &isActive, &lastChecked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if isActive.Valid {
		b := isActive.Int64 != 0
		u.IsActive = &b
	}
	if lastChecked.Valid {
		u.LastChecked = time.Unix(lastChecked.Int64, 0)
	}
	return &u, nil
}

// GetOldestUserCheck returns the last_checked timestamp of the
// least-recently-verified cached user, or the zero Time if the cache is
// empty. Drives audit cache-freshness reporting.
func (db *DB) GetOldestUserCheck() (time.Time, error) {
	var lastChecked sql.NullInt64
	err := db.conn.QueryRow(`SELECT MIN(last_checked) FROM users`).Scan(&lastChecked)
	if err != nil {
		return time.Time{}, fmt.Errorf("query oldest check: %w", err)
	}
	if !lastChecked.Valid {
		return time.Time{}, nil
	}
	return time.Unix(lastChecked.Int64, 0), nil
}
