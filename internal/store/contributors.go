package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SetPageContributors replaces the contributor set for id.
func (db *DB) SetPageContributors(id string, contributors []Contributor) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM contributors WHERE page_id = ?`, id); err != nil {
		return fmt.Errorf("clear contributors: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO contributors (page_id, user_id, contribution_count, last_contributed_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range contributors {
		if _, err := stmt.Exec(id, c.UserID, c.ContributionCount, nullTime(c.LastContributedAt)); err != nil {
			return fmt.Errorf("insert contributor: %w", err)
		}
	}

	return tx.Commit()
}

// GetPageContributors returns the contributors recorded for id.
func (db *DB) GetPageContributors(id string) ([]Contributor, error) {
	rows, err := db.conn.Query(`
		SELECT page_id, user_id, contribution_count, last_contributed_at
		FROM contributors WHERE page_id = ?
		ORDER BY contribution_count DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query contributors: %w", err)
	}
	defer rows.Close()

	var out []Contributor
	for rows.Next() {
		var c Contributor
		var lastContributedAt sql.NullInt64
		if err := rows.Scan(&c.PageID, &c.UserID, &c.ContributionCount, &lastContributedAt); err != nil {
			return nil, fmt.Errorf("scan contributor: %w", err)
		}
		if lastContributedAt.Valid {
			c.LastContributedAt = time.Unix(lastContributedAt.Int64, 0)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
