package store

import "fmt"

// SetPageLabels replaces the full label set for id.
func (db *DB) SetPageLabels(id string, labels []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM labels WHERE page_id = ?`, id); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO labels (page_id, label) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, label := range labels {
		if _, err := stmt.Exec(id, label); err != nil {
			return fmt.Errorf("insert label: %w", err)
		}
	}

	return tx.Commit()
}

// GetPageLabels returns the labels attached to id.
func (db *DB) GetPageLabels(id string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT label FROM labels WHERE page_id = ? ORDER BY label`, id)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// GetPagesWithLabel returns the ids of every page tagged with label.
func (db *DB) GetPagesWithLabel(label string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT page_id FROM labels WHERE label = ?`, label)
	if err != nil {
		return nil, fmt.Errorf("query pages with label: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan page id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
