package store

import (
	"database/sql"
	"fmt"
	"time"
)

const linkColumns = `source_page_id, target_page_id, target_path, link_type, link_text, line, is_broken, discovered_at`

func scanLink(scan func(...any) error) (Link, error) {
	var l Link
	var targetPageID sql.NullString
	var isBroken int
	var discoveredAt sql.NullInt64

	err := scan(&l.SourcePageID, &targetPageID, &l.TargetPath, &l.LinkType, &l.LinkText, &l.Line, &isBroken, &discoveredAt)
	if err != nil {
		return Link{}, err
	}
	l.TargetPageID = targetPageID.String
	l.IsBroken = isBroken != 0
	if discoveredAt.Valid {
		l.DiscoveredAt = time.Unix(discoveredAt.Int64, 0)
	}
	return l, nil
}

// SetPageLinks replaces all outgoing edges for pageID atomically, rebuilt
// from scratch on every successful pull (§3.1 Link edge lifecycle).
func (db *DB) SetPageLinks(pageID string, links []Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM links WHERE source_page_id = ?`, pageID); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO links (` + linkColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range links {
		if _, err := stmt.Exec(
			pageID, nullString(l.TargetPageID), l.TargetPath, l.LinkType, l.LinkText,
			l.Line, boolToInt(l.IsBroken), nullTime(l.DiscoveredAt),
		); err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}

	return tx.Commit()
}

// GetOutgoingLinks returns edges whose source is id.
func (db *DB) GetOutgoingLinks(id string) ([]Link, error) {
	return queryLinks(db, `SELECT `+linkColumns+` FROM links WHERE source_page_id = ?`, id)
}

// GetIncomingLinks returns edges whose target is id.
func (db *DB) GetIncomingLinks(id string) ([]Link, error) {
	return queryLinks(db, `SELECT `+linkColumns+` FROM links WHERE target_page_id = ?`, id)
}

// GetBrokenLinks returns every edge with isBroken = true.
func (db *DB) GetBrokenLinks() ([]Link, error) {
	return queryLinks(db, `SELECT `+linkColumns+` FROM links WHERE is_broken = 1`)
}

// GetExternalLinks returns external-typed edges, optionally scoped to a
// single source page.
func (db *DB) GetExternalLinks(pageID string) ([]Link, error) {
	if pageID == "" {
		return queryLinks(db, `SELECT `+linkColumns+` FROM links WHERE link_type = 'external'`)
	}
	return queryLinks(db, `SELECT `+linkColumns+` FROM links WHERE link_type = 'external' AND source_page_id = ?`, pageID)
}

// SetLinkBroken updates the isBroken flag for a single edge, used by the
// external link checker after an HTTP probe without disturbing the rest of
// the source page's edges (SetPageLinks would require re-running link
// extraction to rebuild them all).
func (db *DB) SetLinkBroken(sourcePageID, targetPath string, isBroken bool) error {
	_, err := db.conn.Exec(
		`UPDATE links SET is_broken = ? WHERE source_page_id = ? AND target_path = ?`,
		boolToInt(isBroken), sourcePageID, targetPath,
	)
	return err
}

func queryLinks(db *DB, query string, args ...any) ([]Link, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		l, err := scanLink(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
