package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpsertPage inserts or replaces the page record keyed by p.ID.
func (db *DB) UpsertPage(p Page) error {
	_, err := db.conn.Exec(`
		INSERT INTO pages (
			id, title, space_key, parent_id, ancestors, content_status, restricted,
			version_count, created_by, created_at, last_modified_by, last_modified_at,
			local_path, base_hash, local_hash, remote_hash, sync_state, last_sync
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			space_key = excluded.space_key,
			parent_id = excluded.parent_id,
			ancestors = excluded.ancestors,
			content_status = excluded.content_status,
			restricted = excluded.restricted,
			version_count = excluded.version_count,
			created_by = excluded.created_by,
			created_at = excluded.created_at,
			last_modified_by = excluded.last_modified_by,
			last_modified_at = excluded.last_modified_at,
			local_path = excluded.local_path,
			base_hash = excluded.base_hash,
			local_hash = excluded.local_hash,
			remote_hash = excluded.remote_hash,
			sync_state = excluded.sync_state,
			last_sync = excluded.last_sync
	`,
		p.ID, p.Title, nullString(p.SpaceKey), nullString(p.ParentID), strings.Join(p.Ancestors, "/"),
		nullString(p.ContentStatus), boolToInt(p.Restricted), p.VersionCount,
		nullString(p.CreatedBy), nullTime(p.CreatedAt), nullString(p.LastModifiedBy), nullTime(p.LastModifiedAt),
		nullString(p.LocalPath), nullString(p.BaseHash), nullString(p.LocalHash), nullString(p.RemoteHash),
		nullString(p.SyncState), nullTime(p.LastSync),
	)
	if err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}
	return nil
}

const pageColumns = `
	id, title, space_key, parent_id, ancestors, content_status, restricted,
	version_count, created_by, created_at, last_modified_by, last_modified_at,
	local_path, base_hash, local_hash, remote_hash, sync_state, last_sync
`

func scanPage(scan func(...any) error) (Page, error) {
	var p Page
	var spaceKey, parentID, ancestors, contentStatus, createdBy, lastModifiedBy sql.NullString
	var localPath, baseHash, localHash, remoteHash, syncState sql.NullString
	var createdAt, lastModifiedAt, lastSync sql.NullInt64
	var restricted int

	err := scan(
		&p.ID, &p.Title, &spaceKey, &parentID, &ancestors, &contentStatus, &restricted,
		&p.VersionCount, &createdBy, &createdAt, &lastModifiedBy, &lastModifiedAt,
		&localPath, &baseHash, &localHash, &remoteHash, &syncState, &lastSync,
	)
	if err != nil {
		return Page{}, err
	}

	p.SpaceKey = spaceKey.String
	p.ParentID = parentID.String
	if ancestors.Valid && ancestors.String != "" {
		p.Ancestors = strings.Split(ancestors.String, "/")
	}
	p.ContentStatus = contentStatus.String
	p.Restricted = restricted != 0
	p.CreatedBy = createdBy.String
	p.LastModifiedBy = lastModifiedBy.String
	p.LocalPath = localPath.String
	p.BaseHash = baseHash.String
	p.LocalHash = localHash.String
	p.RemoteHash = remoteHash.String
	p.SyncState = syncState.String
	if createdAt.Valid {
		p.CreatedAt = time.Unix(createdAt.Int64, 0)
	}
	if lastModifiedAt.Valid {
		p.LastModifiedAt = time.Unix(lastModifiedAt.Int64, 0)
	}
	if lastSync.Valid {
		p.LastSync = time.Unix(lastSync.Int64, 0)
	}
	return p, nil
}

// GetPage returns the page record for id, or nil if not found.
func (db *DB) GetPage(id string) (*Page, error) {
	row := db.conn.QueryRow(`SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	p, err := scanPage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	return &p, nil
}

// ListPages returns pages matching filter. Ordering is unspecified unless
// the filter implies one.
func (db *DB) ListPages(filter ListFilter) ([]Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE 1=1`
	var args []any

	if filter.SpaceKey != "" {
		query += ` AND space_key = ?`
		args = append(args, filter.SpaceKey)
	}
	if filter.ContentStatus != "" {
		query += ` AND content_status = ?`
		args = append(args, filter.ContentStatus)
	}
	if filter.IsRestricted != nil {
		query += ` AND restricted = ?`
		args = append(args, boolToInt(*filter.IsRestricted))
	}
	if !filter.ModifiedBefore.IsZero() {
		query += ` AND last_modified_at < ?`
		args = append(args, filter.ModifiedBefore.Unix())
	}
	if filter.MinVersionCount > 0 {
		query += ` AND version_count >= ?`
		args = append(args, filter.MinVersionCount)
	}
	if filter.AncestorID != "" {
		query += ` AND (parent_id = ? OR ancestors = ? OR ancestors LIKE ? OR ancestors LIKE ? OR ancestors LIKE ?)`
		args = append(args, filter.AncestorID, filter.AncestorID,
			filter.AncestorID+"/%", "%/"+filter.AncestorID, "%/"+filter.AncestorID+"/%")
	}
	if filter.Label != "" {
		query += ` AND id IN (SELECT page_id FROM labels WHERE label = ?)`
		args = append(args, filter.Label)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetOrphanedPages returns pages with no incoming link edges and no parent.
func (db *DB) GetOrphanedPages() ([]Page, error) {
	rows, err := db.conn.Query(`
		SELECT ` + pageColumns + ` FROM pages
		WHERE (parent_id IS NULL OR parent_id = '')
		AND id NOT IN (SELECT DISTINCT target_page_id FROM links WHERE target_page_id IS NOT NULL)
	`)
	if err != nil {
		return nil, fmt.Errorf("query orphaned pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeletePage removes a page record (used when a page is confirmed deleted
// both locally and remotely, §3.1 lifecycle).
func (db *DB) DeletePage(id string) error {
	_, err := db.conn.Exec(`DELETE FROM pages WHERE id = ?`, id)
	return err
}
