package store

import (
	"database/sql"
	"fmt"
)

// SetPath records path -> id in the persisted path index and its
// in-memory mirror (§3.2: the path index is injective — callers must
// check PathOwner before assigning a colliding path; this
// method enforces nothing beyond last-write-wins).
func (db *DB) SetPath(path, id string) error {
	if _, err := db.conn.Exec(`
		INSERT INTO path_index (path, page_id) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET page_id = excluded.page_id
	`, path, id); err != nil {
		return fmt.Errorf("set path: %w", err)
	}

	db.mu.Lock()
	db.pathIndex[path] = id
	db.mu.Unlock()
	return nil
}

// RemovePath deletes a path-index entry (a page was deleted or moved).
func (db *DB) RemovePath(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM path_index WHERE path = ?`, path); err != nil {
		return fmt.Errorf("remove path: %w", err)
	}
	db.mu.Lock()
	delete(db.pathIndex, path)
	db.mu.Unlock()
	return nil
}

// PathOwner returns the page id currently mapped to path, using the
// in-memory mirror for O(1) lookups during a run.
func (db *DB) PathOwner(path string) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	id, ok := db.pathIndex[path]
	return id, ok
}

// PathForPage returns the path currently mapped to id, if any.
func (db *DB) PathForPage(id string) (string, error) {
	var path string
	err := db.conn.QueryRow(`SELECT path FROM path_index WHERE page_id = ?`, id).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return path, err
}

// PathIndexSnapshot returns a copy of the full path -> page id mapping, the
// "previous" argument pathresolve.Plan needs to keep a page's disambiguated
// path stable across reruns (§4.3).
func (db *DB) PathIndexSnapshot() map[string]string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(map[string]string, len(db.pathIndex))
	for k, v := range db.pathIndex {
		out[k] = v
	}
	return out
}
