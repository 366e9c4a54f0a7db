// Package store is the durable local index of the sync engine: page
// records, link edges, labels, users, contributors, base content, and the
// path index, all behind a single DB handle.
//
// Grounded on internal/state/db.go (schema-in-Exec, WAL mode, a single
// *sql.DB with SetMaxOpenConns(1) for linearizable access) and
// internal/state/links.go/conflicts.go/changes.go for the query shapes,
// generalized from the teacher's flat sync_state table to the richer
// page/link/label/user/contributor schema SPEC_FULL.md §3-§4.4 specifies.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adamancini/confluence-sync/internal/hashnorm"
)

// SchemaVersion is recorded in the meta table by Init. Init creates any
// missing tables and indexes; it does not migrate older layouts.
const SchemaVersion = "1"

// Page is the persisted record for a synced or discovered remote page.
type Page struct {
	ID             string
	Title          string
	SpaceKey       string
	ParentID       string
	Ancestors      []string
	ContentStatus  string // "current" | "draft" | "archived"
	Restricted     bool
	VersionCount   int
	CreatedBy      string
	CreatedAt      time.Time
	LastModifiedBy string
	LastModifiedAt time.Time

	LocalPath  string
	BaseHash   string
	LocalHash  string
	RemoteHash string
	SyncState  string // synced | local-modified | remote-modified | conflict | unsynced | untracked | remote-inaccessible
	LastSync   time.Time
}

// Link is a discovered link edge, rebuilt from page content on every pull.
type Link struct {
	SourcePageID string
	TargetPageID string // empty if external or unresolved
	TargetPath   string
	LinkType     string // internal | external | attachment
	LinkText     string
	Line         int
	IsBroken     bool
	DiscoveredAt time.Time
}

// Contributor is a (page, user, count) tuple.
type Contributor struct {
	PageID            string
	UserID            string
	ContributionCount int
	LastContributedAt time.Time
}

// User is a cached remote user record.
type User struct {
	ID          string
	DisplayName string
	Email       string
	IsActive    *bool
	LastChecked time.Time
}

// ListFilter narrows ListPages. Zero value matches everything.
type ListFilter struct {
	SpaceKey        string
	Label           string
	AncestorID      string
	ModifiedBefore  time.Time
	ContentStatus   string
	IsRestricted    *bool
	MinVersionCount int
}

// DB is the process-wide handle to the state store.
type DB struct {
	conn    *sql.DB
	baseDir string

	mu        sync.RWMutex
	pathIndex map[string]string // relative path -> page id, mirrored in-memory for O(1) lookups
}

// Open opens or creates the state store at path, with a base-content
// cache directory under baseDir/cache.
func Open(path, baseDir string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, baseDir: baseDir, pathIndex: make(map[string]string)}
	if err := db.Init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := db.loadPathIndex(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("load path index: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	space_key TEXT,
	parent_id TEXT,
	ancestors TEXT,
	content_status TEXT,
	restricted INTEGER DEFAULT 0,
	version_count INTEGER DEFAULT 0,
	created_by TEXT,
	created_at INTEGER,
	last_modified_by TEXT,
	last_modified_at INTEGER,
	local_path TEXT,
	base_hash TEXT,
	local_hash TEXT,
	remote_hash TEXT,
	sync_state TEXT,
	last_sync INTEGER
);

CREATE TABLE IF NOT EXISTS links (
	source_page_id TEXT NOT NULL,
	target_page_id TEXT,
	target_path TEXT,
	link_type TEXT,
	link_text TEXT,
	line INTEGER,
	is_broken INTEGER DEFAULT 0,
	discovered_at INTEGER
);

CREATE TABLE IF NOT EXISTS labels (
	page_id TEXT NOT NULL,
	label TEXT NOT NULL,
	PRIMARY KEY (page_id, label)
);

CREATE TABLE IF NOT EXISTS contributors (
	page_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	contribution_count INTEGER DEFAULT 0,
	last_contributed_at INTEGER,
	PRIMARY KEY (page_id, user_id)
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	display_name TEXT,
	email TEXT,
	is_active INTEGER,
	last_checked INTEGER
);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS path_index (
	path TEXT PRIMARY KEY,
	page_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pages_space ON pages(space_key);
CREATE INDEX IF NOT EXISTS idx_pages_parent ON pages(parent_id);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_page_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_page_id);
CREATE INDEX IF NOT EXISTS idx_labels_label ON labels(label);
CREATE INDEX IF NOT EXISTS idx_path_index_page ON path_index(page_id);
`

// Init creates schema/indexes if missing and records the schema version
// and the content hash algorithm.
func (db *DB) Init() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}
	if err := db.SetMeta("schema_version", SchemaVersion); err != nil {
		return err
	}
	return db.SetMeta("hash_algo", hashnorm.Algo)
}

func (db *DB) loadPathIndex() error {
	rows, err := db.conn.Query(`SELECT path, page_id FROM path_index`)
	if err != nil {
		return err
	}
	defer rows.Close()

	db.mu.Lock()
	defer db.mu.Unlock()
	for rows.Next() {
		var path, id string
		if err := rows.Scan(&path, &id); err != nil {
			return err
		}
		db.pathIndex[path] = id
	}
	return rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func baseFilePath(baseDir, pageID string) string {
	return filepath.Join(baseDir, "cache", pageID+".base")
}

// ReadBase reads the stored base-content Markdown for id, or ("", nil) if
// none exists yet (first sync).
func (db *DB) ReadBase(id string) (string, error) {
	data, err := os.ReadFile(baseFilePath(db.baseDir, id))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read base: %w", err)
	}
	return string(data), nil
}

// WriteBase atomically replaces the stored base-content Markdown for id,
// via temp-file-then-rename (teacher precedent: internal/vault's atomic
// writes).
func (db *DB) WriteBase(id, markdown string) error {
	path := baseFilePath(db.baseDir, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("write temp base: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp base: %w", err)
	}
	return nil
}

// GetMeta returns a small key-value record (schema version, space key,
// home page id, hash algorithm), or "" if unset.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMeta sets a meta key-value pair.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
