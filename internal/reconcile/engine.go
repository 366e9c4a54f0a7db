// Package reconcile is the sync engine: a single logical consumer of the
// remote (poller, webhook) and local (watcher) event streams, built as a
// generic worker pool over a keyed work queue (SPEC_FULL.md §4.8).
//
// Grounded on internal/sync/worker.go's WorkerPool[T,R], generalized here
// (via the already-built internal/worker.Queue) from a flat batch processor
// into a channel-fed, per-page-serialized consumer — the teacher runs
// one-shot CLI commands over a slice of files; this engine is the daemon's
// long-lived reconciliation loop.
package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/frontmatter"
	"github.com/adamancini/confluence-sync/internal/ignore"
	"github.com/adamancini/confluence-sync/internal/pathresolve"
	"github.com/adamancini/confluence-sync/internal/poller"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
	"github.com/adamancini/confluence-sync/internal/store"
	"github.com/adamancini/confluence-sync/internal/watcher"
	"github.com/adamancini/confluence-sync/internal/worker"
)

// Converter is the external Markdown<->storage collaborator (§6): the core
// is agnostic to prose conversion and depends only on this boundary.
type Converter interface {
	StorageToMarkdown(storage string) (string, error)
	MarkdownToStorage(markdown string) (string, error)
}

// ConflictPolicy controls how Merge (§4.8.4) resolves an unmergeable
// three-way diff.
type ConflictPolicy string

const (
	ConflictMerge  ConflictPolicy = "merge"  // write conflict markers, hold the push
	ConflictLocal  ConflictPolicy = "local"  // force-push the local body
	ConflictRemote ConflictPolicy = "remote" // force-pull the remote body
)

// DeletionStrategy controls what an explicit delete command does remotely
// (§4.8.5, §11.2).
type DeletionStrategy string

const (
	DeletionSurface DeletionStrategy = "surface" // archive the remote page
	DeletionMirror  DeletionStrategy = "mirror"  // delete the remote page outright
)

// Config holds the engine's scope and policy knobs, generalized from the
// teacher's notion-specific config.Config into the Confluence-flavored
// shape internal/config now defines.
type Config struct {
	WorkDir    string
	SpaceKey   string
	RootPageID string // restricts scope to a subtree; empty means the whole space

	ConflictStrategy ConflictPolicy
	DeletionStrategy DeletionStrategy
	AutoCreate       bool // create a remote page for an unbound local file on push
}

// Engine is the reconciliation pipeline: one per-page-keyed worker queue
// fed by the poller, webhook receiver, and local watcher.
type Engine struct {
	client remoteapi.Client
	db     *store.DB
	conv   Converter
	cfg    Config
	log    *zap.Logger

	matcher *ignore.Matcher
	queue   *worker.Queue[string, workItem]
	http    *http.Client
}

type workKind int

const (
	kindPull workKind = iota
	kindPush
	kindRemoteRemoved
)

type workItem struct {
	kind    workKind
	pageID  string
	relPath string
}

// New builds an Engine. workers bounds how many pages can reconcile
// concurrently; there is no default, each caller passes its own count.
func New(client remoteapi.Client, db *store.DB, conv Converter, matcher *ignore.Matcher, cfg Config, workers int, log *zap.Logger) *Engine {
	e := &Engine{
		client:  client,
		db:      db,
		conv:    conv,
		cfg:     cfg,
		log:     log,
		matcher: matcher,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	e.queue = worker.NewQueue(workers, e.handle)
	return e
}

// httpClient returns the engine's HTTP client for attachment downloads
// (pull).
func (e *Engine) httpClient() *http.Client {
	return e.http
}

// Run blocks, draining the reconciliation queue until ctx is cancelled
// (§4.8 invariant 1: at most one in-flight operation per page id).
func (e *Engine) Run(ctx context.Context) {
	e.queue.Run(ctx)
}

// EnqueueRemote turns a poller/webhook event into reconciliation work. A
// created/changed event schedules a pull; a deleted event is surfaced and
// logged but never deletes the local file (§4.8.5).
func (e *Engine) EnqueueRemote(evt poller.Event) {
	switch evt.Type {
	case poller.EventCreated, poller.EventChanged:
		e.queue.Push(evt.PageID, workItem{kind: kindPull, pageID: evt.PageID})
	case poller.EventDeleted:
		e.queue.Push(evt.PageID, workItem{kind: kindRemoteRemoved, pageID: evt.PageID})
	}
}

// EnqueueLocal turns a debounced watcher change into reconciliation work,
// keyed by the bound page id when known so it coalesces with any pending
// remote event for the same page, or by path otherwise.
func (e *Engine) EnqueueLocal(ch watcher.Change) {
	key := ch.RelPath
	if id, ok := e.db.PathOwner(ch.RelPath); ok {
		key = id
	}
	if ch.Deleted {
		// §4.8.5 (redesign target): local deletions are never auto-propagated.
		e.log.Info("reconcile: local deletion observed, no action taken; use the delete command", zap.String("path", ch.RelPath))
		return
	}
	e.queue.Push(key, workItem{kind: kindPush, relPath: ch.RelPath})
}

func (e *Engine) handle(ctx context.Context, key string, item workItem) error {
	switch item.kind {
	case kindPull:
		existingPath, _ := e.db.PathForPage(item.pageID)
		if err := e.Pull(ctx, item.pageID, existingPath); err != nil {
			e.log.Warn("reconcile: pull failed, next tick retries", zap.String("page_id", item.pageID), zap.Error(err))
			return err
		}
		return nil
	case kindPush:
		if err := e.Push(ctx, item.relPath); err != nil {
			e.log.Warn("reconcile: push failed, next change retries", zap.String("path", item.relPath), zap.Error(err))
			return err
		}
		return nil
	case kindRemoteRemoved:
		e.log.Info("reconcile: remote removal observed, local file untouched", zap.String("page_id", item.pageID))
		if p, _ := e.db.GetPage(item.pageID); p != nil {
			p.SyncState = "remote-inaccessible"
			return e.db.UpsertPage(*p)
		}
		return nil
	default:
		return nil
	}
}

// scope returns the remoteapi.Scope this engine's config restricts pulls
// and GetAllPages calls to.
func (e *Engine) scope() remoteapi.Scope {
	return remoteapi.Scope{SpaceKey: e.cfg.SpaceKey, RootID: e.cfg.RootPageID}
}

// Lockfile management (§4.8 invariant 3).

const lockFileName = ".sync.lock"

func lockPath(workDir string) string {
	return filepath.Join(workDir, ".syncroot", lockFileName)
}

// AcquireLock writes a lockfile containing this process's id under the
// state directory. Returns an error if a lockfile already exists.
func AcquireLock(workDir string) error {
	path := lockPath(workDir)
	if _, err := os.Stat(path); err == nil {
		data, _ := os.ReadFile(path)
		return fmt.Errorf("daemon already running (lockfile %s, pid %s)", path, strings.TrimSpace(string(data)))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReleaseLock removes the lockfile on clean shutdown.
func ReleaseLock(workDir string) error {
	err := os.Remove(lockPath(workDir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// EnsureStateDirs creates the working directory's .syncroot state root and
// its cache subdirectory if absent (§4.8.1 step 1).
func EnsureStateDirs(workDir string) error {
	root := filepath.Join(workDir, ".syncroot")
	for _, sub := range []string{"", "cache"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}
	return nil
}

// writeFrontMatterFile renders meta+body and writes it to workDir/relPath,
// creating parent directories as needed.
func writeFrontMatterFile(workDir, relPath string, meta frontmatter.Meta, body []byte) error {
	full := filepath.Join(workDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	content, err := frontmatter.Write(meta, body)
	if err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}

// planPaths builds the pathresolve.Page list the planner needs from the
// engine's known page records plus one authoritative update (the page just
// pulled), so a single page's move is detected against a path plan computed
// over the whole known tree, not just that one page (§4.3).
func (e *Engine) planPaths(ctx context.Context, authoritative remoteapi.Page) (map[string]string, error) {
	known, err := e.db.ListPages(store.ListFilter{SpaceKey: e.cfg.SpaceKey})
	if err != nil {
		return nil, fmt.Errorf("list known pages: %w", err)
	}

	byID := make(map[string]pathresolve.Page, len(known)+1)
	for _, p := range known {
		byID[p.ID] = pathresolve.Page{ID: p.ID, Title: p.Title, Ancestors: p.Ancestors}
	}
	byID[authoritative.ID] = pathresolve.Page{
		ID:          authoritative.ID,
		Title:       authoritative.Title,
		Ancestors:   authoritative.Ancestors,
		HasChildren: authoritative.HasChildren,
	}

	pages := make([]pathresolve.Page, 0, len(byID))
	for _, p := range byID {
		pages = append(pages, p)
	}

	homeID, _ := e.db.GetMeta("home_page_id")
	return pathresolve.Plan(pages, homeID, e.db.PathIndexSnapshot()), nil
}
