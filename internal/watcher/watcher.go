// Package watcher is the local change source: a recursive fsnotify
// directory watch with debounced, hash-filtered, attachment-aware push
// candidates (SPEC_FULL.md §4.6).
//
// Grounded on internal/cli/watch.go's watcher struct and run loop: the
// recursive fsnotify.Add walk, the pendingChanges map plus 500ms debounce
// ticker, and the signal-driven shutdown are kept in shape; the markdown
// collector/transform/push pipeline that used to live inline here is gone
// — this package detects, debounces and hash-filters candidate paths and
// hands them to the reconciliation engine via a channel (§4.6).
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/hashnorm"
	"github.com/adamancini/confluence-sync/internal/ignore"
)

const debounceWindow = 500 * time.Millisecond

// Change is a debounced, hash-verified local file change ready for push.
type Change struct {
	RelPath string
	Deleted bool
}

// KnownHash looks up the last-seen content hash for relPath, so the
// watcher can drop events that didn't actually change content (editor
// touch-writes, the sync engine's own writes). A missing entry (ok=false)
// means the file is untracked and the event always proceeds.
type KnownHash func(relPath string) (hash string, ok bool)

// Watcher watches root recursively and emits debounced Changes.
type Watcher struct {
	root    string
	matcher *ignore.Matcher
	known   KnownHash
	changes chan<- Change
	log     *zap.Logger

	fsWatcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]time.Time
}

// New builds a Watcher. changes is owned by the caller; Watcher never
// closes it.
func New(root string, matcher *ignore.Matcher, known KnownHash, changes chan<- Change, log *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:      root,
		matcher:   matcher,
		known:     known,
		changes:   changes,
		log:       log,
		fsWatcher: fsWatcher,
		pending:   make(map[string]time.Time),
	}

	if err := w.addRecursive(root); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && w.matcher.ShouldIgnore(rel) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Run blocks, processing fsnotify events and the debounce ticker until
// stop is closed.
func (w *Watcher) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher: fsnotify error", zap.Error(err))
		case <-ticker.C:
			w.flushDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)

	if event.Has(fsnotify.Create) {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			if !w.matcher.ShouldIgnore(relPath) {
				_ = w.fsWatcher.Add(event.Name)
			}
			return
		}
	}

	// §4.6: changes under *.attachments/ are rewritten to the owning page file.
	if owner, ok := attachmentOwner(relPath); ok {
		relPath = owner
	}

	if !strings.HasSuffix(relPath, ".md") {
		return
	}
	if w.matcher.ShouldIgnore(relPath) {
		return
	}

	w.pendingMu.Lock()
	w.pending[relPath] = time.Now()
	w.pendingMu.Unlock()
}

// attachmentOwner maps a path under a "*.attachments/" directory back to
// the Markdown file that owns it (the inverse of pathresolve.AttachmentsDir).
func attachmentOwner(relPath string) (owner string, ok bool) {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	if !strings.HasSuffix(dir, ".attachments") {
		return "", false
	}
	stem := strings.TrimSuffix(dir, ".attachments")
	return stem + ".md", true
}

func (w *Watcher) flushDebounced() {
	w.pendingMu.Lock()
	now := time.Now()
	var ready []string
	for relPath, changedAt := range w.pending {
		if now.Sub(changedAt) >= debounceWindow {
			ready = append(ready, relPath)
		}
	}
	for _, relPath := range ready {
		delete(w.pending, relPath)
	}
	w.pendingMu.Unlock()

	for _, relPath := range ready {
		w.maybeEmit(relPath)
	}
}

func (w *Watcher) maybeEmit(relPath string) {
	fullPath := filepath.Join(w.root, filepath.FromSlash(relPath))

	content, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		w.changes <- Change{RelPath: relPath, Deleted: true}
		return
	}
	if err != nil {
		w.log.Warn("watcher: read failed, will retry on next change", zap.String("path", relPath), zap.Error(err))
		return
	}

	hash := hashnorm.HashNormalized(content)
	if known, ok := w.known(relPath); ok && known == hash {
		return // spurious write: content unchanged since last sync (§4.6)
	}

	w.changes <- Change{RelPath: relPath}
}
