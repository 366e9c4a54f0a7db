package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/pathresolve"
)

// Delete removes pageID remotely (archiving or deleting outright, per the
// configured deletion strategy) and removes its local file and attachments
// directory. This is the only path by which a deletion propagates in either
// direction: the watcher never calls this on its own (§4.8.5, a deliberate
// redesign away from the teacher's watch.go, which deleted the remote page
// the instant it noticed the local file was gone).
func (e *Engine) Delete(ctx context.Context, pageID string) error {
	known, err := e.db.GetPage(pageID)
	if err != nil {
		return fmt.Errorf("load page record: %w", err)
	}
	if known == nil {
		return fmt.Errorf("page %s is not tracked", pageID)
	}

	switch e.cfg.DeletionStrategy {
	case DeletionMirror:
		if err := e.client.DeletePage(ctx, pageID); err != nil {
			return fmt.Errorf("delete remote page: %w", err)
		}
	default:
		if err := e.client.ArchivePage(ctx, pageID); err != nil {
			return fmt.Errorf("archive remote page: %w", err)
		}
	}

	if known.LocalPath != "" {
		full := filepath.Join(e.cfg.WorkDir, filepath.FromSlash(known.LocalPath))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			e.log.Warn("reconcile: could not remove local file after delete", zap.String("path", known.LocalPath), zap.Error(err))
		}
		attachDir := filepath.Join(e.cfg.WorkDir, filepath.FromSlash(pathresolve.AttachmentsDir(known.LocalPath)))
		if err := os.RemoveAll(attachDir); err != nil {
			e.log.Warn("reconcile: could not remove attachments directory", zap.String("dir", attachDir), zap.Error(err))
		}
		if err := e.db.RemovePath(known.LocalPath); err != nil {
			e.log.Warn("reconcile: could not clear path index entry", zap.Error(err))
		}
	}

	return e.db.DeletePage(pageID)
}
