package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/frontmatter"
	"github.com/adamancini/confluence-sync/internal/hashnorm"
	"github.com/adamancini/confluence-sync/internal/merge"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
	"github.com/adamancini/confluence-sync/internal/store"
)

// reconcileConflict runs when the remote version has moved on past what
// this engine last observed. base comes from the state store's snapshot of
// the content at the last synced version; an absent base (never synced, or
// the snapshot predates this store) is itself treated as an unresolvable
// conflict under the "merge" policy, since there is nothing to diff against
// (§4.8.4).
func (e *Engine) reconcileConflict(ctx context.Context, known *store.Page, remote *remoteapi.Page, relPath string, localBody []byte) error {
	remoteMarkdown, err := e.conv.StorageToMarkdown(remote.Storage)
	if err != nil {
		return fmt.Errorf("convert remote storage to markdown: %w", err)
	}

	base, err := e.db.ReadBase(known.ID)
	if err != nil {
		return fmt.Errorf("read base snapshot: %w", err)
	}

	switch e.cfg.ConflictStrategy {
	case ConflictLocal:
		return e.uploadPush(ctx, known, remote, relPath, localBody)
	case ConflictRemote:
		return e.Pull(ctx, known.ID, relPath)
	default:
		return e.mergeAndResolve(ctx, known, remote, relPath, base, string(localBody), remoteMarkdown)
	}
}

func (e *Engine) mergeAndResolve(ctx context.Context, known *store.Page, remote *remoteapi.Page, relPath, base, local, remoteMarkdown string) error {
	if base == "" {
		return e.writeConflictFile(known, relPath, markerlessConflictBody(local, remoteMarkdown))
	}

	result := merge.Merge(base, local, remoteMarkdown)
	if !result.Success {
		e.log.Info("reconcile: merge produced conflict markers", zap.String("page_id", known.ID), zap.Int("conflicts", result.ConflictCount))
		return e.writeConflictFile(known, relPath, result.Content)
	}

	return e.uploadPush(ctx, known, remote, relPath, []byte(result.Content))
}

// markerlessConflictBody stages an unresolvable conflict (no base to merge
// against) as a single marked block containing both sides in full, reusing
// the same marker vocabulary merge.HasConflictMarkers checks for.
func markerlessConflictBody(local, remote string) string {
	return "<<<<<<< LOCAL\n" + local + "\n=======\n" + remote + "\n>>>>>>> REMOTE\n"
}

func (e *Engine) writeConflictFile(known *store.Page, relPath, content string) error {
	meta := frontmatter.Meta{}
	meta.SetPageID(known.ID)
	meta.SetTitle(known.Title)
	if err := writeFrontMatterFile(e.cfg.WorkDir, relPath, meta, []byte(content)); err != nil {
		return fmt.Errorf("write conflict file: %w", err)
	}

	known.LocalHash = hashnorm.HashNormalized([]byte(content))
	known.SyncState = "conflict"
	known.LastSync = timeNow()
	return e.db.UpsertPage(*known)
}
