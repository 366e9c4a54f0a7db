package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/frontmatter"
	"github.com/adamancini/confluence-sync/internal/hashnorm"
	"github.com/adamancini/confluence-sync/internal/merge"
	"github.com/adamancini/confluence-sync/internal/pathresolve"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
	"github.com/adamancini/confluence-sync/internal/store"
)

// ErrConflictMarkers is returned by Push when the file still carries
// unresolved conflict markers from a prior merge (§4.8.4).
var ErrConflictMarkers = errors.New("reconcile: file has unresolved conflict markers")

// Push reads relPath, resolves the page it's bound to (from front-matter,
// else from the path index; creating one if neither names a page and
// auto-create is enabled), and reconciles it with the
// remote: a clean three-way merge when the remote moved on since the last
// sync, a plain update otherwise (§4.8.3).
func (e *Engine) Push(ctx context.Context, relPath string) error {
	full := filepath.Join(e.cfg.WorkDir, filepath.FromSlash(relPath))
	raw, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			e.log.Debug("reconcile: push target no longer exists, skipping", zap.String("path", relPath))
			return nil
		}
		return fmt.Errorf("read %s: %w", relPath, err)
	}

	meta, body, err := frontmatter.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse front-matter: %w", err)
	}

	if merge.HasConflictMarkers(string(body)) {
		return fmt.Errorf("%w: %s", ErrConflictMarkers, relPath)
	}

	if !meta.IsBound() {
		if id, ok := e.db.PathOwner(relPath); ok {
			return e.pushBound(ctx, id, relPath, meta, body)
		}
		if !e.cfg.AutoCreate {
			e.log.Debug("reconcile: unbound file, auto-create disabled, skipping", zap.String("path", relPath))
			return nil
		}
		return e.createRemote(ctx, relPath, meta, body)
	}

	return e.pushBound(ctx, meta.PageID(), relPath, meta, body)
}

func (e *Engine) createRemote(ctx context.Context, relPath string, meta frontmatter.Meta, body []byte) error {
	storage, err := e.conv.MarkdownToStorage(string(body))
	if err != nil {
		return fmt.Errorf("convert markdown to storage: %w", err)
	}

	title := meta.Title()
	if title == "" {
		title = titleFromPath(relPath)
	}

	parentID := e.cfg.RootPageID
	if parentID == "" {
		parentID, _ = e.db.GetMeta("home_page_id")
	}

	created, err := e.client.CreatePage(ctx, remoteapi.PageCreate{
		SpaceKey: e.cfg.SpaceKey,
		Title:    title,
		Storage:  storage,
		ParentID: parentID,
	})
	if err != nil {
		return fmt.Errorf("create remote page: %w", err)
	}

	meta.SetPageID(created.ID)
	meta.SetTitle(created.Title)
	if err := writeFrontMatterFile(e.cfg.WorkDir, relPath, meta, body); err != nil {
		return fmt.Errorf("rewrite %s with bound id: %w", relPath, err)
	}

	hash := hashnorm.HashNormalized(body)
	if err := e.db.WriteBase(created.ID, string(body)); err != nil {
		return fmt.Errorf("write base snapshot: %w", err)
	}
	if err := e.db.SetPath(relPath, created.ID); err != nil {
		return fmt.Errorf("record path index: %w", err)
	}

	rec := store.Page{
		ID:             created.ID,
		Title:          created.Title,
		SpaceKey:       created.SpaceKey,
		ParentID:       created.ParentID,
		Ancestors:      created.Ancestors,
		ContentStatus:  created.Status,
		VersionCount:   created.Version,
		CreatedBy:      created.CreatedBy,
		CreatedAt:      created.CreatedAt,
		LastModifiedBy: created.LastModifiedBy,
		LastModifiedAt: created.LastModifiedAt,
		LocalPath:      relPath,
		BaseHash:       hash,
		LocalHash:      hash,
		RemoteHash:     hash,
		SyncState:      "synced",
		LastSync:       timeNow(),
	}
	return e.db.UpsertPage(rec)
}

func (e *Engine) pushBound(ctx context.Context, pageID, relPath string, meta frontmatter.Meta, body []byte) error {
	known, err := e.db.GetPage(pageID)
	if err != nil {
		return fmt.Errorf("load page record: %w", err)
	}
	if known == nil {
		return fmt.Errorf("page %s bound locally but has no sync record; run initial sync first", pageID)
	}

	remote, err := e.client.GetPage(ctx, pageID)
	if err != nil {
		var nf *remoteapi.NotFoundError
		if errors.As(err, &nf) {
			e.log.Warn("reconcile: push target no longer exists remotely", zap.String("page_id", pageID))
			known.SyncState = "remote-inaccessible"
			return e.db.UpsertPage(*known)
		}
		return fmt.Errorf("fetch current remote page: %w", err)
	}

	if remote.Version > known.VersionCount {
		return e.reconcileConflict(ctx, known, remote, relPath, body)
	}

	return e.uploadPush(ctx, known, remote, relPath, body)
}

// uploadPush converts and uploads local content as the new version, with no
// merge needed because the remote hasn't moved since the last sync.
func (e *Engine) uploadPush(ctx context.Context, known *store.Page, remote *remoteapi.Page, relPath string, body []byte) error {
	storage, err := e.conv.MarkdownToStorage(string(body))
	if err != nil {
		return fmt.Errorf("convert markdown to storage: %w", err)
	}

	if err := e.pushAttachments(ctx, known.ID, relPath); err != nil {
		e.log.Warn("reconcile: attachment push incomplete", zap.String("page_id", known.ID), zap.Error(err))
	}

	updated, err := e.client.UpdatePage(ctx, remoteapi.PageUpdate{
		ID:      known.ID,
		Title:   remote.Title,
		Storage: storage,
		Version: remote.Version,
	})
	if err != nil {
		var ce *remoteapi.ConflictError
		if errors.As(err, &ce) {
			return e.reconcileConflict(ctx, known, remote, relPath, body)
		}
		return fmt.Errorf("update remote page: %w", err)
	}

	meta := frontmatter.Meta{}
	meta.SetPageID(known.ID)
	meta.SetTitle(known.Title)
	if err := writeFrontMatterFile(e.cfg.WorkDir, relPath, meta, body); err != nil {
		return fmt.Errorf("write %s after push: %w", relPath, err)
	}

	hash := hashnorm.HashNormalized(body)
	if err := e.db.WriteBase(known.ID, string(body)); err != nil {
		return fmt.Errorf("write base snapshot: %w", err)
	}

	known.VersionCount = updated.Version
	known.LastModifiedBy = updated.LastModifiedBy
	known.LastModifiedAt = updated.LastModifiedAt
	known.BaseHash = hash
	known.LocalHash = hash
	known.RemoteHash = hash
	known.SyncState = "synced"
	known.LastSync = timeNow()
	return e.db.UpsertPage(*known)
}

// pushAttachments uploads every file in relPath's attachments directory,
// whether or not the page body references it; the storage body is not
// parsed for attachment references.
func (e *Engine) pushAttachments(ctx context.Context, pageID, relPath string) error {
	dir := filepath.Join(e.cfg.WorkDir, filepath.FromSlash(pathresolve.AttachmentsDir(relPath)))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read attachments directory: %w", err)
	}

	existing, err := e.client.ListAttachments(ctx, pageID)
	if err != nil {
		return fmt.Errorf("list remote attachments: %w", err)
	}
	byName := make(map[string]remoteapi.Attachment, len(existing))
	for _, a := range existing {
		byName[a.Filename] = a
	}

	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("read %s: %w", entry.Name(), err)
			}
			continue
		}

		if att, ok := byName[entry.Name()]; ok {
			if att.Size == int64(len(data)) {
				continue
			}
			if _, err := e.client.UpdateAttachment(ctx, pageID, att.ID, data); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("update attachment %s: %w", entry.Name(), err)
			}
			continue
		}
		if _, err := e.client.UploadAttachment(ctx, pageID, entry.Name(), data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("upload attachment %s: %w", entry.Name(), err)
		}
	}
	return firstErr
}

func titleFromPath(relPath string) string {
	base := filepath.Base(relPath)
	return base[:len(base)-len(filepath.Ext(base))]
}
