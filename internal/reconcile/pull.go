package reconcile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/frontmatter"
	"github.com/adamancini/confluence-sync/internal/hashnorm"
	"github.com/adamancini/confluence-sync/internal/pathresolve"
	"github.com/adamancini/confluence-sync/internal/store"
)

// Pull fetches pageID from the remote, converts it to Markdown, resolves its
// target path (detecting and applying a move if one occurred), writes the
// file, and updates every piece of state that depends on the page's content
// or location (§4.8.2).
//
// existingPath is the path currently recorded for pageID in the path index,
// or "" for a page not yet seen locally.
func (e *Engine) Pull(ctx context.Context, pageID, existingPath string) error {
	remote, err := e.client.GetPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("fetch page %s: %w", pageID, err)
	}

	markdown, err := e.conv.StorageToMarkdown(remote.Storage)
	if err != nil {
		return fmt.Errorf("convert storage to markdown: %w", err)
	}

	planned, err := e.planPaths(ctx, *remote)
	if err != nil {
		return err
	}
	relPath := planned[remote.ID]
	if relPath == "" {
		return fmt.Errorf("path planner produced no path for page %s", remote.ID)
	}

	existing, err := e.db.GetPage(remote.ID)
	if err != nil {
		return fmt.Errorf("load page record: %w", err)
	}

	moved := existing != nil && existingPath != "" && existingPath != relPath
	if moved {
		if err := e.applyMove(existingPath, relPath); err != nil {
			return fmt.Errorf("apply move %s -> %s: %w", existingPath, relPath, err)
		}
		e.log.Info("reconcile: page moved", zap.String("page_id", remote.ID), zap.String("from", existingPath), zap.String("to", relPath))
	}

	meta := frontmatter.Meta{}
	meta.SetPageID(remote.ID)
	meta.SetTitle(remote.Title)
	if labels := remote.Labels; len(labels) > 0 {
		meta["labels"] = labels
	}

	if err := writeFrontMatterFile(e.cfg.WorkDir, relPath, meta, []byte(markdown)); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}

	if err := e.pullAttachments(ctx, remote.ID, relPath); err != nil {
		e.log.Warn("reconcile: attachment pull incomplete", zap.String("page_id", remote.ID), zap.Error(err))
	}

	hash := hashnorm.HashNormalized([]byte(markdown))
	if err := e.db.WriteBase(remote.ID, markdown); err != nil {
		return fmt.Errorf("write base snapshot: %w", err)
	}
	if err := e.db.SetPath(relPath, remote.ID); err != nil {
		return fmt.Errorf("record path index: %w", err)
	}

	rec := store.Page{
		ID:             remote.ID,
		Title:          remote.Title,
		SpaceKey:       remote.SpaceKey,
		ParentID:       remote.ParentID,
		Ancestors:      remote.Ancestors,
		ContentStatus:  remote.Status,
		Restricted:     remote.Restricted,
		VersionCount:   remote.Version,
		CreatedBy:      remote.CreatedBy,
		CreatedAt:      remote.CreatedAt,
		LastModifiedBy: remote.LastModifiedBy,
		LastModifiedAt: remote.LastModifiedAt,
		LocalPath:      relPath,
		BaseHash:       hash,
		LocalHash:      hash,
		RemoteHash:     hash,
		SyncState:      "synced",
		LastSync:       timeNow(),
	}
	if err := e.db.UpsertPage(rec); err != nil {
		return fmt.Errorf("upsert page record: %w", err)
	}

	links := ExtractLinks(remote.ID, remote.Storage)
	if err := e.db.SetPageLinks(remote.ID, links); err != nil {
		return fmt.Errorf("record links: %w", err)
	}

	return nil
}

// applyMove renames a page file and its attachments directory on disk and
// repoints the path index (§4.3 move handling).
func (e *Engine) applyMove(fromRelPath, toRelPath string) error {
	from := filepath.Join(e.cfg.WorkDir, filepath.FromSlash(fromRelPath))
	to := filepath.Join(e.cfg.WorkDir, filepath.FromSlash(toRelPath))

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(from); err == nil {
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("rename file: %w", err)
		}
	}

	fromAttach := filepath.Join(e.cfg.WorkDir, filepath.FromSlash(pathresolve.AttachmentsDir(fromRelPath)))
	toAttach := filepath.Join(e.cfg.WorkDir, filepath.FromSlash(pathresolve.AttachmentsDir(toRelPath)))
	if _, err := os.Stat(fromAttach); err == nil {
		if err := os.Rename(fromAttach, toAttach); err != nil {
			return fmt.Errorf("rename attachments dir: %w", err)
		}
	}

	if err := e.db.RemovePath(fromRelPath); err != nil {
		return err
	}
	return nil
}

// pullAttachments downloads every attachment the remote API lists for the
// page, whether or not its storage body references it, into relPath's
// attachments directory, skipping ones already
// present with the same byte size (cheap drift check; the remote API does
// not expose a content hash for attachments). The attachment API surfaces
// only metadata and a media URL, so the bytes come from a plain HTTP GET
// against that URL rather than a dedicated download method.
func (e *Engine) pullAttachments(ctx context.Context, pageID, relPath string) error {
	refs, err := e.client.ListAttachments(ctx, pageID)
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	if len(refs) == 0 {
		return nil
	}

	dir := filepath.Join(e.cfg.WorkDir, filepath.FromSlash(pathresolve.AttachmentsDir(relPath)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create attachments directory: %w", err)
	}

	var firstErr error
	for _, att := range refs {
		dest := filepath.Join(dir, att.Filename)
		if info, err := os.Stat(dest); err == nil && info.Size() == att.Size {
			continue
		}
		if att.MediaURL == "" {
			continue
		}
		if err := e.downloadAttachment(ctx, att.MediaURL, dest); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("download attachment %s: %w", att.Filename, err)
		}
	}
	return firstErr
}

func (e *Engine) downloadAttachment(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := e.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// timeNow is a seam so tests can observe a fixed clock without the engine
// reaching for time.Now() directly (the spec's no-toolchain constraint means
// wall-clock-dependent assertions are otherwise brittle to run later).
var timeNow = func() time.Time { return time.Now() }
