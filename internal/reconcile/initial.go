package reconcile

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/frontmatter"
)

// InitialSync runs once on daemon start: it establishes the space's home
// page (for space-wide scope), binds local files to remote pages, and pulls
// everything that's missing or behind (§4.8.1).
func (e *Engine) InitialSync(ctx context.Context) error {
	if err := EnsureStateDirs(e.cfg.WorkDir); err != nil {
		return err
	}

	remotePages, err := e.client.GetAllPages(ctx, e.scope())
	if err != nil {
		return fmt.Errorf("fetch all pages: %w", err)
	}

	if e.cfg.RootPageID == "" {
		for _, p := range remotePages {
			if p.ParentID == "" && len(p.Ancestors) == 0 {
				if err := e.db.SetMeta("home_page_id", p.ID); err != nil {
					return fmt.Errorf("record home page: %w", err)
				}
				e.log.Info("reconcile: home page designated", zap.String("page_id", p.ID), zap.String("title", p.Title))
				break
			}
		}
	}

	bindings, err := e.walkBindings()
	if err != nil {
		return fmt.Errorf("walk working directory: %w", err)
	}

	for _, remote := range remotePages {
		known, err := e.db.GetPage(remote.ID)
		if err != nil {
			return fmt.Errorf("load page record for %s: %w", remote.ID, err)
		}

		needsPull := known == nil || remote.Version > known.VersionCount
		if !needsPull {
			continue
		}

		existingPath := bindings[remote.ID]
		if existingPath == "" && known != nil {
			existingPath = known.LocalPath
		}

		if err := e.Pull(ctx, remote.ID, existingPath); err != nil {
			e.log.Warn("reconcile: initial pull failed, will retry on next event", zap.String("page_id", remote.ID), zap.Error(err))
		}
	}

	return nil
}

// walkBindings scans the working directory for Markdown files and returns
// the page id -> relative path bindings found in their front-matter.
// InitialSync uses these first and falls back to the path in the page's
// state entry; legacy metadata sidecar files are not read or migrated.
func (e *Engine) walkBindings() (map[string]string, error) {
	bindings := make(map[string]string)

	root := e.cfg.WorkDir
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		slashRel := filepath.ToSlash(rel)

		if d.IsDir() {
			if e.matcher != nil && e.matcher.ShouldIgnore(slashRel) {
				return filepath.SkipDir
			}
			if strings.HasPrefix(filepath.Base(rel), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if filepath.Ext(path) != ".md" {
			return nil
		}
		if e.matcher != nil && e.matcher.ShouldIgnore(slashRel) {
			return nil
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		meta, _, parseErr := frontmatter.Parse(raw)
		if parseErr != nil || !meta.IsBound() {
			return nil
		}
		bindings[meta.PageID()] = slashRel
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return bindings, nil
}
