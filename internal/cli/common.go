package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/config"
	"github.com/adamancini/confluence-sync/internal/docconv"
	"github.com/adamancini/confluence-sync/internal/ignore"
	"github.com/adamancini/confluence-sync/internal/reconcile"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
	"github.com/adamancini/confluence-sync/internal/store"
)

// buildClient constructs the remote API client from config (§11.3).
func buildClient(cfg *config.Config) remoteapi.Client {
	var opts []remoteapi.Option
	if cfg.RateLimit.RequestsPerSecond > 0 {
		opts = append(opts, remoteapi.WithRateLimit(cfg.RateLimit.RequestsPerSecond))
	}
	return remoteapi.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Token, opts...)
}

// openStore opens the state database under the sync root's .syncroot
// directory, creating it on first use.
func openStore(cfg *config.Config) (*store.DB, error) {
	if err := reconcile.EnsureStateDirs(cfg.WorkDir); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(cfg.WorkDir, ".syncroot", "state.db")
	db, err := store.Open(dbPath, cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	return db, nil
}

// buildMatcher loads the ignore matcher from config-supplied patterns plus
// the patterns in the working directory's .syncignore file, if present
// (one per line; blank lines and lines starting with "#" are skipped).
func buildMatcher(cfg *config.Config) *ignore.Matcher {
	patterns := append([]string(nil), cfg.Sync.Ignore...)
	if data, err := os.ReadFile(filepath.Join(cfg.WorkDir, ".syncignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				patterns = append(patterns, line)
			}
		}
	}
	return ignore.New(patterns)
}

// conflictPolicy maps the config's user-facing strategy names to the
// engine's internal policy. "manual" and "newer" both resolve to
// ConflictMerge: both attempt a three-way merge and fall back to
// conflict markers on an unresolvable hunk; the config distinguishes
// them only for documentation purposes since no original-source
// material exists to show a behavioral difference between the two.
func conflictPolicy(strategy string) reconcile.ConflictPolicy {
	switch strategy {
	case "ours":
		return reconcile.ConflictLocal
	case "theirs":
		return reconcile.ConflictRemote
	default:
		return reconcile.ConflictMerge
	}
}

func deletionStrategy(strategy string) reconcile.DeletionStrategy {
	if strategy == "mirror" {
		return reconcile.DeletionMirror
	}
	return reconcile.DeletionSurface
}

// buildEngine wires the reconciliation engine from loaded config,
// sharing the store/client/matcher/logger the caller already built.
func buildEngine(cfg *config.Config, client remoteapi.Client, db *store.DB, matcher *ignore.Matcher, log *zap.Logger, workers int) *reconcile.Engine {
	econf := reconcile.Config{
		WorkDir:          cfg.WorkDir,
		SpaceKey:         cfg.Scope.SpaceKey,
		RootPageID:       cfg.Scope.RootPageID,
		ConflictStrategy: conflictPolicy(cfg.Sync.ConflictStrategy),
		DeletionStrategy: deletionStrategy(cfg.Sync.DeletionStrategy),
		AutoCreate:       true,
	}
	return reconcile.New(client, db, docconv.New(), matcher, econf, workers, log)
}
