package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/confluence-sync/internal/frontmatter"
	"github.com/adamancini/confluence-sync/internal/hashnorm"
	"github.com/adamancini/confluence-sync/internal/ignore"
	"github.com/adamancini/confluence-sync/internal/logging"
	"github.com/adamancini/confluence-sync/internal/reconcile"
	"github.com/adamancini/confluence-sync/internal/store"
	"github.com/adamancini/confluence-sync/internal/worker"
)

var syncDryRun bool

// syncCmd represents the sync command.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a one-shot bidirectional sync",
	Long: `Run a single bidirectional sync pass.

First every remote page that is new or has moved on since the last sync
is pulled (§4.8.1), then every local Markdown file whose content has
changed since its last push is pushed (§4.8.3). Conflicts are resolved
according to the configured conflict strategy; any left as conflict
markers are reported at the end and must be resolved with
'confluence-sync conflicts resolve'.

For continuous syncing, use 'confluence-sync watch' instead.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report what would sync without making changes")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	log := logging.Nop()
	client := buildClient(cfg)
	matcher := buildMatcher(cfg)
	engine := buildEngine(cfg, client, db, matcher, log, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	fmt.Printf("Syncing: %s\n", cfg.WorkDir)
	if syncDryRun {
		fmt.Println("(dry-run mode - no changes will be made)")
	}
	fmt.Println()

	candidates, err := changedLocalFiles(cfg.WorkDir, db, matcher)
	if err != nil {
		return fmt.Errorf("scan working directory: %w", err)
	}

	if syncDryRun {
		fmt.Println("Would pull: any remote page new or ahead of its last synced version")
		fmt.Printf("Would push: %d file(s)\n", len(candidates))
		for _, rel := range candidates {
			fmt.Printf("  -> %s\n", rel)
		}
		return nil
	}

	fmt.Println("Pulling remote changes...")
	if err := engine.InitialSync(ctx); err != nil {
		return fmt.Errorf("pull remote changes: %w", err)
	}

	var pushed, failed int
	var conflicted []string
	if len(candidates) > 0 {
		fmt.Printf("Pushing %d changed file(s)...\n", len(candidates))

		pool := worker.New(4)
		results := worker.Process(ctx, pool, candidates, func(ctx context.Context, rel string) (struct{}, error) {
			return struct{}{}, engine.Push(ctx, rel)
		}, nil)

		for _, r := range results {
			switch {
			case r.Err == nil:
				pushed++
				if verbose {
					fmt.Printf("  -> %s\n", r.Input)
				}
			case errors.Is(r.Err, reconcile.ErrConflictMarkers):
				conflicted = append(conflicted, r.Input)
			default:
				failed++
				fmt.Fprintf(os.Stderr, "  error pushing %s: %v\n", r.Input, r.Err)
			}
		}
	}

	fmt.Println()
	fmt.Println("Sync complete:")
	fmt.Printf("  Pushed: %d\n", pushed)
	if len(conflicted) > 0 {
		fmt.Printf("  Conflicts: %d (resolve with 'confluence-sync conflicts resolve')\n", len(conflicted))
		for _, p := range conflicted {
			fmt.Printf("    ! %s\n", p)
		}
	}
	if failed > 0 {
		fmt.Printf("  Failed: %d\n", failed)
		return fmt.Errorf("%d file(s) failed to push", failed)
	}

	return nil
}

// changedLocalFiles walks the working directory and returns the
// slash-separated relative paths of every Markdown file that is either
// unbound (a push candidate for auto-create) or bound with a content
// hash that no longer matches its last recorded local hash.
func changedLocalFiles(workDir string, db *store.DB, matcher *ignore.Matcher) ([]string, error) {
	var out []string
	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(workDir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		slashRel := filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher != nil && matcher.ShouldIgnore(slashRel) {
				return filepath.SkipDir
			}
			if len(filepath.Base(rel)) > 0 && filepath.Base(rel)[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}

		if filepath.Ext(path) != ".md" {
			return nil
		}
		if matcher != nil && matcher.ShouldIgnore(slashRel) {
			return nil
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		meta, body, parseErr := frontmatter.Parse(raw)
		if parseErr != nil {
			return nil
		}

		if !meta.IsBound() {
			out = append(out, slashRel)
			return nil
		}

		known, getErr := db.GetPage(meta.PageID())
		if getErr != nil {
			return nil
		}
		if known == nil || hashnorm.HashNormalized(body) != known.LocalHash {
			out = append(out, slashRel)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return out, nil
}
