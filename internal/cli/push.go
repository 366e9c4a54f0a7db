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

	"github.com/adamancini/confluence-sync/internal/ignore"
	"github.com/adamancini/confluence-sync/internal/logging"
	"github.com/adamancini/confluence-sync/internal/reconcile"
	"github.com/adamancini/confluence-sync/internal/worker"
)

var (
	pushAll    bool
	pushPath   string
	pushDryRun bool
)

// pushCmd represents the push command.
var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push local changes to Confluence",
	Long: `Push local Markdown changes to Confluence.

By default, only pushes files whose content has changed since the last
push (an unbound file always qualifies, as a candidate for auto-create).
Use --all to push every Markdown file that is not ignored, regardless of
change detection.

Examples:
  confluence-sync push                      # Push all changed files
  confluence-sync push --all                # Push every file in scope
  confluence-sync push --path "specs/*.md"  # Push files matching a glob
  confluence-sync push --dry-run            # Show what would be pushed`,
	RunE: runPush,
}

func init() {
	pushCmd.Flags().BoolVar(&pushAll, "all", false, "push every Markdown file that is not ignored, not just changed ones")
	pushCmd.Flags().StringVar(&pushPath, "path", "", "glob pattern to filter which local paths are pushed")
	pushCmd.Flags().BoolVar(&pushDryRun, "dry-run", false, "show what would be pushed without making changes")
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	matcher := buildMatcher(cfg)

	var candidates []string
	if pushAll {
		candidates, err = allMarkdownFiles(cfg.WorkDir, matcher)
	} else {
		candidates, err = changedLocalFiles(cfg.WorkDir, db, matcher)
	}
	if err != nil {
		return fmt.Errorf("scan working directory: %w", err)
	}

	if pushPath != "" {
		var filtered []string
		for _, rel := range candidates {
			if matched, _ := filepath.Match(pushPath, rel); matched {
				filtered = append(filtered, rel)
			}
		}
		candidates = filtered
	}

	if len(candidates) == 0 {
		fmt.Println("No files to push.")
		return nil
	}

	if pushDryRun {
		fmt.Printf("Would push %d file(s):\n", len(candidates))
		for _, rel := range candidates {
			fmt.Printf("  -> %s\n", rel)
		}
		return nil
	}

	fmt.Printf("Pushing %d file(s) to Confluence...\n", len(candidates))

	log := logging.Nop()
	client := buildClient(cfg)
	engine := buildEngine(cfg, client, db, matcher, log, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool := worker.New(4)
	results := worker.Process(ctx, pool, candidates, func(ctx context.Context, rel string) (struct{}, error) {
		return struct{}{}, engine.Push(ctx, rel)
	}, nil)

	var pushed, failed int
	var conflicted []string
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

	fmt.Println()
	fmt.Println("Push complete:")
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

// allMarkdownFiles walks the working directory and returns every
// non-ignored Markdown file's slash-separated relative path, regardless
// of bound/changed status.
func allMarkdownFiles(workDir string, matcher *ignore.Matcher) ([]string, error) {
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
		out = append(out, slashRel)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return out, nil
}
