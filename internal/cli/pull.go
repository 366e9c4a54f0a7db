package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/confluence-sync/internal/logging"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
	"github.com/adamancini/confluence-sync/internal/worker"
)

var (
	pullAll    bool
	pullPath   string
	pullDryRun bool
)

// pullCmd represents the pull command.
var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull changes from Confluence into the local directory",
	Long: `Pull changes from Confluence into the local directory tree.

By default, only pulls pages whose remote version has advanced past
what was last synced, or that have never been pulled before. Use --all
to re-pull every page in scope regardless of version.

Examples:
  confluence-sync pull                      # Pull everything changed
  confluence-sync pull --all                # Re-pull every page in scope
  confluence-sync pull --path "specs/*.md"  # Pull pages matching a glob
  confluence-sync pull --dry-run            # Show what would be pulled`,
	RunE: runPull,
}

func init() {
	pullCmd.Flags().BoolVar(&pullAll, "all", false, "re-pull every page in scope, not just changed ones")
	pullCmd.Flags().StringVar(&pullPath, "path", "", "glob pattern to filter which local paths are pulled")
	pullCmd.Flags().BoolVar(&pullDryRun, "dry-run", false, "show what would be pulled without making changes")
}

type pullCandidate struct {
	pageID       string
	localPath    string
	isNew        bool
	remoteExtras remoteapi.Page
}

func runPull(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	client := buildClient(cfg)
	remotePages, err := client.GetAllPages(ctx, remoteapi.Scope{SpaceKey: cfg.Scope.SpaceKey, RootID: cfg.Scope.RootPageID})
	if err != nil {
		return fmt.Errorf("fetch pages from Confluence: %w", err)
	}

	var candidates []pullCandidate
	for _, remote := range remotePages {
		known, err := db.GetPage(remote.ID)
		if err != nil {
			return fmt.Errorf("load page record for %s: %w", remote.ID, err)
		}

		needsPull := pullAll || known == nil || remote.Version > known.VersionCount
		if !needsPull {
			continue
		}

		localPath := ""
		if known != nil {
			localPath = known.LocalPath
		}
		if localPath == "" {
			localPath, err = db.PathForPage(remote.ID)
			if err != nil {
				return fmt.Errorf("look up path for %s: %w", remote.ID, err)
			}
		}

		if pullPath != "" {
			matchAgainst := localPath
			if matchAgainst == "" {
				matchAgainst = remote.Title + ".md"
			}
			if matched, _ := filepath.Match(pullPath, matchAgainst); !matched {
				continue
			}
		}

		candidates = append(candidates, pullCandidate{pageID: remote.ID, localPath: localPath, isNew: known == nil, remoteExtras: remote})
	}

	if len(candidates) == 0 {
		fmt.Println("Nothing to pull.")
		return nil
	}

	if pullDryRun {
		fmt.Printf("Would pull %d page(s):\n", len(candidates))
		for _, c := range candidates {
			marker := "M"
			dest := c.localPath
			if c.isNew {
				marker = "+"
				if dest == "" {
					dest = c.remoteExtras.Title + ".md (path to be resolved)"
				}
			}
			fmt.Printf("  %s %s\n", marker, dest)
		}
		return nil
	}

	fmt.Printf("Pulling %d page(s) from Confluence...\n", len(candidates))

	log := logging.Nop()
	matcher := buildMatcher(cfg)
	engine := buildEngine(cfg, client, db, matcher, log, 4)

	pool := worker.New(4)
	results := worker.Process(ctx, pool, candidates, func(ctx context.Context, c pullCandidate) (struct{}, error) {
		return struct{}{}, engine.Pull(ctx, c.pageID, c.localPath)
	}, nil)

	var created, updated, failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  error pulling %s: %v\n", r.Input.pageID, r.Err)
			continue
		}
		if r.Input.isNew {
			created++
			if verbose {
				fmt.Printf("  + %s\n", r.Input.localPath)
			}
		} else {
			updated++
			if verbose {
				fmt.Printf("  M %s\n", r.Input.localPath)
			}
		}
	}

	fmt.Println()
	fmt.Println("Pull complete:")
	fmt.Printf("  Created: %d\n", created)
	fmt.Printf("  Updated: %d\n", updated)
	if failed > 0 {
		fmt.Printf("  Failed:  %d\n", failed)
		return fmt.Errorf("%d page(s) failed to pull", failed)
	}

	return nil
}
