package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/confluence-sync/internal/store"
)

var statusShowAll bool

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long: `Show the current sync status between the local directory and Confluence.

Displays counts of:
  - Local-modified pages (to push)
  - Remote-modified pages (to pull)
  - Conflicts (both sides modified)
  - Synced pages (up to date)
  - Untracked pages (known locally but never synced)`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusShowAll, "all", "a", false, "list pages in each category, not just counts")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	pages, err := db.ListPages(store.ListFilter{SpaceKey: cfg.Scope.SpaceKey})
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}

	byState := map[string][]store.Page{}
	for _, p := range pages {
		byState[p.SyncState] = append(byState[p.SyncState], p)
	}

	brokenLinks, err := db.GetBrokenLinks()
	if err != nil {
		return fmt.Errorf("get broken links: %w", err)
	}

	fmt.Printf("Sync status for: %s\n\n", cfg.WorkDir)

	printStatusLine("Synced", len(byState["synced"]))
	printStatusLine("Local-modified (push)", len(byState["local-modified"]))
	printStatusLine("Remote-modified (pull)", len(byState["remote-modified"]))
	printStatusLine("Conflicts", len(byState["conflict"]))
	printStatusLine("Untracked", len(byState["untracked"]))
	printStatusLine("Remote-inaccessible", len(byState["remote-inaccessible"]))
	fmt.Println()
	printStatusLine("Broken links", len(brokenLinks))

	if statusShowAll {
		for _, label := range []string{"local-modified", "remote-modified", "conflict", "untracked", "remote-inaccessible"} {
			listed := byState[label]
			if len(listed) == 0 {
				continue
			}
			fmt.Printf("\n%s:\n", label)
			for _, p := range listed {
				fmt.Printf("  %s  %s\n", p.ID, p.LocalPath)
			}
		}
	}

	return nil
}

// printStatusLine prints a formatted status line with count.
func printStatusLine(label string, count int) {
	noun := "pages"
	if count == 1 {
		noun = "page"
	}
	fmt.Printf("  %-24s %4d %s\n", label+":", count, noun)
}
