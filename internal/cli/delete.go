package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/confluence-sync/internal/logging"
)

var deleteYes bool

// deleteCmd represents the delete command.
var deleteCmd = &cobra.Command{
	Use:   "delete <path-or-page-id>",
	Short: "Delete a synced page, locally and remotely",
	Long: `Delete a page both remotely and locally (§4.8.5).

The argument may be a local Markdown path (relative to the sync root) or
a Confluence page ID. Remotely, the page is archived or deleted outright
depending on the configured deletion strategy ("surface" or "mirror");
locally, the Markdown file, its attachments directory, and its path
index entry are removed.

This is the only command that removes a remote page: 'watch' never
deletes remotely just because a local file disappeared.

Examples:
  confluence-sync delete notes/old-page.md
  confluence-sync delete 123456 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	arg := args[0]
	pageID := arg
	if looksLikeLocalPath(cfg.WorkDir, arg) {
		rel := filepath.ToSlash(arg)
		id, ok := db.PathOwner(rel)
		if !ok {
			return fmt.Errorf("no tracked page is bound to %s", rel)
		}
		pageID = id
	}

	known, err := db.GetPage(pageID)
	if err != nil {
		return fmt.Errorf("load page record: %w", err)
	}
	if known == nil {
		return fmt.Errorf("page %s is not tracked", pageID)
	}

	strategy := cfg.Sync.DeletionStrategy
	verb := "archive"
	if strategy == "mirror" {
		verb = "permanently delete"
	}

	if !deleteYes {
		fmt.Printf("About to %s %q (%s) remotely and remove it locally.\n", verb, known.Title, pageID)
		fmt.Print("Continue? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	log, err := logging.New(verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	client := buildClient(cfg)
	matcher := buildMatcher(cfg)
	engine := buildEngine(cfg, client, db, matcher, log, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := engine.Delete(ctx, pageID); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}

	fmt.Printf("Deleted %q (%s).\n", known.Title, pageID)
	return nil
}

// looksLikeLocalPath reports whether arg is treated as a local path rather
// than a bare Confluence page ID: true for any argument ending in ".md" or
// naming an existing file or directory under workDir.
func looksLikeLocalPath(workDir, arg string) bool {
	if strings.HasSuffix(arg, ".md") {
		return true
	}
	if _, err := os.Stat(filepath.Join(workDir, arg)); err == nil {
		return true
	}
	return false
}
