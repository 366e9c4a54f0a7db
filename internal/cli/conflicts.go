package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/confluence-sync/internal/frontmatter"
	"github.com/adamancini/confluence-sync/internal/logging"
	"github.com/adamancini/confluence-sync/internal/store"
)

var resolveKeep string

// conflictsCmd represents the conflicts command.
var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List and resolve sync conflicts",
	Long: `List all current sync conflicts and optionally resolve them.

A conflict occurs when both the local file and the remote Confluence
page were modified since the last sync and the three-way merge could
not reconcile every hunk (§4.8.4).

Examples:
  confluence-sync conflicts                                  # List all conflicts
  confluence-sync conflicts resolve path/to/page.md --keep local
  confluence-sync conflicts resolve path/to/page.md --keep remote`,
	RunE: runConflicts,
}

// resolveCmd represents the resolve subcommand.
var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Resolve a specific conflict",
	Long: `Resolve a specific sync conflict by keeping one version.

Options for --keep:
  local   - Keep the local version, strip conflict markers, and push it
  remote  - Discard the local edit and re-pull the remote version`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveKeep, "keep", "", "which version to keep (local|remote)")
	_ = resolveCmd.MarkFlagRequired("keep")
	conflictsCmd.AddCommand(resolveCmd)
}

func runConflicts(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	pages, err := db.ListPages(store.ListFilter{SpaceKey: cfg.Scope.SpaceKey, ContentStatus: ""})
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}

	var conflicts []store.Page
	for _, p := range pages {
		if p.SyncState == "conflict" {
			conflicts = append(conflicts, p)
		}
	}

	if len(conflicts) == 0 {
		fmt.Println("No conflicts found.")
		return nil
	}

	fmt.Printf("Found %d conflict(s):\n\n", len(conflicts))
	for _, p := range conflicts {
		fmt.Printf("  %s\n", p.LocalPath)
		fmt.Printf("    Page id:          %s\n", p.ID)
		fmt.Printf("    Last synced:      %s\n", p.LastSync.Format(time.RFC3339))
	}

	fmt.Println("\nTo resolve a conflict:")
	fmt.Println("  confluence-sync conflicts resolve <path> --keep local   # push the local edit")
	fmt.Println("  confluence-sync conflicts resolve <path> --keep remote  # discard the local edit")

	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	relPath := filepath.ToSlash(args[0])

	if resolveKeep != "local" && resolveKeep != "remote" {
		return fmt.Errorf("invalid --keep value: %s (must be local or remote)", resolveKeep)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	pageID, ok := db.PathOwner(relPath)
	if !ok {
		return fmt.Errorf("no known page bound to path: %s", relPath)
	}
	page, err := db.GetPage(pageID)
	if err != nil {
		return fmt.Errorf("load page record: %w", err)
	}
	if page == nil || page.SyncState != "conflict" {
		return fmt.Errorf("page is not in conflict state: %s", relPath)
	}

	log := logging.Nop()
	client := buildClient(cfg)
	matcher := buildMatcher(cfg)

	switch resolveKeep {
	case "remote":
		engine := buildEngine(cfg, client, db, matcher, log, 1)
		if err := engine.Pull(ctx, pageID, relPath); err != nil {
			return fmt.Errorf("pull remote version: %w", err)
		}
		fmt.Printf("Resolved conflict for %s: kept remote version\n", relPath)

	case "local":
		if err := stripToLocalSide(cfg.WorkDir, relPath); err != nil {
			return fmt.Errorf("strip conflict markers: %w", err)
		}
		forcedCfg := *cfg
		forcedCfg.Sync.ConflictStrategy = "ours"
		engine := buildEngine(&forcedCfg, client, db, matcher, log, 1)
		if err := engine.Push(ctx, relPath); err != nil {
			return fmt.Errorf("push local version: %w", err)
		}
		fmt.Printf("Resolved conflict for %s: kept local version\n", relPath)
	}

	return nil
}

// stripToLocalSide rewrites a conflict-marked file to contain only its
// "<<<<<<< LOCAL" section, discarding the remote side and the markers
// themselves, so the subsequent forced push passes reconcile's
// conflict-marker guard.
func stripToLocalSide(workDir, relPath string) error {
	full := filepath.Join(workDir, filepath.FromSlash(relPath))
	raw, err := os.ReadFile(full)
	if err != nil {
		return err
	}
	meta, body, err := frontmatter.Parse(raw)
	if err != nil {
		return err
	}

	lines := strings.Split(string(body), "\n")
	var out []string
	inConflict, inLocal := false, false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "<<<<<<< LOCAL"):
			inConflict, inLocal = true, true
			continue
		case line == "=======" && inConflict:
			inLocal = false
			continue
		case strings.HasPrefix(line, ">>>>>>> REMOTE"):
			inConflict, inLocal = false, false
			continue
		}
		if inConflict && !inLocal {
			continue
		}
		out = append(out, line)
	}

	content, err := frontmatter.Write(meta, []byte(strings.Join(out, "\n")))
	if err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}
