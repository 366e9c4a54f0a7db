package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/confluence-sync/internal/linkcheck"
)

var (
	linksCheck       bool
	linksConcurrency int
)

// linksCmd represents the links command.
var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Inspect and validate external links",
	Long: `Show external-link statistics discovered across synced pages, and
optionally validate them live over HTTP (§4.10).

Examples:
  # Show external-link counts grouped by host
  confluence-sync links

  # Probe every known external link and persist broken/live status
  confluence-sync links --check`,
	RunE: runLinks,
}

func init() {
	linksCmd.Flags().BoolVar(&linksCheck, "check", false, "validate every known external link over HTTP")
	linksCmd.Flags().IntVar(&linksConcurrency, "concurrency", 8, "number of links to probe concurrently")
}

func runLinks(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	links, err := db.GetExternalLinks("")
	if err != nil {
		return fmt.Errorf("get external links: %w", err)
	}

	if !linksCheck {
		byHost := map[string]int{}
		for _, l := range links {
			byHost[hostOfLink(l.TargetPath)]++
		}
		fmt.Printf("%d external link(s) across %d host(s)\n\n", len(links), len(byHost))
		for host, count := range byHost {
			fmt.Printf("  %-30s %4d\n", host, count)
		}
		if len(links) > 0 {
			fmt.Println("\nUse --check to validate these over HTTP.")
		}
		return nil
	}

	urls := make([]string, 0, len(links))
	seen := map[string]bool{}
	for _, l := range links {
		if !seen[l.TargetPath] {
			seen[l.TargetPath] = true
			urls = append(urls, l.TargetPath)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	checker := linkcheck.New()
	results := checker.CheckAll(ctx, urls, linksConcurrency)

	var broken int
	for _, l := range links {
		result, ok := results[l.TargetPath]
		if !ok {
			continue
		}
		if err := db.SetLinkBroken(l.SourcePageID, l.TargetPath, result.IsBroken); err != nil {
			return fmt.Errorf("record link status for %s: %w", l.TargetPath, err)
		}
		if result.IsBroken {
			broken++
			detail := result.Err
			if detail == "" {
				detail = fmt.Sprintf("HTTP %d", result.Status)
			}
			fmt.Printf("  BROKEN  %s (%s) referenced by %s\n", l.TargetPath, detail, l.SourcePageID)
		}
	}

	fmt.Printf("\nChecked %d unique link(s); %d broken.\n", len(urls), broken)
	return nil
}

func hostOfLink(url string) string {
	rest := url
	for _, prefix := range []string{"https://", "http://"} {
		if len(rest) > len(prefix) && rest[:len(prefix)] == prefix {
			rest = rest[len(prefix):]
			break
		}
	}
	for i, c := range rest {
		if c == '/' || c == '?' || c == '#' {
			return rest[:i]
		}
	}
	return rest
}
