package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/confluence-sync/internal/audit"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
)

var (
	auditAll           bool
	auditStale         bool
	auditOrphans       bool
	auditBrokenLinks   bool
	auditContributors  bool
	auditExternalLinks bool
	auditMissingLabel  bool
	auditContentStatus bool
	auditHighChurn     bool
	auditUnsynced      bool

	auditRequiredLabel string
	auditIncludeLabel  string
	auditExcludeLabel  string
	auditAncestorID    string
	auditHighChurnMin  int
)

// auditCmd represents the audit command.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run read-only content-hygiene checks against the synced space",
	Long: `Run one or more content-hygiene checks against the pages known to the
state store (§4.9): stale pages, orphans, broken links, bus-factor/
no-maintainer risk, external-link hosts, missing-label pages, non-current
content status, high-churn pages, and pages that exist remotely but were
never synced.

Every check is opt-in; pass --all to run them all (the Unsynced check
only runs under --all or --unsynced when a remote client can be built).

Examples:
  confluence-sync audit --all
  confluence-sync audit --stale --orphans
  confluence-sync audit --missing-label --required-label reviewed`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().BoolVar(&auditAll, "all", false, "run every check")
	auditCmd.Flags().BoolVar(&auditStale, "stale", false, "flag pages with no remote edit within the configured window")
	auditCmd.Flags().BoolVar(&auditOrphans, "orphans", false, "flag pages with no inbound links and no parent")
	auditCmd.Flags().BoolVar(&auditBrokenLinks, "broken-links", false, "list links already recorded as broken")
	auditCmd.Flags().BoolVar(&auditContributors, "contributors", false, "flag bus-factor and no-maintainer risk")
	auditCmd.Flags().BoolVar(&auditExternalLinks, "external-links", false, "group known external links by host")
	auditCmd.Flags().BoolVar(&auditMissingLabel, "missing-label", false, "flag pages missing the required label")
	auditCmd.Flags().BoolVar(&auditContentStatus, "content-status", false, "flag restricted, draft, and archived pages")
	auditCmd.Flags().BoolVar(&auditHighChurn, "high-churn", false, "flag pages with unusually high version churn")
	auditCmd.Flags().BoolVar(&auditUnsynced, "unsynced", false, "flag remote pages never pulled locally")

	auditCmd.Flags().StringVar(&auditRequiredLabel, "required-label", "", "label required by --missing-label (default: config value)")
	auditCmd.Flags().StringVar(&auditIncludeLabel, "include-label", "", "restrict the audit to pages carrying this label")
	auditCmd.Flags().StringVar(&auditExcludeLabel, "exclude-label", "", "exclude pages carrying this label")
	auditCmd.Flags().StringVar(&auditAncestorID, "ancestor", "", "restrict the audit to a page's subtree")
	auditCmd.Flags().IntVar(&auditHighChurnMin, "high-churn-min", 0, "minimum version count for --high-churn (default: config value)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	requiredLabel := auditRequiredLabel
	if requiredLabel == "" {
		requiredLabel = cfg.Audit.RequiredLabel
	}
	churnMin := auditHighChurnMin
	if churnMin == 0 {
		churnMin = cfg.Audit.ChurnThreshold
	}

	var client remoteapi.Client
	if auditAll || auditUnsynced {
		client = buildClient(cfg)
	}
	auditor := audit.New(db, client)

	opts := audit.Options{
		All: auditAll,
		Checks: audit.Checks{
			Stale:         auditStale,
			Orphans:       auditOrphans,
			BrokenLinks:   auditBrokenLinks,
			Contributors:  auditContributors,
			ExternalLinks: auditExternalLinks,
			MissingLabel:  auditMissingLabel,
			ContentStatus: auditContentStatus,
			HighChurn:     auditHighChurn,
			Unsynced:      auditUnsynced,
		},
		Stale:         audit.StaleThresholds{HighMonths: monthsFromDuration(cfg.Audit.StaleAfter)},
		RequiredLabel: requiredLabel,
		HighChurnMin:  churnMin,
		IncludeLabel:  auditIncludeLabel,
		ExcludeLabel:  auditExcludeLabel,
		AncestorID:    auditAncestorID,
		RemoteScope:   remoteapi.Scope{SpaceKey: cfg.Scope.SpaceKey, RootID: cfg.Scope.RootPageID},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := auditor.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("run audit: %w", err)
	}

	printAuditReport(report)
	return nil
}

// printAuditReport renders a Report as plain text; Report itself carries no
// presentation logic (§4.9: "plain data ... consumed by external formatters").
func printAuditReport(r *audit.Report) {
	printed := false

	if len(r.Stale) > 0 {
		printed = true
		fmt.Printf("Stale pages (%d):\n", len(r.Stale))
		for _, e := range r.Stale {
			fmt.Printf("  [%s] %s (%s)\n", e.Severity, e.Page.Title, e.Page.LocalPath)
		}
		fmt.Println()
	}
	if len(r.Orphans) > 0 {
		printed = true
		fmt.Printf("Orphan pages (%d):\n", len(r.Orphans))
		for _, p := range r.Orphans {
			fmt.Printf("  %s (%s)\n", p.Title, p.LocalPath)
		}
		fmt.Println()
	}
	if len(r.BrokenLinks) > 0 {
		printed = true
		fmt.Printf("Broken links (%d):\n", len(r.BrokenLinks))
		for _, l := range r.BrokenLinks {
			fmt.Printf("  %s referenced by %s\n", l.TargetPath, l.SourcePageID)
		}
		fmt.Println()
	}
	if len(r.ContributorRisk) > 0 {
		printed = true
		fmt.Printf("Contributor risk (%d):\n", len(r.ContributorRisk))
		for _, c := range r.ContributorRisk {
			fmt.Printf("  [%s] %s (%s)\n", c.Kind, c.Page.Title, c.Page.LocalPath)
		}
		fmt.Println()
	}
	if len(r.ExternalLinks) > 0 {
		printed = true
		fmt.Println("External links by host:")
		for _, host := range r.SortedHosts() {
			fmt.Printf("  %-30s %4d\n", host, len(r.ExternalLinks[host]))
		}
		fmt.Println()
	}
	if len(r.MissingLabel) > 0 {
		printed = true
		fmt.Printf("Missing required label (%d):\n", len(r.MissingLabel))
		for _, p := range r.MissingLabel {
			fmt.Printf("  %s (%s)\n", p.Title, p.LocalPath)
		}
		fmt.Println()
	}
	if len(r.Restricted) > 0 || len(r.Draft) > 0 || len(r.Archived) > 0 {
		printed = true
		fmt.Printf("Content status: %d restricted, %d draft, %d archived\n\n", len(r.Restricted), len(r.Draft), len(r.Archived))
	}
	if len(r.HighChurn) > 0 {
		printed = true
		fmt.Printf("High-churn pages (%d):\n", len(r.HighChurn))
		for _, p := range r.HighChurn {
			fmt.Printf("  %s (%d versions)\n", p.Title, p.VersionCount)
		}
		fmt.Println()
	}
	if len(r.Unsynced) > 0 {
		printed = true
		fmt.Printf("Unsynced remote pages (%d):\n", len(r.Unsynced))
		for _, u := range r.Unsynced {
			fmt.Printf("  %s (id %s)\n", u.Page.Title, u.Page.ID)
		}
		fmt.Println()
	}

	if !printed {
		fmt.Println("No findings.")
	}
}

func monthsFromDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	months := int(d.Hours() / 24 / 30)
	if months < 1 {
		months = 1
	}
	return months
}
