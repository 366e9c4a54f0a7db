// Package audit is a read-only consumer of the state store that produces a
// structured health report: stale pages, orphans, broken links, contributor
// risk, missing labels, content-status breakdowns, high-churn pages, and
// (when connected) remote-only pages never pulled locally (SPEC_FULL.md
// §4.9).
//
// Grounded on internal/cli/status.go: that command already reads the state
// store, buckets records by category, and prints counts — this package
// generalizes the same shape (query, categorize, report) from one
// hard-coded change-direction breakdown into the configurable multi-check
// report the spec describes, with the formatting pulled out into a
// separate concern so the report stays plain data (§4.9: "consumed by
// external formatters").
package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adamancini/confluence-sync/internal/remoteapi"
	"github.com/adamancini/confluence-sync/internal/store"
)

// Severity classifies how stale a page is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// StaleThresholds configures how many months of inactivity trigger each
// severity. Zero disables that severity.
type StaleThresholds struct {
	HighMonths   int
	MediumMonths int
	LowMonths    int
}

func (t StaleThresholds) classify(monthsSince int) (Severity, bool) {
	switch {
	case t.HighMonths > 0 && monthsSince >= t.HighMonths:
		return SeverityHigh, true
	case t.MediumMonths > 0 && monthsSince >= t.MediumMonths:
		return SeverityMedium, true
	case t.LowMonths > 0 && monthsSince >= t.LowMonths:
		return SeverityLow, true
	default:
		return "", false
	}
}

// Options configures a Run. Scope filters (IncludeLabel, ExcludeLabel,
// AncestorID) apply independently of which checks are enabled.
type Options struct {
	All bool // run every check below except Checks.ExternalLinks HTTP validation — see Checks.All()

	Checks Checks

	Stale           StaleThresholds
	RequiredLabel   string
	HighChurnMin    int
	IncludeLabel    string
	ExcludeLabel    string
	AncestorID      string
	RemoteScope     remoteapi.Scope // used only when Checks.Unsynced and Client are set
}

// Checks toggles individual detectors. All() sets every flag except the
// network-touching external-link HTTP validation, which the caller opts
// into separately via the link checker (§4.9's resolution of the "two
// disagreeing --all implementations" open question).
type Checks struct {
	Stale          bool
	Orphans        bool
	BrokenLinks    bool
	Contributors   bool
	ExternalLinks  bool
	MissingLabel   bool
	ContentStatus  bool
	HighChurn      bool
	Unsynced       bool
}

// All returns a Checks with every detector enabled except the ones that
// require live network access (external-link HTTP probing is a separate,
// opt-in step; ExternalLinks here only lists and groups known edges).
func All() Checks {
	return Checks{
		Stale: true, Orphans: true, BrokenLinks: true, Contributors: true,
		ExternalLinks: true, MissingLabel: true, ContentStatus: true,
		HighChurn: true, Unsynced: true,
	}
}

// StaleEntry pairs a page with the severity it tripped.
type StaleEntry struct {
	Page     store.Page
	Severity Severity
}

// ContributorRisk pairs a page with the risk classification it tripped.
type ContributorRisk struct {
	Page store.Page
	Kind string // "bus-factor" | "no-maintainer"
}

// UnsyncedPage is a page present remotely but absent from the state store.
type UnsyncedPage struct {
	Page     remoteapi.Page
	Severity Severity
	Stale    bool
}

// Report is plain data: the result of one Run, with no knowledge of how it
// will be displayed.
type Report struct {
	Stale           []StaleEntry
	Orphans         []store.Page
	BrokenLinks     []store.Link
	ContributorRisk []ContributorRisk
	ExternalLinks   map[string][]store.Link // grouped by host
	MissingLabel    []store.Page
	Restricted      []store.Page
	Draft           []store.Page
	Archived        []store.Page
	HighChurn       []store.Page
	Unsynced        []UnsyncedPage
}

// Auditor runs checks against a state store, and optionally a remote client
// for the Unsynced check.
type Auditor struct {
	db     *store.DB
	client remoteapi.Client
	now    func() time.Time
}

// New builds an Auditor. client may be nil; Run then skips the Unsynced
// check regardless of Options.Checks.Unsynced.
func New(db *store.DB, client remoteapi.Client) *Auditor {
	return &Auditor{db: db, client: client, now: time.Now}
}

// Run executes every check enabled in opts and returns the combined report.
func (a *Auditor) Run(ctx context.Context, opts Options) (*Report, error) {
	checks := opts.Checks
	if opts.All {
		checks = All()
	}

	report := &Report{ExternalLinks: make(map[string][]store.Link)}

	if checks.Stale || checks.Orphans || checks.ExternalLinks || checks.MissingLabel ||
		checks.ContentStatus || checks.HighChurn || checks.Contributors {
		// Deliberately not pre-filtered by Stale/HighChurn thresholds here:
		// this page set is shared by every check in the loop below, and a
		// DB-side ModifiedBefore/MinVersionCount filter would silently drop
		// pages from Orphans/Contributors/MissingLabel/ContentStatus too.
		// Stale and HighChurn apply their own thresholds per-page instead.
		filter := store.ListFilter{AncestorID: opts.AncestorID, Label: opts.IncludeLabel}
		pages, err := a.db.ListPages(filter)
		if err != nil {
			return nil, fmt.Errorf("list pages: %w", err)
		}
		pages = excludeLabeled(a.db, pages, opts.ExcludeLabel)

		for _, p := range pages {
			if checks.Stale {
				if sev, ok := opts.Stale.classify(monthsSince(a.now(), p.LastModifiedAt)); ok {
					report.Stale = append(report.Stale, StaleEntry{Page: p, Severity: sev})
				}
			}
			if checks.HighChurn && opts.HighChurnMin > 0 && p.VersionCount >= opts.HighChurnMin {
				report.HighChurn = append(report.HighChurn, p)
			}
			if checks.MissingLabel && opts.RequiredLabel != "" {
				labels, err := a.db.GetPageLabels(p.ID)
				if err != nil {
					return nil, fmt.Errorf("get labels for %s: %w", p.ID, err)
				}
				if !contains(labels, opts.RequiredLabel) {
					report.MissingLabel = append(report.MissingLabel, p)
				}
			}
			if checks.ContentStatus {
				switch {
				case p.Restricted:
					report.Restricted = append(report.Restricted, p)
				case p.ContentStatus == "draft":
					report.Draft = append(report.Draft, p)
				case p.ContentStatus == "archived":
					report.Archived = append(report.Archived, p)
				}
			}
			if checks.Orphans {
				incoming, err := a.db.GetIncomingLinks(p.ID)
				if err != nil {
					return nil, fmt.Errorf("get incoming links for %s: %w", p.ID, err)
				}
				if len(incoming) == 0 && p.ParentID == "" {
					report.Orphans = append(report.Orphans, p)
				}
			}
			if checks.Contributors {
				contributors, err := a.db.GetPageContributors(p.ID)
				if err != nil {
					return nil, fmt.Errorf("get contributors for %s: %w", p.ID, err)
				}
				if risk, ok := classifyContributorRisk(a.db, contributors); ok {
					report.ContributorRisk = append(report.ContributorRisk, ContributorRisk{Page: p, Kind: risk})
				}
			}
		}
	}

	if checks.BrokenLinks {
		links, err := a.db.GetBrokenLinks()
		if err != nil {
			return nil, fmt.Errorf("get broken links: %w", err)
		}
		report.BrokenLinks = links
	}

	if checks.ExternalLinks {
		links, err := a.db.GetExternalLinks("")
		if err != nil {
			return nil, fmt.Errorf("get external links: %w", err)
		}
		for _, l := range links {
			host := hostOf(l.TargetPath)
			report.ExternalLinks[host] = append(report.ExternalLinks[host], l)
		}
	}

	if checks.Unsynced && a.client != nil {
		if err := a.fillUnsynced(ctx, opts, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (a *Auditor) fillUnsynced(ctx context.Context, opts Options, report *Report) error {
	remotePages, err := a.client.GetAllPages(ctx, opts.RemoteScope)
	if err != nil {
		return fmt.Errorf("fetch all remote pages: %w", err)
	}

	for _, rp := range remotePages {
		known, err := a.db.GetPage(rp.ID)
		if err != nil {
			return fmt.Errorf("check local record for %s: %w", rp.ID, err)
		}
		if known != nil {
			continue
		}
		sev, stale := opts.Stale.classify(monthsSince(a.now(), rp.LastModifiedAt))
		report.Unsynced = append(report.Unsynced, UnsyncedPage{Page: rp, Severity: sev, Stale: stale})
	}
	return nil
}

// classifyContributorRisk implements §4.9's bus-factor / no-maintainer
// rules: bus-factor takes priority over no-maintainer for the same page.
func classifyContributorRisk(db *store.DB, contributors []store.Contributor) (string, bool) {
	if len(contributors) == 1 {
		return "bus-factor", true
	}
	if len(contributors) == 0 {
		return "", false
	}
	allKnownInactive := true
	for _, c := range contributors {
		u, err := db.GetUser(c.UserID)
		if err != nil || u == nil || u.IsActive == nil || *u.IsActive {
			allKnownInactive = false
			break
		}
	}
	if allKnownInactive {
		return "no-maintainer", true
	}
	return "", false
}

func excludeLabeled(db *store.DB, pages []store.Page, excludeLabel string) []store.Page {
	if excludeLabel == "" {
		return pages
	}
	excluded, err := db.GetPagesWithLabel(excludeLabel)
	if err != nil {
		return pages
	}
	excludeSet := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		excludeSet[id] = true
	}
	out := pages[:0]
	for _, p := range pages {
		if !excludeSet[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

func monthsSince(now, t time.Time) int {
	if t.IsZero() {
		return 0
	}
	years := now.Year() - t.Year()
	months := int(now.Month()) - int(t.Month())
	total := years*12 + months
	if now.Day() < t.Day() {
		total--
	}
	if total < 0 {
		return 0
	}
	return total
}

func contains(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}

func hostOf(url string) string {
	rest := strings.TrimPrefix(url, "https://")
	rest = strings.TrimPrefix(rest, "http://")
	if idx := strings.IndexAny(rest, "/?#"); idx != -1 {
		rest = rest[:idx]
	}
	return rest
}

// SortedHosts returns the ExternalLinks map's keys in a stable order, a
// convenience for formatters that need deterministic output.
func (r *Report) SortedHosts() []string {
	hosts := make([]string, 0, len(r.ExternalLinks))
	for h := range r.ExternalLinks {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
