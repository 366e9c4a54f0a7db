package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adamancini/confluence-sync/internal/remoteapi"
	"github.com/adamancini/confluence-sync/internal/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "state.db"), dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStaleClassification(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.UpsertPage(store.Page{ID: "p1", Title: "Old", LastModifiedAt: now.AddDate(0, -13, 0)}))
	require.NoError(t, db.UpsertPage(store.Page{ID: "p2", Title: "Medium", LastModifiedAt: now.AddDate(0, -7, 0)}))
	require.NoError(t, db.UpsertPage(store.Page{ID: "p3", Title: "Fresh", LastModifiedAt: now.AddDate(0, -1, 0)}))

	a := New(db, nil)
	a.now = fixedClock(now)

	report, err := a.Run(context.Background(), Options{
		Checks: Checks{Stale: true},
		Stale:  StaleThresholds{HighMonths: 12, MediumMonths: 6, LowMonths: 3},
	})
	require.NoError(t, err)
	require.Len(t, report.Stale, 2)

	bySeverity := map[string]Severity{}
	for _, e := range report.Stale {
		bySeverity[e.Page.ID] = e.Severity
	}
	require.Equal(t, SeverityHigh, bySeverity["p1"])
	require.Equal(t, SeverityMedium, bySeverity["p2"])
	require.NotContains(t, bySeverity, "p3")
}

func TestOrphanDetection(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.UpsertPage(store.Page{ID: "root", Title: "Root"}))
	require.NoError(t, db.UpsertPage(store.Page{ID: "child", Title: "Child", ParentID: "root"}))
	require.NoError(t, db.UpsertPage(store.Page{ID: "floating", Title: "Floating"}))
	require.NoError(t, db.SetPageLinks("child", []store.Link{{SourcePageID: "child", TargetPageID: "root", LinkType: "internal"}}))

	a := New(db, nil)
	report, err := a.Run(context.Background(), Options{Checks: Checks{Orphans: true}})
	require.NoError(t, err)

	var ids []string
	for _, p := range report.Orphans {
		ids = append(ids, p.ID)
	}
	require.Contains(t, ids, "root")
	require.Contains(t, ids, "floating")
	require.NotContains(t, ids, "child")
}

func TestContributorRiskBusFactorBeatsNoMaintainer(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.UpsertPage(store.Page{ID: "solo", Title: "Solo"}))
	require.NoError(t, db.SetPageContributors("solo", []store.Contributor{{PageID: "solo", UserID: "u1", ContributionCount: 5}}))

	inactive := false
	require.NoError(t, db.UpsertUser(store.User{ID: "u2", DisplayName: "Gone", IsActive: &inactive}))
	require.NoError(t, db.UpsertUser(store.User{ID: "u3", DisplayName: "AlsoGone", IsActive: &inactive}))
	require.NoError(t, db.UpsertPage(store.Page{ID: "abandoned", Title: "Abandoned"}))
	require.NoError(t, db.SetPageContributors("abandoned", []store.Contributor{
		{PageID: "abandoned", UserID: "u2", ContributionCount: 3},
		{PageID: "abandoned", UserID: "u3", ContributionCount: 2},
	}))

	active := true
	require.NoError(t, db.UpsertUser(store.User{ID: "u4", DisplayName: "Active", IsActive: &active}))
	require.NoError(t, db.UpsertPage(store.Page{ID: "healthy", Title: "Healthy"}))
	require.NoError(t, db.SetPageContributors("healthy", []store.Contributor{
		{PageID: "healthy", UserID: "u4", ContributionCount: 3},
		{PageID: "healthy", UserID: "u2", ContributionCount: 1},
	}))

	a := New(db, nil)
	report, err := a.Run(context.Background(), Options{Checks: Checks{Contributors: true}})
	require.NoError(t, err)

	byID := map[string]string{}
	for _, r := range report.ContributorRisk {
		byID[r.Page.ID] = r.Kind
	}
	require.Equal(t, "bus-factor", byID["solo"])
	require.Equal(t, "no-maintainer", byID["abandoned"])
	require.NotContains(t, byID, "healthy")
}

func TestMissingLabelCheck(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.UpsertPage(store.Page{ID: "tagged", Title: "Tagged"}))
	require.NoError(t, db.SetPageLabels("tagged", []string{"reviewed"}))
	require.NoError(t, db.UpsertPage(store.Page{ID: "untagged", Title: "Untagged"}))

	a := New(db, nil)
	report, err := a.Run(context.Background(), Options{
		Checks:        Checks{MissingLabel: true},
		RequiredLabel: "reviewed",
	})
	require.NoError(t, err)
	require.Len(t, report.MissingLabel, 1)
	require.Equal(t, "untagged", report.MissingLabel[0].ID)
}

func TestExternalLinksGroupedByHost(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.UpsertPage(store.Page{ID: "p1", Title: "P1"}))
	require.NoError(t, db.SetPageLinks("p1", []store.Link{
		{SourcePageID: "p1", TargetPath: "https://example.com/a", LinkType: "external"},
		{SourcePageID: "p1", TargetPath: "https://example.com/b", LinkType: "external"},
		{SourcePageID: "p1", TargetPath: "https://other.org/x", LinkType: "external"},
	}))

	a := New(db, nil)
	report, err := a.Run(context.Background(), Options{Checks: Checks{ExternalLinks: true}})
	require.NoError(t, err)
	require.Len(t, report.ExternalLinks["example.com"], 2)
	require.Len(t, report.ExternalLinks["other.org"], 1)
}

func TestUnsyncedListsRemoteOnlyPages(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.UpsertPage(store.Page{ID: "known", Title: "Known"}))

	fake := remoteapi.NewFake()
	fake.Pages["known"] = &remoteapi.Page{ID: "known", Title: "Known"}
	fake.Pages["unknown"] = &remoteapi.Page{ID: "unknown", Title: "Unknown"}

	a := New(db, fake)
	report, err := a.Run(context.Background(), Options{Checks: Checks{Unsynced: true}})
	require.NoError(t, err)
	require.Len(t, report.Unsynced, 1)
	require.Equal(t, "unknown", report.Unsynced[0].Page.ID)
}

func TestAllOptionRunsEveryCheckExceptLiveLinkValidation(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.UpsertPage(store.Page{ID: "p1", Title: "P1", VersionCount: 50}))

	a := New(db, nil)
	report, err := a.Run(context.Background(), Options{All: true, HighChurnMin: 10})
	require.NoError(t, err)
	require.Len(t, report.HighChurn, 1)
}
