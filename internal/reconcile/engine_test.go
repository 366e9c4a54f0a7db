package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/frontmatter"
	"github.com/adamancini/confluence-sync/internal/hashnorm"
	"github.com/adamancini/confluence-sync/internal/ignore"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
	"github.com/adamancini/confluence-sync/internal/store"
	"github.com/adamancini/confluence-sync/internal/watcher"
)

// identityConverter treats Markdown and storage as the same representation,
// standing in for the real prose converter so these tests exercise the
// engine's orchestration rather than a specific wire format.
type identityConverter struct{}

func (identityConverter) StorageToMarkdown(storage string) (string, error) { return storage, nil }
func (identityConverter) MarkdownToStorage(markdown string) (string, error) { return markdown, nil }

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "state.db"), dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestEngine(t *testing.T, client remoteapi.Client) (*Engine, string) {
	t.Helper()
	workDir := t.TempDir()
	db := newTestDB(t)
	cfg := Config{WorkDir: workDir, SpaceKey: "ENG", ConflictStrategy: ConflictMerge}
	e := New(client, db, identityConverter{}, ignore.New(nil), cfg, 2, zap.NewNop())
	return e, workDir
}

func TestInitialSyncPullsAllPagesAndDesignatesHome(t *testing.T) {
	fake := remoteapi.NewFake()
	home, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Home"})
	require.NoError(t, err)
	child, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Child", ParentID: home.ID})
	require.NoError(t, err)
	_ = child

	e, workDir := newTestEngine(t, fake)
	require.NoError(t, e.InitialSync(context.Background()))

	homeID, err := e.db.GetMeta("home_page_id")
	require.NoError(t, err)
	require.Equal(t, home.ID, homeID)

	rec, err := e.db.GetPage(home.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.FileExists(t, filepath.Join(workDir, rec.LocalPath))
}

func TestPullWritesFileAndUpdatesState(t *testing.T) {
	fake := remoteapi.NewFake()
	page, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Runbook", Storage: "hello world"})
	require.NoError(t, err)

	e, workDir := newTestEngine(t, fake)
	require.NoError(t, e.Pull(context.Background(), page.ID, ""))

	rec, err := e.db.GetPage(page.ID)
	require.NoError(t, err)
	require.Equal(t, "synced", rec.SyncState)
	require.FileExists(t, filepath.Join(workDir, rec.LocalPath))

	raw, err := os.ReadFile(filepath.Join(workDir, rec.LocalPath))
	require.NoError(t, err)
	meta, body, err := frontmatter.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, page.ID, meta.PageID())
	require.Contains(t, string(body), "hello world")
}

func TestPullDetectsMoveAndRenamesFile(t *testing.T) {
	fake := remoteapi.NewFake()
	parentA, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Team A"})
	require.NoError(t, err)
	parentB, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Team B"})
	require.NoError(t, err)
	page, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Runbook", ParentID: parentA.ID, Storage: "v1"})
	require.NoError(t, err)

	e, workDir := newTestEngine(t, fake)
	// Seed both ancestor titles locally so the path planner can render
	// ancestor segments for them (ordinarily InitialSync would have pulled
	// the whole tree).
	require.NoError(t, e.db.UpsertPage(store.Page{ID: parentA.ID, Title: parentA.Title, SpaceKey: "ENG"}))
	require.NoError(t, e.db.UpsertPage(store.Page{ID: parentB.ID, Title: parentB.Title, SpaceKey: "ENG"}))
	require.NoError(t, e.Pull(context.Background(), page.ID, ""))
	before, err := e.db.GetPage(page.ID)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(workDir, before.LocalPath))

	moved := *fake.Pages[page.ID]
	moved.ParentID = parentB.ID
	moved.Ancestors = []string{parentB.ID}
	moved.Version++
	fake.Pages[page.ID] = &moved

	require.NoError(t, e.Pull(context.Background(), page.ID, before.LocalPath))
	after, err := e.db.GetPage(page.ID)
	require.NoError(t, err)
	require.NotEqual(t, before.LocalPath, after.LocalPath)
	require.NoFileExists(t, filepath.Join(workDir, before.LocalPath))
	require.FileExists(t, filepath.Join(workDir, after.LocalPath))
}

func TestPushUploadsLocalEditsWhenRemoteUnchanged(t *testing.T) {
	fake := remoteapi.NewFake()
	page, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Runbook", Storage: "v1"})
	require.NoError(t, err)

	e, workDir := newTestEngine(t, fake)
	require.NoError(t, e.Pull(context.Background(), page.ID, ""))
	rec, err := e.db.GetPage(page.ID)
	require.NoError(t, err)

	full := filepath.Join(workDir, rec.LocalPath)
	raw, err := os.ReadFile(full)
	require.NoError(t, err)
	meta, _, err := frontmatter.Parse(raw)
	require.NoError(t, err)
	edited, err := frontmatter.Write(meta, []byte("v2 edited locally\n"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(full, edited, 0o644))

	require.NoError(t, e.Push(context.Background(), rec.LocalPath))

	remotePage := fake.Pages[page.ID]
	require.Contains(t, remotePage.Storage, "v2 edited locally")
	require.Equal(t, 2, remotePage.Version)
}

func TestPushRejectsFileWithConflictMarkers(t *testing.T) {
	fake := remoteapi.NewFake()
	page, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Runbook", Storage: "v1"})
	require.NoError(t, err)

	e, workDir := newTestEngine(t, fake)
	require.NoError(t, e.Pull(context.Background(), page.ID, ""))
	rec, err := e.db.GetPage(page.ID)
	require.NoError(t, err)

	full := filepath.Join(workDir, rec.LocalPath)
	meta := frontmatter.Meta{}
	meta.SetPageID(page.ID)
	content, err := frontmatter.Write(meta, []byte("<<<<<<< LOCAL\nmine\n=======\ntheirs\n>>>>>>> REMOTE\n"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(full, content, 0o644))

	err = e.Push(context.Background(), rec.LocalPath)
	require.ErrorIs(t, err, ErrConflictMarkers)
}

func TestPushOnRemoteAheadMergesCleanly(t *testing.T) {
	fake := remoteapi.NewFake()
	page, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Runbook", Storage: "line one\nline two\nline three\n"})
	require.NoError(t, err)

	e, workDir := newTestEngine(t, fake)
	require.NoError(t, e.Pull(context.Background(), page.ID, ""))
	rec, err := e.db.GetPage(page.ID)
	require.NoError(t, err)
	full := filepath.Join(workDir, rec.LocalPath)

	// Remote moves on independently (a second writer, or a webhook we never saw).
	remote := *fake.Pages[page.ID]
	remote.Storage = "line one\nline two CHANGED\nline three\n"
	remote.Version++
	fake.Pages[page.ID] = &remote

	// Local edits a disjoint line.
	raw, err := os.ReadFile(full)
	require.NoError(t, err)
	meta, _, err := frontmatter.Parse(raw)
	require.NoError(t, err)
	edited, err := frontmatter.Write(meta, []byte("line one LOCAL\nline two\nline three\n"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(full, edited, 0o644))

	require.NoError(t, e.Push(context.Background(), rec.LocalPath))

	after, err := e.db.GetPage(page.ID)
	require.NoError(t, err)
	require.Equal(t, "synced", after.SyncState)
	require.Contains(t, fake.Pages[page.ID].Storage, "line one LOCAL")
	require.Contains(t, fake.Pages[page.ID].Storage, "line two CHANGED")

	onDisk, err := os.ReadFile(full)
	require.NoError(t, err)
	_, onDiskBody, err := frontmatter.Parse(onDisk)
	require.NoError(t, err)
	require.Contains(t, string(onDiskBody), "line one LOCAL")
	require.Contains(t, string(onDiskBody), "line two CHANGED")
	require.Equal(t, hashnorm.HashNormalized(onDiskBody), after.LocalHash)
	require.Equal(t, after.LocalHash, after.BaseHash)
}

func TestPushOnRemoteAheadWithConflictWritesMarkers(t *testing.T) {
	fake := remoteapi.NewFake()
	page, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Runbook", Storage: "line one\n"})
	require.NoError(t, err)

	e, workDir := newTestEngine(t, fake)
	require.NoError(t, e.Pull(context.Background(), page.ID, ""))
	rec, err := e.db.GetPage(page.ID)
	require.NoError(t, err)
	full := filepath.Join(workDir, rec.LocalPath)

	remote := *fake.Pages[page.ID]
	remote.Storage = "line one REMOTE EDIT\n"
	remote.Version++
	fake.Pages[page.ID] = &remote

	raw, err := os.ReadFile(full)
	require.NoError(t, err)
	meta, _, err := frontmatter.Parse(raw)
	require.NoError(t, err)
	edited, err := frontmatter.Write(meta, []byte("line one LOCAL EDIT\n"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(full, edited, 0o644))

	require.NoError(t, e.Push(context.Background(), rec.LocalPath))

	after, err := e.db.GetPage(page.ID)
	require.NoError(t, err)
	require.Equal(t, "conflict", after.SyncState)
	raw, err = os.ReadFile(full)
	require.NoError(t, err)
	require.Contains(t, string(raw), "<<<<<<< LOCAL")
}

func TestPushAutoCreatesUnboundFile(t *testing.T) {
	fake := remoteapi.NewFake()
	e, workDir := newTestEngine(t, fake)
	e.cfg.AutoCreate = true

	relPath := "notes/new-page.md"
	full := filepath.Join(workDir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("brand new content\n"), 0o644))

	require.NoError(t, e.Push(context.Background(), relPath))

	require.Len(t, fake.Pages, 1)
	raw, err := os.ReadFile(full)
	require.NoError(t, err)
	meta, _, err := frontmatter.Parse(raw)
	require.NoError(t, err)
	require.True(t, meta.IsBound())
}

func TestDeleteArchivesRemoteAndRemovesLocalFile(t *testing.T) {
	fake := remoteapi.NewFake()
	page, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "Runbook", Storage: "v1"})
	require.NoError(t, err)

	e, workDir := newTestEngine(t, fake)
	require.NoError(t, e.Pull(context.Background(), page.ID, ""))
	rec, err := e.db.GetPage(page.ID)
	require.NoError(t, err)
	full := filepath.Join(workDir, rec.LocalPath)
	require.FileExists(t, full)

	require.NoError(t, e.Delete(context.Background(), page.ID))

	require.NoFileExists(t, full)
	got, err := e.db.GetPage(page.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, "archived", fake.Pages[page.ID].Status)
}

func TestEnqueueLocalDeletionDoesNotPush(t *testing.T) {
	fake := remoteapi.NewFake()
	e, _ := newTestEngine(t, fake)

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		e.Run(ctx)
		close(done)
	}()

	e.EnqueueLocal(watcher.Change{RelPath: "notes/gone.md", Deleted: true})

	<-done
	require.Empty(t, fake.Pages)
}
