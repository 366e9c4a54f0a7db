package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adamancini/confluence-sync/internal/config"
	"github.com/adamancini/confluence-sync/internal/ignore"
	"github.com/adamancini/confluence-sync/internal/reconcile"
	"github.com/adamancini/confluence-sync/internal/store"
)

func openTestStore(t *testing.T, dir string) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(dir, "state.db"), dir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return db
}

// =============================================================================
// Pure function tests
// =============================================================================

func TestConflictPolicy(t *testing.T) {
	tests := []struct {
		strategy string
		want     reconcile.ConflictPolicy
	}{
		{"ours", reconcile.ConflictLocal},
		{"theirs", reconcile.ConflictRemote},
		{"manual", reconcile.ConflictMerge},
		{"newer", reconcile.ConflictMerge},
		{"", reconcile.ConflictMerge},
		{"nonsense", reconcile.ConflictMerge},
	}
	for _, tc := range tests {
		if got := conflictPolicy(tc.strategy); got != tc.want {
			t.Errorf("conflictPolicy(%q) = %v; want %v", tc.strategy, got, tc.want)
		}
	}
}

func TestDeletionStrategy(t *testing.T) {
	tests := []struct {
		strategy string
		want     reconcile.DeletionStrategy
	}{
		{"mirror", reconcile.DeletionMirror},
		{"surface", reconcile.DeletionSurface},
		{"", reconcile.DeletionSurface},
		{"nonsense", reconcile.DeletionSurface},
	}
	for _, tc := range tests {
		if got := deletionStrategy(tc.strategy); got != tc.want {
			t.Errorf("deletionStrategy(%q) = %v; want %v", tc.strategy, got, tc.want)
		}
	}
}

func TestMonthsFromDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want int
	}{
		{"zero", 0, 0},
		{"negative", -time.Hour, 0},
		{"one day rounds up to one month", 24 * time.Hour, 1},
		{"ninety days", 90 * 24 * time.Hour, 3},
		{"six months", 180 * 24 * time.Hour, 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := monthsFromDuration(tc.d); got != tc.want {
				t.Errorf("monthsFromDuration(%v) = %d; want %d", tc.d, got, tc.want)
			}
		})
	}
}

func TestLooksLikeLocalPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "page.md"), []byte("# Hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "notes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes", "nested.md"), []byte("# Hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		arg  string
		want bool
	}{
		{"md suffix matches by extension alone", "anything.md", true},
		{"existing file in workdir", "page.md", true},
		{"existing nested file", "notes/nested.md", true},
		{"bare page id", "123456", false},
		{"nonexistent non-md path", "missing", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := looksLikeLocalPath(dir, tc.arg); got != tc.want {
				t.Errorf("looksLikeLocalPath(%q, %q) = %v; want %v", dir, tc.arg, got, tc.want)
			}
		})
	}
}

// =============================================================================
// changedLocalFiles / allMarkdownFiles
// =============================================================================

func TestChangedLocalFiles_UnboundFileAlwaysCandidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "unbound.md", "---\ntitle: Unbound\n---\n\nbody")

	db := openTestStore(t, dir)
	defer db.Close()

	matcher := ignore.New(nil)
	got, err := changedLocalFiles(dir, db, matcher)
	if err != nil {
		t.Fatalf("changedLocalFiles: %v", err)
	}
	if len(got) != 1 || got[0] != "unbound.md" {
		t.Fatalf("got %v; want [unbound.md]", got)
	}
}

func TestChangedLocalFiles_IgnoresNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "plain text")

	db := openTestStore(t, dir)
	defer db.Close()

	got, err := changedLocalFiles(dir, db, ignore.New(nil))
	if err != nil {
		t.Fatalf("changedLocalFiles: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v; want none", got)
	}
}

func TestChangedLocalFiles_RespectsIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "templates"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "templates/skip.md", "---\ntitle: Skip\n---\n\nbody")
	writeFile(t, dir, "keep.md", "---\ntitle: Keep\n---\n\nbody")

	db := openTestStore(t, dir)
	defer db.Close()

	matcher := ignore.New([]string{"templates/**"})
	got, err := changedLocalFiles(dir, db, matcher)
	if err != nil {
		t.Fatalf("changedLocalFiles: %v", err)
	}
	if len(got) != 1 || got[0] != "keep.md" {
		t.Fatalf("got %v; want [keep.md]", got)
	}
}

func TestAllMarkdownFiles_ReturnsEveryFileRegardlessOfBinding(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "---\nid: \"1\"\n---\n\nbody")
	writeFile(t, dir, "b.md", "---\ntitle: B\n---\n\nbody")

	got, err := allMarkdownFiles(dir, ignore.New(nil))
	if err != nil {
		t.Fatalf("allMarkdownFiles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v; want 2 files", got)
	}
}

// =============================================================================
// Command wiring / flag presence
// =============================================================================

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	want := []string{"init", "pull", "push", "sync", "watch", "status", "conflicts", "audit", "links", "delete"}
	got := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("rootCmd missing subcommand %q", name)
		}
	}
}

func TestSyncCommand_HasDryRunFlag(t *testing.T) {
	if syncCmd.Flags().Lookup("dry-run") == nil {
		t.Error("sync command missing --dry-run flag")
	}
}

func TestPushCommand_HasExpectedFlags(t *testing.T) {
	for _, name := range []string{"all", "path", "dry-run"} {
		if pushCmd.Flags().Lookup(name) == nil {
			t.Errorf("push command missing --%s flag", name)
		}
	}
}

func TestPullCommand_HasExpectedFlags(t *testing.T) {
	for _, name := range []string{"all", "path", "dry-run"} {
		if pullCmd.Flags().Lookup(name) == nil {
			t.Errorf("pull command missing --%s flag", name)
		}
	}
}

func TestWatchCommand_HasExpectedFlags(t *testing.T) {
	for _, name := range []string{"poll-interval", "strategy"} {
		if watchCmd.Flags().Lookup(name) == nil {
			t.Errorf("watch command missing --%s flag", name)
		}
	}
}

func TestAuditCommand_HasExpectedFlags(t *testing.T) {
	for _, name := range []string{
		"all", "stale", "orphans", "broken-links", "contributors",
		"external-links", "missing-label", "content-status", "high-churn",
		"unsynced", "required-label", "include-label", "exclude-label",
		"ancestor", "high-churn-min",
	} {
		if auditCmd.Flags().Lookup(name) == nil {
			t.Errorf("audit command missing --%s flag", name)
		}
	}
}

func TestDeleteCommand_RequiresExactlyOneArg(t *testing.T) {
	if err := deleteCmd.Args(deleteCmd, nil); err == nil {
		t.Error("expected error for zero args")
	}
	if err := deleteCmd.Args(deleteCmd, []string{"a", "b"}); err == nil {
		t.Error("expected error for two args")
	}
	if err := deleteCmd.Args(deleteCmd, []string{"a"}); err != nil {
		t.Errorf("expected no error for one arg, got %v", err)
	}
}

func TestDeleteCommand_HasYesFlag(t *testing.T) {
	if deleteCmd.Flags().Lookup("yes") == nil {
		t.Error("delete command missing --yes flag")
	}
}

func TestGetConfig_NilConfig(t *testing.T) {
	saved := cfg
	cfg = nil
	defer func() { cfg = saved }()

	if _, err := getConfig(); err != ErrNoConfig {
		t.Errorf("getConfig() error = %v; want ErrNoConfig", err)
	}
}

func TestGetConfig_SetConfig(t *testing.T) {
	saved := cfg
	want := &config.Config{WorkDir: "/tmp/example"}
	cfg = want
	defer func() { cfg = saved }()

	got, err := getConfig()
	if err != nil {
		t.Fatalf("getConfig() error = %v", err)
	}
	if got != want {
		t.Error("getConfig() did not return the package-level cfg")
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abcdef", "2026-01-01")
	if version != "1.2.3" || commit != "abcdef" || date != "2026-01-01" {
		t.Errorf("SetVersion did not update package state: %s/%s/%s", version, commit, date)
	}
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
