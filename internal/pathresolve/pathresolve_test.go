package pathresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":       "hello-world",
		"  Trim Me  ":        "trim-me",
		"C++ Guide!!":        "c-guide",
		"":                   "untitled",
		"Already-Slugged":    "already-slugged",
		"Multi   Space Here": "multi-space-here",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestPlanLeafPage(t *testing.T) {
	pages := []Page{{ID: "p1", Title: "Hello"}}
	plan := Plan(pages, "", nil)
	require.Equal(t, "hello.md", plan["p1"])
}

func TestPlanPageWithChildren(t *testing.T) {
	pages := []Page{
		{ID: "parent", Title: "Team Docs", HasChildren: true},
		{ID: "child", Title: "Onboarding", Ancestors: []string{"parent"}},
	}
	plan := Plan(pages, "", nil)
	require.Equal(t, "team-docs/index.md", plan["parent"])
	require.Equal(t, "team-docs/onboarding.md", plan["child"])
}

func TestPlanHomeAncestorCollapsed(t *testing.T) {
	pages := []Page{
		{ID: "home", Title: "Space Home", HasChildren: true},
		{ID: "child", Title: "First Page", Ancestors: []string{"home"}},
	}
	plan := Plan(pages, "home", nil)
	require.Equal(t, "first-page.md", plan["child"])
}

func TestPlanCollisionGetsNumericSuffix(t *testing.T) {
	pages := []Page{
		{ID: "a", Title: "Notes"},
		{ID: "b", Title: "Notes"},
		{ID: "c", Title: "Notes"},
	}
	plan := Plan(pages, "", nil)
	got := map[string]bool{plan["a"]: true, plan["b"]: true, plan["c"]: true}
	assert.True(t, got["notes.md"])
	assert.True(t, got["notes-2.md"])
	assert.True(t, got["notes-3.md"])
}

func TestPlanIsInjective(t *testing.T) {
	pages := []Page{
		{ID: "a", Title: "Dup"},
		{ID: "b", Title: "Dup"},
	}
	plan := Plan(pages, "", nil)
	assert.NotEqual(t, plan["a"], plan["b"])
}

func TestPlanStableAcrossReruns(t *testing.T) {
	pages := []Page{
		{ID: "a", Title: "Notes"},
		{ID: "b", Title: "Notes"},
	}
	first := Plan(pages, "", nil)
	inverted := make(map[string]string, len(first))
	for id, p := range first {
		inverted[p] = id
	}
	second := Plan(pages, "", inverted)
	assert.Equal(t, first, second)
}

func TestAttachmentsDir(t *testing.T) {
	assert.Equal(t, "foo/bar.attachments", AttachmentsDir("foo/bar.md"))
	assert.Equal(t, "index.attachments", AttachmentsDir("index.md"))
}

func TestHasMoved(t *testing.T) {
	assert.False(t, HasMoved([]string{"a", "b"}, []string{"a", "b"}))
	assert.True(t, HasMoved([]string{"a"}, []string{"a", "b"}))
	assert.True(t, HasMoved([]string{"a"}, []string{"b"}))
}
