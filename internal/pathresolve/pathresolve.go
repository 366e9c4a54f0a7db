// Package pathresolve computes the nested working-directory path for a page
// from its title and ancestor chain, and detects moves when that chain
// changes between syncs.
//
// The algorithm — slugify each ancestor title into a directory segment,
// collapse a designated "home" ancestor, use slug/index.md for a page with
// children, and disambiguate collisions with a numeric suffix starting at
// -2 — is grounded directly on the rgonek-confluence-markdown-sync reference
// material's PlanPagePaths/plannedPageRelPath/ancestorPathSegments/
// ensureUniqueMarkdownPath functions, adapted from that tool's separate
// page/folder hierarchy to this spec's single ordered-ancestor-chain model.
package pathresolve

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	nonSlugChar    = regexp.MustCompile(`[^a-z0-9-]+`)
	multiHyphenRun = regexp.MustCompile(`-{2,}`)
)

// Slugify lowercases title, collapses whitespace to single hyphens, strips
// non-alphanumeric characters, collapses repeated hyphens, and trims leading
// and trailing hyphens (§4.3 step 2).
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = nonSlugChar.ReplaceAllString(s, "")
	s = multiHyphenRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "untitled"
	}
	return s
}

// Page is the minimal view of a remote page this package needs: its id,
// title, ordered ancestor chain (root id first, immediate parent id last),
// and whether it has children (which forces the slug/index.md leaf form).
type Page struct {
	ID          string
	Title       string
	Ancestors   []string
	HasChildren bool
}

// Plan computes a unique relative path for every page in pages. homeID, if
// non-empty, is an ancestor id whose own segment is skipped wherever it
// appears in an ancestor chain (the space's home page, §4.3 step 1).
// previous carries prior path -> page id bindings (the existing path index)
// so that a page whose computed path hasn't changed keeps its previous
// disambiguated path rather than being renumbered on every run.
func Plan(pages []Page, homeID string, previous map[string]string) map[string]string {
	byID := make(map[string]Page, len(pages))
	for _, p := range pages {
		byID[p.ID] = p
	}

	prevPathByID := make(map[string]string, len(previous))
	for p, id := range previous {
		if _, ok := byID[id]; ok {
			prevPathByID[id] = p
		}
	}

	type planned struct {
		id   string
		base string
	}
	plans := make([]planned, 0, len(pages))
	for _, pg := range pages {
		base := basePath(pg, byID, homeID)
		if prev, ok := prevPathByID[pg.ID]; ok && path.Dir(prev) == path.Dir(base) {
			base = prev
		}
		plans = append(plans, planned{id: pg.ID, base: base})
	}

	sort.Slice(plans, func(i, j int) bool {
		if plans[i].base == plans[j].base {
			return plans[i].id < plans[j].id
		}
		return plans[i].base < plans[j].base
	})

	used := make(map[string]struct{}, len(plans))
	result := make(map[string]string, len(plans))
	for _, pl := range plans {
		final := disambiguate(pl.base, used)
		used[final] = struct{}{}
		result[pl.id] = final
	}
	return result
}

// basePath computes a page's path before collision disambiguation: ancestor
// segments (skipping homeID and collapsing to "") joined with the page's own
// leaf segment.
func basePath(pg Page, byID map[string]Page, homeID string) string {
	title := pg.Title
	if strings.TrimSpace(title) == "" {
		title = "page-" + pg.ID
	}
	slug := Slugify(title)

	var segments []string
	for _, ancestorID := range pg.Ancestors {
		if ancestorID == homeID {
			continue
		}
		anc, ok := byID[ancestorID]
		if !ok {
			continue
		}
		at := anc.Title
		if strings.TrimSpace(at) == "" {
			at = "page-" + anc.ID
		}
		segments = append(segments, Slugify(at))
	}

	var leaf string
	if pg.HasChildren {
		segments = append(segments, slug)
		leaf = "index.md"
	} else {
		leaf = slug + ".md"
	}
	segments = append(segments, leaf)
	return path.Join(segments...)
}

// disambiguate appends -2, -3, ... to the leaf slug (before the .md
// extension, and before "/index.md"'s containing directory) until base no
// longer collides with an entry in used (§4.3 step 4, §9).
func disambiguate(base string, used map[string]struct{}) string {
	if _, taken := used[base]; !taken {
		return base
	}
	for i := 2; ; i++ {
		candidate := suffixed(base, i)
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}

func suffixed(p string, n int) string {
	if strings.HasSuffix(p, "/index.md") {
		dir := strings.TrimSuffix(p, "/index.md")
		return fmt.Sprintf("%s-%d/index.md", dir, n)
	}
	ext := path.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	return fmt.Sprintf("%s-%d%s", stem, n, ext)
}

// AttachmentsDir returns the attachments directory for a page file path
// (§4.3: "for page file foo/bar.md, attachments live at foo/bar.attachments/").
func AttachmentsDir(pageRelPath string) string {
	ext := path.Ext(pageRelPath)
	stem := strings.TrimSuffix(pageRelPath, ext)
	return stem + ".attachments"
}

// HasMoved reports whether a page's ancestor chain changed between two
// syncs (§4.3 move detection).
func HasMoved(previous, next []string) bool {
	if len(previous) != len(next) {
		return true
	}
	for i := range previous {
		if previous[i] != next[i] {
			return true
		}
	}
	return false
}
