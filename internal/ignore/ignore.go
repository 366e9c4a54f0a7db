// Package ignore implements gitignore-style glob matching for excluding
// paths from the file walker, the local watcher, and the markdown-file
// collector.
//
// Grounded on the teacher's internal/vault.Scanner.shouldIgnore, generalized
// from a single ad hoc method into a standalone, loadable matcher and given
// proper "**" segment handling (the teacher's version degrades "**" to a
// single "*", which cannot match across path separators).
package ignore

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"
)

// AlwaysIgnored are paths excluded regardless of any loaded pattern file:
// the state directory and the daemon's lockfile (§4.7).
var AlwaysIgnored = []string{".syncroot", ".syncroot/**", ".sync.lock"}

// Matcher holds a compiled set of gitignore-style glob patterns.
type Matcher struct {
	patterns []string
}

// New builds a Matcher from explicit patterns, automatically including
// AlwaysIgnored.
func New(patterns []string) *Matcher {
	all := make([]string, 0, len(patterns)+len(AlwaysIgnored))
	all = append(all, AlwaysIgnored...)
	all = append(all, patterns...)
	return &Matcher{patterns: all}
}

// Load reads newline-delimited gitignore-style patterns, skipping blank
// lines and lines starting with "#".
func Load(r io.Reader) (*Matcher, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(patterns), nil
}

// ShouldIgnore reports whether relPath (POSIX-separated, relative to the
// working directory root) matches any loaded pattern.
func (m *Matcher) ShouldIgnore(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	base := filepath.Base(relPath)

	for _, pattern := range m.patterns {
		pattern = filepath.ToSlash(strings.TrimSuffix(pattern, "/"))
		if matchPattern(pattern, relPath, base) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, relPath, base string) bool {
	if matched, _ := filepath.Match(pattern, relPath); matched {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	if !strings.Contains(pattern, "**") {
		return false
	}
	return matchDoubleStar(strings.Split(pattern, "/"), strings.Split(relPath, "/"))
}

// matchDoubleStar matches pattern segments against path segments where a
// "**" segment consumes zero or more whole path segments.
func matchDoubleStar(patternSegs, pathSegs []string) bool {
	if len(patternSegs) == 0 {
		return len(pathSegs) == 0
	}
	if patternSegs[0] == "**" {
		if matchDoubleStar(patternSegs[1:], pathSegs) {
			return true
		}
		if len(pathSegs) == 0 {
			return false
		}
		return matchDoubleStar(patternSegs, pathSegs[1:])
	}
	if len(pathSegs) == 0 {
		return false
	}
	if ok, _ := filepath.Match(patternSegs[0], pathSegs[0]); !ok {
		return false
	}
	return matchDoubleStar(patternSegs[1:], pathSegs[1:])
}
