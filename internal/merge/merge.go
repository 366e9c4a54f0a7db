// Package merge implements the line-based three-way merge used to reconcile
// a page edited both locally and remotely since the last synced base.
//
// The alignment step (which lines of local and remote correspond to which
// lines of base) is delegated to github.com/sergi/go-diff/diffmatchpatch's
// line-mode diff, the same library theRebelliousNerd-codenerd uses for its
// diff engine. The diff3-style merge on top of that alignment — finding
// anchor lines common to all three texts and deciding, segment by segment,
// whether to take local, remote, base, or emit a conflict — has no ready-made
// library in the example pack, so it is hand-written here.
package merge

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	markerLocalStart = "<<<<<<< LOCAL"
	markerSeparator  = "======="
	markerRemoteEnd  = ">>>>>>> REMOTE"
)

// Result is the outcome of a three-way merge.
type Result struct {
	Content       string
	Success       bool
	ConflictCount int
}

// Merge reconciles local and remote edits against their common ancestor
// base. See SPEC_FULL.md §4.2 for the full contract.
func Merge(base, local, remote string) Result {
	if local == remote {
		return Result{Content: local, Success: true}
	}
	if local == base {
		return Result{Content: remote, Success: true}
	}
	if remote == base {
		return Result{Content: local, Success: true}
	}

	baseLines := splitLines(base)
	localEq, localIdx := alignToBase(base, local, len(baseLines))
	remoteEq, remoteIdx := alignToBase(base, remote, len(baseLines))

	localLines := splitLines(local)
	remoteLines := splitLines(remote)

	anchors := []int{-1}
	for i := 0; i < len(baseLines); i++ {
		if localEq[i] && remoteEq[i] {
			anchors = append(anchors, i)
		}
	}
	anchors = append(anchors, len(baseLines))

	var out []string
	conflicts := 0

	for a := 0; a < len(anchors)-1; a++ {
		baseStart := anchors[a] + 1
		baseEnd := anchors[a+1] // exclusive
		segLocalStart, segLocalEnd := gapRange(localIdx, anchors[a], anchors[a+1], len(baseLines), len(localLines))
		segRemoteStart, segRemoteEnd := gapRange(remoteIdx, anchors[a], anchors[a+1], len(baseLines), len(remoteLines))

		baseSeg := baseLines[baseStart:baseEnd]
		localSeg := localLines[segLocalStart:segLocalEnd]
		remoteSeg := remoteLines[segRemoteStart:segRemoteEnd]

		switch {
		case linesEqual(localSeg, baseSeg) && linesEqual(remoteSeg, baseSeg):
			out = append(out, baseSeg...)
		case linesEqual(localSeg, baseSeg):
			out = append(out, remoteSeg...)
		case linesEqual(remoteSeg, baseSeg):
			out = append(out, localSeg...)
		case linesEqual(localSeg, remoteSeg):
			out = append(out, localSeg...)
		default:
			conflicts++
			out = append(out, markerLocalStart)
			out = append(out, localSeg...)
			out = append(out, markerSeparator)
			out = append(out, remoteSeg...)
			out = append(out, markerRemoteEnd)
		}

		if anchors[a+1] < len(baseLines) {
			out = append(out, baseLines[anchors[a+1]])
		}
	}

	return Result{
		Content:       strings.Join(out, "\n"),
		Success:       conflicts == 0,
		ConflictCount: conflicts,
	}
}

// HasConflictMarkers reports whether text contains an unresolved conflict
// region. Used to reject pushes of files a user has not yet resolved.
func HasConflictMarkers(text string) bool {
	return strings.Contains(text, markerLocalStart) ||
		strings.Contains(text, markerRemoteEnd) ||
		(strings.Contains(text, markerSeparator) && strings.Contains(text, "<<<<<<<"))
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// alignToBase diffs base against other at line granularity and returns:
//   - eq: for each base line index, whether that exact line survives
//     unchanged in other at the corresponding position
//   - idx: for each base line index, the corresponding line index in other
//     (best-effort; used only to slice segments between anchors)
func alignToBase(base, other string, baseLen int) (eq []bool, idx []int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(base, other)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	eq = make([]bool, baseLen)
	idx = make([]int, baseLen)

	baseLine, otherLine := 0, 0
	for _, d := range diffs {
		segLines := splitLines(strings.TrimSuffix(d.Text, "\n"))
		if d.Text == "" {
			continue
		}
		n := len(segLines)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for i := 0; i < n && baseLine+i < baseLen; i++ {
				eq[baseLine+i] = true
				idx[baseLine+i] = otherLine + i
			}
			baseLine += n
			otherLine += n
		case diffmatchpatch.DiffDelete:
			for i := 0; i < n && baseLine+i < baseLen; i++ {
				idx[baseLine+i] = otherLine
			}
			baseLine += n
		case diffmatchpatch.DiffInsert:
			otherLine += n
		}
	}
	for baseLine < baseLen {
		idx[baseLine] = otherLine
		baseLine++
	}
	return eq, idx
}

// gapRange returns the half-open [start, end) range, in the other text, of
// the content strictly between two anchor base-line indices (prevAnchor and
// nextAnchor may be the sentinels -1 and baseLen). Because idx[anchor] is
// the position of the anchor line itself in other, the gap following an
// anchor starts one past it; the gap before the next anchor ends exactly at
// its position.
func gapRange(idx []int, prevAnchor, nextAnchor, baseLen, otherLen int) (start, end int) {
	switch {
	case prevAnchor < 0:
		start = 0
	case prevAnchor >= baseLen:
		start = otherLen
	default:
		start = idx[prevAnchor] + 1
	}

	switch {
	case nextAnchor >= baseLen:
		end = otherLen
	case nextAnchor < 0:
		end = 0
	default:
		end = idx[nextAnchor]
	}

	if end < start {
		end = start
	}
	if start > otherLen {
		start = otherLen
	}
	if end > otherLen {
		end = otherLen
	}
	return start, end
}
