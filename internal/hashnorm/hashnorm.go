// Package hashnorm canonicalizes Markdown page bodies and computes a stable
// content fingerprint used to detect local, remote, and base drift.
package hashnorm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Algo identifies the digest algorithm used by Hash. Recorded in the state
// store's meta table (key "hash_algo") so a future implementation can detect
// a mismatched store instead of silently comparing hashes from two algorithms.
const Algo = "sha256"

var (
	frontmatterFence   = []byte("---")
	trailingWhitespace = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Normalize strips a leading sync front-matter block (if present), trims
// trailing whitespace from every line, collapses CRLF/CR line endings to LF,
// and ensures exactly one trailing newline. It is a pure function of its
// input: same bytes in, same bytes out, no side effects.
func Normalize(markdown []byte) []byte {
	_, body := SplitFrontmatter(markdown)

	s := string(body)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = trailingWhitespace.ReplaceAllString(s, "")
	s = strings.TrimRight(s, "\n")

	if s == "" {
		return nil
	}
	return []byte(s + "\n")
}

// NormalizeString is a convenience wrapper over Normalize for string content.
func NormalizeString(markdown string) string {
	return string(Normalize([]byte(markdown)))
}

// Hash returns the hex-encoded SHA-256 digest of text. Callers that want the
// hash of a working file's content should normalize first: Hash(Normalize(x)).
func Hash(text []byte) string {
	sum := sha256.Sum256(text)
	return hex.EncodeToString(sum[:])
}

// HashString is a convenience wrapper over Hash for string content.
func HashString(text string) string {
	return Hash([]byte(text))
}

// HashNormalized normalizes then hashes in one step; this is the function
// most callers outside this package should use.
func HashNormalized(markdown []byte) string {
	return Hash(Normalize(markdown))
}

// SplitFrontmatter separates a leading "---\n ... \n---\n" delimited block
// from the remainder of the document. It returns (frontmatter, body) with
// the fences stripped; frontmatter is nil if none is present. Splitting is
// purely byte-oriented — callers needing parsed fields use the frontmatter
// package.
func SplitFrontmatter(markdown []byte) (frontmatter, body []byte) {
	if !bytes.HasPrefix(markdown, frontmatterFence) {
		return nil, markdown
	}
	if len(markdown) <= 3 || markdown[3] != '\n' {
		return nil, markdown
	}

	rest := markdown[4:]
	if idx := bytes.Index(rest, []byte("\n---\n")); idx != -1 {
		return rest[:idx], rest[idx+5:]
	}
	if idx := bytes.Index(rest, []byte("\n---")); idx != -1 && idx+4 == len(rest) {
		return rest[:idx], nil
	}
	return nil, markdown
}
