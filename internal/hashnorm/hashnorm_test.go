package hashnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"hello\r\nworld\r\n",
		"hello   \nworld\t\n\n\n\n",
		"",
		"no trailing newline at all",
		"---\nid: p1\ntitle: X\n---\nbody text\n",
	}
	for _, in := range inputs {
		once := NormalizeString(in)
		twice := NormalizeString(once)
		assert.Equalf(t, once, twice, "normalize not idempotent for %q", in)
	}
}

func TestNormalizeTrailingNewline(t *testing.T) {
	got := NormalizeString("line one\nline two")
	require.Equal(t, "line one\nline two\n", got)
}

func TestNormalizeCollapsesLineEndings(t *testing.T) {
	crlf := NormalizeString("a\r\nb\r\n")
	cr := NormalizeString("a\rb\r")
	lf := NormalizeString("a\nb\n")
	assert.Equal(t, lf, crlf)
	assert.Equal(t, lf, cr)
}

func TestNormalizeStripsFrontmatter(t *testing.T) {
	md := "---\nid: p1\ntitle: Hello\n---\nActual body\n"
	got := NormalizeString(md)
	assert.Equal(t, "Actual body\n", got)
}

func TestNormalizeTrimsTrailingLineWhitespace(t *testing.T) {
	got := NormalizeString("a   \nb\t\n")
	assert.Equal(t, "a\nb\n", got)
}

func TestHashStabilityAcrossWhitespaceVariants(t *testing.T) {
	a := "Hello\nWorld"
	b := "Hello\r\nWorld\r\n\n\n"
	c := "Hello   \nWorld   \n"
	h1 := HashNormalized([]byte(a))
	h2 := HashNormalized([]byte(b))
	h3 := HashNormalized([]byte(c))
	assert.Equal(t, h1, h2)
	assert.Equal(t, h1, h3)
}

func TestHashIsHex64(t *testing.T) {
	h := HashString("anything")
	require.Len(t, h, 64)
}

func TestSplitFrontmatterNoFence(t *testing.T) {
	fm, body := SplitFrontmatter([]byte("just body text"))
	assert.Nil(t, fm)
	assert.Equal(t, "just body text", string(body))
}

func TestSplitFrontmatterPresent(t *testing.T) {
	fm, body := SplitFrontmatter([]byte("---\nid: p1\n---\nbody\n"))
	assert.Equal(t, "id: p1", string(fm))
	assert.Equal(t, "body\n", string(body))
}
