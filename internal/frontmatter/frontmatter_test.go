package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWriteRoundTrip(t *testing.T) {
	md := []byte("---\nid: p1\ntitle: Hello World\nlabels:\n  - howto\n---\nBody text here.\n")
	meta, body, err := Parse(md)
	require.NoError(t, err)
	require.Equal(t, "p1", meta.PageID())
	require.Equal(t, "Hello World", meta.Title())
	require.Equal(t, []string{"howto"}, meta.Labels())
	require.Equal(t, "Body text here.\n", string(body))

	out, err := Write(meta, body)
	require.NoError(t, err)

	meta2, body2, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, meta.PageID(), meta2.PageID())
	require.Equal(t, string(body), string(body2))
}

func TestParseNoFrontmatter(t *testing.T) {
	md := []byte("Just a plain body.\n")
	meta, body, err := Parse(md)
	require.NoError(t, err)
	require.False(t, meta.IsBound())
	require.Equal(t, string(md), string(body))
}

func TestWriteEmptyMetaIsNoop(t *testing.T) {
	out, err := Write(Meta{}, []byte("body\n"))
	require.NoError(t, err)
	require.Equal(t, "body\n", string(out))
}
