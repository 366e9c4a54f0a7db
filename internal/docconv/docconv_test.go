package docconv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkdownToStorageAndBackRoundTripsProse(t *testing.T) {
	c := New()
	md := "# Title\n\nSome **bold** and *italic* and `code` text with a [link](https://example.com).\n"

	storage, err := c.MarkdownToStorage(md)
	require.NoError(t, err)
	require.Contains(t, storage, `"type":"doc"`)
	require.Contains(t, storage, "heading")

	back, err := c.StorageToMarkdown(storage)
	require.NoError(t, err)
	require.Contains(t, back, "# Title")
	require.Contains(t, back, "**bold**")
	require.Contains(t, back, "*italic*")
	require.Contains(t, back, "`code`")
	require.Contains(t, back, "[link](https://example.com)")
}

func TestMarkdownToStorageHandlesLists(t *testing.T) {
	c := New()
	md := "- one\n- two\n\n1. first\n2. second\n"

	storage, err := c.MarkdownToStorage(md)
	require.NoError(t, err)
	require.Contains(t, storage, "bulletList")
	require.Contains(t, storage, "orderedList")

	back, err := c.StorageToMarkdown(storage)
	require.NoError(t, err)
	require.Contains(t, back, "- one")
	require.Contains(t, back, "1. first")
}

func TestMarkdownToStorageHandlesCodeBlocks(t *testing.T) {
	c := New()
	md := "```go\nfmt.Println(\"hi\")\n```\n"

	storage, err := c.MarkdownToStorage(md)
	require.NoError(t, err)
	require.Contains(t, storage, "codeBlock")

	back, err := c.StorageToMarkdown(storage)
	require.NoError(t, err)
	require.Contains(t, back, "```go")
	require.Contains(t, back, `fmt.Println("hi")`)
}

func TestStorageToMarkdownEmptyInput(t *testing.T) {
	c := New()
	md, err := c.StorageToMarkdown("")
	require.NoError(t, err)
	require.Equal(t, "", md)
}

func TestMarkdownToStorageHandlesImages(t *testing.T) {
	c := New()
	md := "![diagram](https://example.com/diagram.png)\n"

	storage, err := c.MarkdownToStorage(md)
	require.NoError(t, err)
	require.Contains(t, storage, "media")

	back, err := c.StorageToMarkdown(storage)
	require.NoError(t, err)
	require.Contains(t, back, "diagram.png")
}
