// Package docconv is the default Markdown<->storage Converter wired into
// the reconcile engine. It converts Markdown prose into an
// Atlassian-Document-Format-shaped JSON tree and converts such trees back
// into Markdown.
//
// Grounded on internal/transformer/transformer.go and reverse.go: the
// same goldmark-AST-walk-to-blocks shape for MarkdownToStorage, and the
// same block-to-markdown-string shape (minus Notion's typed block
// structs) for StorageToMarkdown, both retargeted from Notion's typed
// block API to the untyped ADF node shape internal/reconcile's
// ExtractAttachmentRefs/ExtractLinks already read.
package docconv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// node is one ADF tree element: {type, attrs, marks, text, content}.
type node = map[string]any

// Converter implements reconcile.Converter.
type Converter struct {
	md goldmark.Markdown
}

// New builds a Converter using a plain-CommonMark goldmark instance — the
// Obsidian-specific goldmark extensions (wikilinks, callouts, dataview)
// the teacher registers have no Confluence-storage equivalent and are
// dropped rather than carried for a format they don't target.
func New() *Converter {
	return &Converter{md: goldmark.New()}
}

// MarkdownToStorage parses markdown and emits an ADF-shaped JSON document.
func (c *Converter) MarkdownToStorage(markdown string) (string, error) {
	source := []byte(markdown)
	doc := c.md.Parser().Parse(text.NewReader(source))

	root := node{"type": "doc", "version": 1}
	var content []any
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() == ast.KindDocument {
			return ast.WalkContinue, nil
		}
		block, skipChildren := blockNode(n, source)
		if block != nil {
			content = append(content, block)
		}
		if skipChildren {
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("walk markdown ast: %w", err)
	}
	root["content"] = content

	out, err := json.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("marshal storage document: %w", err)
	}
	return string(out), nil
}

// blockNode converts one top-level goldmark block node to an ADF node.
// Returns nil, false for nodes handled as part of their parent (inline
// runs) or the document root.
func blockNode(n ast.Node, source []byte) (node, bool) {
	switch b := n.(type) {
	case *ast.Heading:
		return node{"type": "heading", "attrs": node{"level": b.Level}, "content": inlineContent(b, source)}, true

	case *ast.Paragraph:
		return node{"type": "paragraph", "content": inlineContent(b, source)}, true

	case *ast.TextBlock:
		return node{"type": "paragraph", "content": inlineContent(b, source)}, true

	case *ast.List:
		listType := "bulletList"
		if b.IsOrdered() {
			listType = "orderedList"
		}
		return node{"type": listType, "content": listItems(b, source)}, true

	case *ast.FencedCodeBlock:
		lang := string(b.Language(source))
		return node{
			"type":    "codeBlock",
			"attrs":   node{"language": lang},
			"content": []any{node{"type": "text", "text": codeBlockText(b, source)}},
		}, true

	case *ast.Blockquote:
		var content []any
		for c := b.FirstChild(); c != nil; c = c.NextSibling() {
			if block, _ := blockNode(c, source); block != nil {
				content = append(content, block)
			}
		}
		return node{"type": "blockquote", "content": content}, true

	case *ast.ThematicBreak:
		return node{"type": "rule"}, true

	default:
		return nil, false
	}
}

func listItems(list *ast.List, source []byte) []any {
	var items []any
	for c := list.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		var content []any
		for gc := item.FirstChild(); gc != nil; gc = gc.NextSibling() {
			if block, _ := blockNode(gc, source); block != nil {
				content = append(content, block)
			}
		}
		items = append(items, node{"type": "listItem", "content": content})
	}
	return items
}

func codeBlockText(b *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < b.Lines().Len(); i++ {
		line := b.Lines().At(i)
		buf.Write(line.Value(source))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// inlineContent walks a block's inline children into ADF text/mark runs.
func inlineContent(parent ast.Node, source []byte) []any {
	var out []any
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, inlineNode(c, source, nil)...)
	}
	return out
}

func inlineNode(n ast.Node, source []byte, marks []any) []any {
	switch inl := n.(type) {
	case *ast.Text:
		return []any{textNode(string(inl.Segment.Value(source)), marks)}

	case *ast.CodeSpan:
		var buf bytes.Buffer
		for c := inl.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return []any{textNode(buf.String(), append(marks, node{"type": "code"}))}

	case *ast.Emphasis:
		markType := "em"
		if inl.Level == 2 {
			markType = "strong"
		}
		var out []any
		for c := inl.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, inlineNode(c, source, append(marks, node{"type": markType}))...)
		}
		return out

	case *ast.Link:
		linkMark := node{"type": "link", "attrs": node{"href": string(inl.Destination)}}
		var out []any
		for c := inl.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, inlineNode(c, source, append(marks, linkMark))...)
		}
		return out

	case *ast.Image:
		return []any{{
			"type":  "media",
			"attrs": node{"url": string(inl.Destination), "filename": string(inl.Title)},
		}}

	default:
		var out []any
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, inlineNode(c, source, marks)...)
		}
		return out
	}
}

func textNode(text string, marks []any) node {
	n := node{"type": "text", "text": text}
	if len(marks) > 0 {
		n["marks"] = marks
	}
	return n
}

// StorageToMarkdown walks an ADF-shaped storage document and renders it
// back to markdown text.
func (c *Converter) StorageToMarkdown(storage string) (string, error) {
	if strings.TrimSpace(storage) == "" {
		return "", nil
	}

	var doc node
	if err := json.Unmarshal([]byte(storage), &doc); err != nil {
		return "", fmt.Errorf("parse storage document: %w", err)
	}

	var buf bytes.Buffer
	for _, c := range asSlice(doc["content"]) {
		buf.WriteString(nodeToMarkdown(asNode(c), 0))
	}
	return buf.String(), nil
}

func nodeToMarkdown(n node, depth int) string {
	if n == nil {
		return ""
	}
	indent := strings.Repeat("  ", depth)
	nodeType, _ := n["type"].(string)

	switch nodeType {
	case "heading":
		level := 1
		if attrs, ok := n["attrs"].(map[string]any); ok {
			if lv, ok := attrs["level"].(float64); ok {
				level = int(lv)
			}
		}
		return strings.Repeat("#", level) + " " + inlineToMarkdown(n["content"]) + "\n\n"

	case "paragraph":
		text := inlineToMarkdown(n["content"])
		if text == "" {
			return "\n"
		}
		return indent + text + "\n\n"

	case "bulletList":
		var out strings.Builder
		for _, item := range asSlice(n["content"]) {
			out.WriteString(listItemMarkdown(asNode(item), "- ", depth))
		}
		return out.String()

	case "orderedList":
		var out strings.Builder
		for i, item := range asSlice(n["content"]) {
			out.WriteString(listItemMarkdown(asNode(item), fmt.Sprintf("%d. ", i+1), depth))
		}
		return out.String()

	case "codeBlock":
		lang := ""
		if attrs, ok := n["attrs"].(map[string]any); ok {
			lang, _ = attrs["language"].(string)
		}
		code := textContent(n["content"])
		return "```" + lang + "\n" + code + "\n```\n\n"

	case "blockquote":
		var out strings.Builder
		for _, child := range asSlice(n["content"]) {
			line := nodeToMarkdown(asNode(child), 0)
			for _, l := range strings.Split(strings.TrimRight(line, "\n"), "\n") {
				out.WriteString("> " + l + "\n")
			}
		}
		out.WriteString("\n")
		return out.String()

	case "rule":
		return "---\n\n"

	case "media", "mediaInline":
		attrs, _ := n["attrs"].(map[string]any)
		filename, _ := attrs["filename"].(string)
		url, _ := attrs["url"].(string)
		if url == "" {
			url = filename
		}
		return fmt.Sprintf("![%s](%s)\n\n", filename, url)

	default:
		return inlineToMarkdown(n["content"])
	}
}

func listItemMarkdown(item node, prefix string, depth int) string {
	if item == nil {
		return ""
	}
	indent := strings.Repeat("  ", depth)
	var text string
	var rest strings.Builder
	for _, c := range asSlice(item["content"]) {
		cn := asNode(c)
		if t, _ := cn["type"].(string); t == "paragraph" {
			text = inlineToMarkdown(cn["content"])
			continue
		}
		rest.WriteString(nodeToMarkdown(cn, depth+1))
	}
	return indent + prefix + text + "\n" + rest.String()
}

func textContent(content any) string {
	var buf strings.Builder
	for _, c := range asSlice(content) {
		cn := asNode(c)
		if t, _ := cn["text"].(string); t != "" {
			buf.WriteString(t)
		}
	}
	return buf.String()
}

// inlineToMarkdown renders a run of ADF text nodes, applying mark
// wrapping (strong/em/code/link) per node.
func inlineToMarkdown(content any) string {
	var buf strings.Builder
	for _, c := range asSlice(content) {
		cn := asNode(c)
		nodeType, _ := cn["type"].(string)
		if nodeType == "media" || nodeType == "mediaInline" {
			buf.WriteString(nodeToMarkdown(cn, 0))
			continue
		}
		text, _ := cn["text"].(string)
		buf.WriteString(applyMarks(text, asSlice(cn["marks"])))
	}
	return buf.String()
}

func applyMarks(text string, marks []any) string {
	var href string
	for _, m := range marks {
		mark := asNode(m)
		switch mark["type"] {
		case "strong":
			text = "**" + text + "**"
		case "em":
			text = "*" + text + "*"
		case "code":
			text = "`" + text + "`"
		case "link":
			if attrs, ok := mark["attrs"].(map[string]any); ok {
				href, _ = attrs["href"].(string)
			}
		}
	}
	if href != "" {
		text = "[" + text + "](" + href + ")"
	}
	return text
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asNode(v any) node {
	n, _ := v.(map[string]any)
	return n
}
