// Package frontmatter parses and serializes the YAML header that binds a
// local Markdown file to a remote page id.
package frontmatter

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Meta is the parsed key/value header of a tracked Markdown file. At minimum
// a bound file carries "id" (the remote page id) and "title".
type Meta map[string]any

// Parse extracts the YAML front-matter block from markdown content, if any,
// and returns it alongside the remaining body. A file with no recognizable
// front-matter yields an empty Meta and the original content as body: the
// caller (the state store's binding resolution, per the path-resolution
// component) treats that file as untracked until bound.
func Parse(content []byte) (Meta, []byte, error) {
	meta := make(Meta)

	if !bytes.HasPrefix(content, []byte(delimiter+"\n")) {
		return meta, content, nil
	}

	rest := content[len(delimiter)+1:]
	idx := bytes.Index(rest, []byte("\n"+delimiter+"\n"))
	if idx == -1 {
		if bytes.HasSuffix(rest, []byte("\n"+delimiter)) {
			idx = len(rest) - len(delimiter) - 1
		} else {
			return meta, content, nil
		}
	}

	yamlBlock := rest[:idx]
	body := rest[idx+len(delimiter)+2:]

	if err := yaml.Unmarshal(yamlBlock, &meta); err != nil {
		return nil, nil, fmt.Errorf("parse front-matter: %w", err)
	}
	return meta, body, nil
}

// Write renders meta and body back into a single Markdown document. An empty
// meta produces no header at all — the body is written verbatim.
func Write(meta Meta, body []byte) ([]byte, error) {
	if len(meta) == 0 {
		return body, nil
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(meta)); err != nil {
		return nil, fmt.Errorf("encode front-matter: %w", err)
	}
	_ = enc.Close()

	buf.WriteString(delimiter + "\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// PageID returns the bound remote page id, or "" if the file is untracked.
func (m Meta) PageID() string { return m.GetString("id") }

// Title returns the bound title, or "" if absent.
func (m Meta) Title() string { return m.GetString("title") }

// SetPageID binds meta to a remote page id.
func (m Meta) SetPageID(id string) { m["id"] = id }

// SetTitle sets the bound title.
func (m Meta) SetTitle(title string) { m["title"] = title }

// IsBound reports whether meta carries a non-empty page id, the condition
// that distinguishes a tracked file from an untracked one (§4.1).
func (m Meta) IsBound() bool { return m.PageID() != "" }

// GetString retrieves a string value, returning "" for a missing or
// non-string key.
func (m Meta) GetString(key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetStringSlice retrieves a []string value, accepting both native slices
// and YAML's generic []any decoding.
func (m Meta) GetStringSlice(key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{val}
	default:
		return nil
	}
}

// Labels extracts the "labels" field, the Confluence analog of a tag list.
func (m Meta) Labels() []string { return m.GetStringSlice("labels") }
