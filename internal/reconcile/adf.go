package reconcile

import (
	"encoding/json"
	"strings"

	"github.com/adamancini/confluence-sync/internal/store"
)

// AttachmentRef is a discovered reference to an attachment inside a page's
// storage body.
type AttachmentRef struct {
	AttachmentID string
	Filename     string
}

// ExtractAttachmentRefs walks a storage body, treated as an
// Atlassian-Document-Format-shaped JSON tree, for media node references
// (§6: "adapter treats storage bodies as ADF-shaped JSON trees for the
// purpose of attachment-reference discovery only").
//
// Grounded on the rgonek-confluence-markdown-sync reference material's
// collectAttachmentRefs/walkADFNode: a generic map/slice walk over the
// decoded JSON looking for media/mediaInline/image/file nodes, adapted from
// that tool's per-page ref map to a flat slice since this package needs
// only the set of attachments a single page's body references.
func ExtractAttachmentRefs(storage string) []AttachmentRef {
	if strings.TrimSpace(storage) == "" {
		return nil
	}

	var raw any
	if err := json.Unmarshal([]byte(storage), &raw); err != nil {
		return nil
	}

	var out []AttachmentRef
	seen := make(map[string]bool)
	walkADF(raw, func(node map[string]any) {
		nodeType, _ := node["type"].(string)
		switch nodeType {
		case "media", "mediaInline", "image", "file":
		default:
			return
		}
		attrs, _ := node["attrs"].(map[string]any)
		id := firstString(attrs, "attachmentId", "mediaId", "fileId", "id")
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		filename := firstString(attrs, "filename", "fileName", "name")
		if filename == "" {
			filename = id
		}
		out = append(out, AttachmentRef{AttachmentID: id, Filename: filename})
	})
	return out
}

// ExtractLinks walks storage for hyperlink marks and returns the edges to
// replace via store.SetPageLinks after a pull (§4.8.2 step 9). Links whose
// href is a bare http(s) URL are classified external; everything else is
// left unresolved (internal link resolution against the path index is the
// reconciliation engine's job, not this extractor's — it has no page-id
// view of the target).
func ExtractLinks(sourcePageID, storage string) []store.Link {
	if strings.TrimSpace(storage) == "" {
		return nil
	}

	var raw any
	if err := json.Unmarshal([]byte(storage), &raw); err != nil {
		return nil
	}

	var out []store.Link
	walkADF(raw, func(node map[string]any) {
		marks, _ := node["marks"].([]any)
		for _, m := range marks {
			mark, ok := m.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := mark["type"].(string); t != "link" {
				continue
			}
			attrs, _ := mark["attrs"].(map[string]any)
			href := firstString(attrs, "href")
			if href == "" {
				continue
			}
			linkType := "internal"
			if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
				linkType = "external"
			}
			text, _ := node["text"].(string)
			out = append(out, store.Link{
				SourcePageID: sourcePageID,
				TargetPath:   href,
				LinkType:     linkType,
				LinkText:     text,
			})
		}
	})
	return out
}

func walkADF(node any, visit func(map[string]any)) {
	switch typed := node.(type) {
	case map[string]any:
		visit(typed)
		for _, v := range typed {
			walkADF(v, visit)
		}
	case []any:
		for _, item := range typed {
			walkADF(item, visit)
		}
	}
}

func firstString(attrs map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
