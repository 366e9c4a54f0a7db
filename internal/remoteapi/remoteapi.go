// Package remoteapi defines the client interface the sync engine, poller,
// and audit subsystem use to talk to the remote document space, plus the
// rate-limited HTTP implementation of it.
//
// The interface shape is new (the teacher's notion package exposes a
// concrete *Client with Notion-specific methods, not an interface at all),
// but the rate-limiting wrapper and ClientOption pattern are lifted
// directly from internal/notion/client.go, generalized from a
// notionapi.Client wrapper to a plain net/http + encoding/json client
// against a generic page-tree REST API.
package remoteapi

import (
	"context"
	"time"
)

// Page is the remote representation of a page, independent of transport.
type Page struct {
	ID               string
	Title            string
	SpaceKey         string
	Version          int
	ParentID         string
	Ancestors        []string
	Storage          string // page body in the remote's native storage format
	Status           string // "current" | "draft" | "archived"
	Restricted       bool
	HasChildren      bool
	CreatedBy        string
	CreatedAt        time.Time
	LastModifiedBy   string
	LastModifiedAt   time.Time
	Labels           []string
}

// Scope restricts a GetAllPages call to a page, a subtree, or a whole space.
type Scope struct {
	SpaceKey string
	RootID   string // if set, restrict to RootID and its descendants
}

// PageUpdate is the payload for UpdatePage.
type PageUpdate struct {
	ID      string
	Title   string
	Storage string
	Version int // the version the caller last observed; used for optimistic-concurrency checks
}

// PageCreate is the payload for CreatePage.
type PageCreate struct {
	SpaceKey string
	Title    string
	Storage  string
	ParentID string // empty for a space-root page
}

// User is a remote user record, cached locally to avoid per-page lookups.
type User struct {
	ID          string
	DisplayName string
	Email       string
	IsActive    *bool // nil means unknown
}

// Attachment is a file attached to a page.
type Attachment struct {
	ID       string
	Filename string
	Size     int64
	MediaURL string
}

// WebhookRegistration is the payload for registering a push-event receiver.
type WebhookRegistration struct {
	CallbackURL string
	Events      []string
	SpaceKey    string
}

// Client is the remote document space API the sync engine depends on.
// Implementations must be safe for concurrent use; the reconciliation
// pipeline calls it from multiple per-page workers at once (§5).
type Client interface {
	GetPage(ctx context.Context, id string) (*Page, error)
	GetAllPages(ctx context.Context, scope Scope) ([]Page, error)
	CreatePage(ctx context.Context, in PageCreate) (*Page, error)
	UpdatePage(ctx context.Context, in PageUpdate) (*Page, error)
	DeletePage(ctx context.Context, id string) error
	ArchivePage(ctx context.Context, id string) error

	AddLabel(ctx context.Context, pageID, label string) error
	RemoveLabel(ctx context.Context, pageID, label string) error
	GetLabels(ctx context.Context, pageID string) ([]string, error)

	ListAttachments(ctx context.Context, pageID string) ([]Attachment, error)
	UploadAttachment(ctx context.Context, pageID, filename string, data []byte) (*Attachment, error)
	UpdateAttachment(ctx context.Context, pageID, attachmentID string, data []byte) (*Attachment, error)

	GetUsers(ctx context.Context, ids []string) (map[string]*User, error)

	RegisterWebhook(ctx context.Context, reg WebhookRegistration) error
}

// NotFoundError indicates the remote has no record of the requested id —
// the caller should treat this as a remote deletion, not a transient fault.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "remoteapi: not found: " + e.ID
}

// ConflictError indicates an optimistic-concurrency mismatch: the version
// supplied in a PageUpdate no longer matches the remote's current version.
type ConflictError struct {
	ID             string
	ExpectedVersion int
	ActualVersion   int
}

func (e *ConflictError) Error() string {
	return "remoteapi: version conflict on " + e.ID
}
