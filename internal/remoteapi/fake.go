package remoteapi

import (
	"context"
	"strconv"
	"sync"
)

// Fake is an in-memory Client used throughout the test suite, grounded on
// internal/state/remote_test.go's MockRemoteChecker: a plain map keyed by
// page id, with an optional global Err to simulate remote unavailability.
type Fake struct {
	mu sync.Mutex

	Pages       map[string]*Page
	Labels      map[string][]string
	Attachments map[string][]Attachment
	Users       map[string]*User

	Err error // if set, every method returns this error

	NextID       int
	Webhooks     []WebhookRegistration
}

// NewFake builds an empty Fake.
func NewFake() *Fake {
	return &Fake{
		Pages:       make(map[string]*Page),
		Labels:      make(map[string][]string),
		Attachments: make(map[string][]Attachment),
		Users:       make(map[string]*User),
	}
}

func (f *Fake) GetPage(ctx context.Context, id string) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p, ok := f.Pages[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	cp := *p
	return &cp, nil
}

func (f *Fake) GetAllPages(ctx context.Context, scope Scope) ([]Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []Page
	for _, p := range f.Pages {
		if scope.SpaceKey != "" && p.SpaceKey != scope.SpaceKey {
			continue
		}
		if scope.RootID != "" && !inSubtree(p, scope.RootID) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func inSubtree(p *Page, rootID string) bool {
	if p.ID == rootID {
		return true
	}
	for _, a := range p.Ancestors {
		if a == rootID {
			return true
		}
	}
	return false
}

func (f *Fake) CreatePage(ctx context.Context, in PageCreate) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.NextID++
	id := "fake-" + strconv.Itoa(f.NextID)
	ancestors := []string{}
	if in.ParentID != "" {
		if parent, ok := f.Pages[in.ParentID]; ok {
			ancestors = append(append([]string{}, parent.Ancestors...), in.ParentID)
			parent.HasChildren = true
		}
	}
	p := &Page{
		ID:        id,
		Title:     in.Title,
		SpaceKey:  in.SpaceKey,
		Version:   1,
		ParentID:  in.ParentID,
		Ancestors: ancestors,
		Storage:   in.Storage,
		Status:    "current",
	}
	f.Pages[id] = p
	cp := *p
	return &cp, nil
}

func (f *Fake) UpdatePage(ctx context.Context, in PageUpdate) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p, ok := f.Pages[in.ID]
	if !ok {
		return nil, &NotFoundError{ID: in.ID}
	}
	if in.Version != 0 && in.Version != p.Version {
		return nil, &ConflictError{ID: in.ID, ExpectedVersion: in.Version, ActualVersion: p.Version}
	}
	p.Title = in.Title
	p.Storage = in.Storage
	p.Version++
	cp := *p
	return &cp, nil
}

func (f *Fake) DeletePage(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if _, ok := f.Pages[id]; !ok {
		return &NotFoundError{ID: id}
	}
	delete(f.Pages, id)
	delete(f.Labels, id)
	delete(f.Attachments, id)
	return nil
}

func (f *Fake) ArchivePage(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	p, ok := f.Pages[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	p.Status = "archived"
	return nil
}

func (f *Fake) AddLabel(ctx context.Context, pageID, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, l := range f.Labels[pageID] {
		if l == label {
			return nil
		}
	}
	f.Labels[pageID] = append(f.Labels[pageID], label)
	return nil
}

func (f *Fake) RemoveLabel(ctx context.Context, pageID, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	kept := f.Labels[pageID][:0]
	for _, l := range f.Labels[pageID] {
		if l != label {
			kept = append(kept, l)
		}
	}
	f.Labels[pageID] = kept
	return nil
}

func (f *Fake) GetLabels(ctx context.Context, pageID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]string{}, f.Labels[pageID]...), nil
}

func (f *Fake) ListAttachments(ctx context.Context, pageID string) ([]Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]Attachment{}, f.Attachments[pageID]...), nil
}

func (f *Fake) UploadAttachment(ctx context.Context, pageID, filename string, data []byte) (*Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	att := Attachment{ID: filename, Filename: filename, Size: int64(len(data))}
	f.Attachments[pageID] = append(f.Attachments[pageID], att)
	return &att, nil
}

func (f *Fake) UpdateAttachment(ctx context.Context, pageID, attachmentID string, data []byte) (*Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for i, a := range f.Attachments[pageID] {
		if a.ID == attachmentID {
			f.Attachments[pageID][i].Size = int64(len(data))
			cp := f.Attachments[pageID][i]
			return &cp, nil
		}
	}
	return nil, &NotFoundError{ID: attachmentID}
}

func (f *Fake) GetUsers(ctx context.Context, ids []string) (map[string]*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make(map[string]*User, len(ids))
	for _, id := range ids {
		if u, ok := f.Users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *Fake) RegisterWebhook(ctx context.Context, reg WebhookRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Webhooks = append(f.Webhooks, reg)
	return nil
}

var _ Client = (*Fake)(nil)
