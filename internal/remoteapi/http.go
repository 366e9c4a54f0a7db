package remoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimit mirrors the teacher's Notion default of 3 req/s;
	// Confluence Cloud's documented per-app limit is comparable, so the
	// same default is kept rather than invented fresh.
	DefaultRateLimit = 3

	// DefaultRequestTimeout bounds a single HTTP round trip.
	DefaultRequestTimeout = 10 * time.Second
)

// HTTPClient is the rate-limited REST implementation of Client. It wraps
// net/http rather than any generated SDK, mirroring the teacher's
// notion.Client wrapper around notionapi.Client: a rate limiter guarding
// an injectable transport, with functional options for construction.
type HTTPClient struct {
	baseURL string
	token   string
	hc      *http.Client
	limiter *rate.Limiter
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithRateLimit sets a custom requests-per-second ceiling.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *HTTPClient) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithHTTPClient overrides the underlying *http.Client (tests inject one
// pointed at an httptest.Server).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.hc = hc
	}
}

// NewHTTPClient builds a Client against baseURL, authenticating with token
// as a bearer credential.
func NewHTTPClient(baseURL, token string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		token:   token,
		hc:      &http.Client{Timeout: DefaultRequestTimeout},
		limiter: rate.NewLimiter(rate.Every(time.Second/DefaultRateLimit), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	if err := c.wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{ID: path}
	}
	if resp.StatusCode == http.StatusConflict {
		return &ConflictError{ID: path}
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remote returned %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) GetPage(ctx context.Context, id string) (*Page, error) {
	var p Page
	if err := c.do(ctx, http.MethodGet, "/rest/api/content/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) GetAllPages(ctx context.Context, scope Scope) ([]Page, error) {
	path := "/rest/api/content?spaceKey=" + url.QueryEscape(scope.SpaceKey)
	if scope.RootID != "" {
		path += "&ancestor=" + url.QueryEscape(scope.RootID)
	}
	var pages []Page
	if err := c.do(ctx, http.MethodGet, path, nil, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *HTTPClient) CreatePage(ctx context.Context, in PageCreate) (*Page, error) {
	var p Page
	if err := c.do(ctx, http.MethodPost, "/rest/api/content", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) UpdatePage(ctx context.Context, in PageUpdate) (*Page, error) {
	var p Page
	if err := c.do(ctx, http.MethodPut, "/rest/api/content/"+url.PathEscape(in.ID), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) DeletePage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/rest/api/content/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ArchivePage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/rest/api/content/"+url.PathEscape(id)+"/archive", nil, nil)
}

func (c *HTTPClient) AddLabel(ctx context.Context, pageID, label string) error {
	return c.do(ctx, http.MethodPost, "/rest/api/content/"+url.PathEscape(pageID)+"/label", []map[string]string{{"name": label}}, nil)
}

func (c *HTTPClient) RemoveLabel(ctx context.Context, pageID, label string) error {
	return c.do(ctx, http.MethodDelete, "/rest/api/content/"+url.PathEscape(pageID)+"/label/"+url.PathEscape(label), nil, nil)
}

func (c *HTTPClient) GetLabels(ctx context.Context, pageID string) ([]string, error) {
	var out struct {
		Labels []string `json:"labels"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/content/"+url.PathEscape(pageID)+"/label", nil, &out); err != nil {
		return nil, err
	}
	return out.Labels, nil
}

func (c *HTTPClient) ListAttachments(ctx context.Context, pageID string) ([]Attachment, error) {
	var atts []Attachment
	if err := c.do(ctx, http.MethodGet, "/rest/api/content/"+url.PathEscape(pageID)+"/child/attachment", nil, &atts); err != nil {
		return nil, err
	}
	return atts, nil
}

func (c *HTTPClient) UploadAttachment(ctx context.Context, pageID, filename string, data []byte) (*Attachment, error) {
	var att Attachment
	payload := map[string]string{"filename": filename, "size": strconv.Itoa(len(data))}
	if err := c.do(ctx, http.MethodPost, "/rest/api/content/"+url.PathEscape(pageID)+"/child/attachment", payload, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

func (c *HTTPClient) UpdateAttachment(ctx context.Context, pageID, attachmentID string, data []byte) (*Attachment, error) {
	var att Attachment
	payload := map[string]string{"size": strconv.Itoa(len(data))}
	if err := c.do(ctx, http.MethodPost, "/rest/api/content/"+url.PathEscape(pageID)+"/child/attachment/"+url.PathEscape(attachmentID)+"/data", payload, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

func (c *HTTPClient) GetUsers(ctx context.Context, ids []string) (map[string]*User, error) {
	var users []User
	if err := c.do(ctx, http.MethodPost, "/rest/api/user/bulk", ids, &users); err != nil {
		return nil, err
	}
	out := make(map[string]*User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (c *HTTPClient) RegisterWebhook(ctx context.Context, reg WebhookRegistration) error {
	return c.do(ctx, http.MethodPost, "/rest/api/webhooks", reg, nil)
}

var _ Client = (*HTTPClient)(nil)
