package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/confluence-sync/internal/logging"
	"github.com/adamancini/confluence-sync/internal/poller"
)

func newTestReceiver(t *testing.T, filter Filter) (*Receiver, chan poller.Event) {
	events := make(chan poller.Event, 10)
	r := New(":0", "/webhook", events, filter, logging.Nop())
	return r, events
}

func post(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookPageUpdatedDispatchesChanged(t *testing.T) {
	r, events := newTestReceiver(t, nil)
	rec := post(t, http.HandlerFunc(r.handle), `{"eventType":"page_updated","page":{"id":"p1","title":"Hi"}}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	select {
	case evt := <-events:
		assert.Equal(t, "p1", evt.PageID)
		assert.Equal(t, poller.EventChanged, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("no event dispatched")
	}
}

func TestWebhookPageRemovedDispatchesDeletedButDoesNotBlock(t *testing.T) {
	r, events := newTestReceiver(t, nil)
	rec := post(t, http.HandlerFunc(r.handle), `{"eventType":"page_removed","page":{"id":"p1"}}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	evt := <-events
	assert.Equal(t, poller.EventDeleted, evt.Type)
}

func TestWebhookMalformedBodyIs400(t *testing.T) {
	r, _ := newTestReceiver(t, nil)
	rec := post(t, http.HandlerFunc(r.handle), `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookUnknownEventTypeIs400(t *testing.T) {
	r, _ := newTestReceiver(t, nil)
	rec := post(t, http.HandlerFunc(r.handle), `{"eventType":"bogus","page":{"id":"p1"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookFilteredEventIs403AndSilent(t *testing.T) {
	filter := func(pageID, spaceKey string) bool { return false }
	r, events := newTestReceiver(t, filter)
	rec := post(t, http.HandlerFunc(r.handle), `{"eventType":"page_updated","page":{"id":"p1","spaceKey":"ENG"}}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, events)
}

func TestWebhookGetMethodNotAllowed(t *testing.T) {
	r, _ := newTestReceiver(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	r.handle(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListenAndServeShutdown(t *testing.T) {
	events := make(chan poller.Event, 1)
	r := New("127.0.0.1:0", "/webhook", events, nil, logging.Nop())

	errCh := make(chan error, 1)
	go func() { errCh <- r.ListenAndServe() }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, r.Shutdown(context.Background()))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}
