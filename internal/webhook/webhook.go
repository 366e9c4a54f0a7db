// Package webhook runs the embedded HTTP receiver for remote push
// notifications (SPEC_FULL.md §4.5, §6).
//
// The teacher has no webhook precedent at all — internal/cli/watch.go only
// polls. Grounded instead on the general net/http idiom of a *http.Server
// plus graceful Shutdown(ctx), the pattern the spec's expansion (§4.5)
// attributes to the syftbox and onedrive-go sync engines in the example
// pack; the JSON decode-and-dispatch body follows the same encoding/json
// handler style internal/notion/client.go already uses for responses.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/poller"
)

// payload is the JSON body the remote posts on each event (§6: "JSON
// payloads with an eventType string ... and a page object").
type payload struct {
	EventType string `json:"eventType"`
	Page      struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		SpaceKey string `json:"spaceKey"`
	} `json:"page"`
}

// Filter decides whether an incoming event is in scope for this daemon:
// page-scoped daemons filter by page id, space-scoped ones by space key.
type Filter func(pageID, spaceKey string) bool

// Receiver is the embedded HTTP server accepting remote push events.
type Receiver struct {
	srv    *http.Server
	events chan<- poller.Event
	filter Filter
	log    *zap.Logger
}

// New builds a Receiver listening on addr (e.g. ":8787") at path. Events
// passing filter are forwarded to events as poller.Event{PageID, Type};
// page_created maps to EventCreated and page_updated maps to EventChanged,
// dispatched to the engine the same way a poller-observed create/change is
// (§4.5); page_removed/page_trashed map to EventDeleted and are forwarded
// the same way; the engine records them but never deletes local files
// (§4.8.5).
func New(addr, path string, events chan<- poller.Event, filter Filter, log *zap.Logger) *Receiver {
	r := &Receiver{events: events, filter: filter, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc(path, r.handle)
	r.srv = &http.Server{Addr: addr, Handler: mux}
	return r
}

// ListenAndServe blocks until the server is shut down or fails to start.
// Returns nil on a clean Shutdown.
func (r *Receiver) ListenAndServe() error {
	err := r.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server (§5: "closes the webhook server" on
// termination signal).
func (r *Receiver) Shutdown(ctx context.Context) error {
	return r.srv.Shutdown(ctx)
}

func (r *Receiver) handle(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var p payload
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch p.EventType {
	case "page_created", "page_updated", "page_removed", "page_trashed":
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if r.filter != nil && !r.filter(p.Page.ID, p.Page.SpaceKey) {
		// §6: "403 if the event fails the configured page/space filter
		// (silently accepted, not re-dispatched)".
		w.WriteHeader(http.StatusForbidden)
		return
	}

	evt := poller.Event{PageID: p.Page.ID}
	switch p.EventType {
	case "page_created":
		evt.Type = poller.EventCreated
	case "page_updated":
		evt.Type = poller.EventChanged
	case "page_removed", "page_trashed":
		evt.Type = poller.EventDeleted
		r.log.Info("webhook: remote removal observed, local file untouched",
			zap.String("page_id", p.Page.ID), zap.String("event", p.EventType))
	}

	r.dispatch(req.Context(), evt)
	w.WriteHeader(http.StatusNoContent)
}

func (r *Receiver) dispatch(ctx context.Context, evt poller.Event) {
	select {
	case r.events <- evt:
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		r.log.Warn("webhook: event dropped, reconciliation channel full", zap.String("page_id", evt.PageID))
	}
}
