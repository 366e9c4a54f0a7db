// Package poller periodically asks the remote for the set of pages in
// scope and diffs the result against an in-memory snapshot to discover
// created, changed, and deleted pages.
//
// Grounded on internal/cli/watch.go's pollNotion: a time.Ticker drives a
// fetch-all-then-compare loop against locally known versions. The teacher
// diffs against the state store directly; this version keeps its own
// snapshot so a slow or failing remote never blocks on store access, and
// so GetAllPages (not per-page GetPage) drives a single request per tick.
package poller

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/remoteapi"
)

// EventType is the kind of change a poller or webhook observed.
type EventType int

const (
	EventCreated EventType = iota
	EventChanged
	EventDeleted
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventChanged:
		return "changed"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is the uniform shape emitted by both remote-change sources
// (SPEC_FULL.md §4.5): "Both sources emit events into a single
// reconciliation channel; consumers see a uniform RemoteEvent{PageID, Type}."
type Event struct {
	PageID string
	Type   EventType
}

// Poller asks the remote for all in-scope pages on each tick and diffs
// against the previous tick's snapshot.
type Poller struct {
	client   remoteapi.Client
	scope    remoteapi.Scope
	interval time.Duration
	events   chan<- Event
	log      *zap.Logger

	running int32 // elastic backpressure: skip a tick already in flight (§4.5, §5)
	seen    map[string]int // pageID -> last observed version
}

// New builds a Poller that sends events to events. The channel is owned by
// the caller (the reconciliation engine); Poller never closes it.
func New(client remoteapi.Client, scope remoteapi.Scope, interval time.Duration, events chan<- Event, log *zap.Logger) *Poller {
	return &Poller{
		client:   client,
		scope:    scope,
		interval: interval,
		events:   events,
		log:      log,
		seen:     make(map[string]int),
	}
}

// Prime builds the initial snapshot at daemon startup (§4.5: "The initial
// snapshot is built at daemon startup") without emitting any events for
// the pages it discovers; the Initial Sync routine (§4.8.1) handles those
// directly. Subsequent ticks emit events relative to this snapshot.
func (p *Poller) Prime(ctx context.Context) error {
	pages, err := p.client.GetAllPages(ctx, p.scope)
	if err != nil {
		return err
	}
	for _, pg := range pages {
		p.seen[pg.ID] = pg.Version
	}
	return nil
}

// Run blocks, ticking every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick fetches the current page set and diffs it against the snapshot. If
// the previous tick is still running, this tick is skipped entirely
// (§4.5: elastic backpressure).
func (p *Poller) tick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		p.log.Debug("poller: previous tick still running, skipping")
		return
	}
	defer atomic.StoreInt32(&p.running, 0)

	pages, err := p.client.GetAllPages(ctx, p.scope)
	if err != nil {
		p.log.Warn("poller: tick failed, will retry next interval", zap.Error(err))
		return
	}

	current := make(map[string]int, len(pages))
	for _, pg := range pages {
		current[pg.ID] = pg.Version
		prevVersion, known := p.seen[pg.ID]
		switch {
		case !known:
			p.emit(Event{PageID: pg.ID, Type: EventCreated})
		case pg.Version != prevVersion:
			p.emit(Event{PageID: pg.ID, Type: EventChanged})
		}
	}

	for id := range p.seen {
		if _, stillPresent := current[id]; !stillPresent {
			p.emit(Event{PageID: id, Type: EventDeleted})
		}
	}

	p.seen = current
}

func (p *Poller) emit(evt Event) {
	select {
	case p.events <- evt:
	default:
		p.log.Warn("poller: event channel full, blocking", zap.String("page_id", evt.PageID), zap.String("type", evt.Type.String()))
		p.events <- evt
	}
}
