package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/confluence-sync/internal/logging"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
)

func TestPrimeBuildsSnapshotWithoutEvents(t *testing.T) {
	fake := remoteapi.NewFake()
	p1, err := fake.CreatePage(context.Background(), remoteapi.PageCreate{SpaceKey: "ENG", Title: "One"})
	require.NoError(t, err)

	events := make(chan Event, 10)
	p := New(fake, remoteapi.Scope{SpaceKey: "ENG"}, time.Hour, events, logging.Nop())
	require.NoError(t, p.Prime(context.Background()))

	assert.Equal(t, p1.Version, p.seen[p1.ID])
	assert.Empty(t, events)
}

func TestTickEmitsCreatedChangedDeleted(t *testing.T) {
	fake := remoteapi.NewFake()
	ctx := context.Background()
	existing, err := fake.CreatePage(ctx, remoteapi.PageCreate{SpaceKey: "ENG", Title: "Existing"})
	require.NoError(t, err)
	toDelete, err := fake.CreatePage(ctx, remoteapi.PageCreate{SpaceKey: "ENG", Title: "Gone Soon"})
	require.NoError(t, err)

	events := make(chan Event, 10)
	p := New(fake, remoteapi.Scope{SpaceKey: "ENG"}, time.Hour, events, logging.Nop())
	require.NoError(t, p.Prime(ctx))

	// Remote changes: existing page updated, a new page created, toDelete removed.
	_, err = fake.UpdatePage(ctx, remoteapi.PageUpdate{ID: existing.ID, Title: "Existing", Storage: "<p>v2</p>", Version: existing.Version})
	require.NoError(t, err)
	created, err := fake.CreatePage(ctx, remoteapi.PageCreate{SpaceKey: "ENG", Title: "Brand New"})
	require.NoError(t, err)
	require.NoError(t, fake.DeletePage(ctx, toDelete.ID))

	p.tick(ctx)
	close(events)

	var got []Event
	for e := range events {
		got = append(got, e)
	}

	byPage := make(map[string]Event, len(got))
	for _, e := range got {
		byPage[e.PageID] = e
	}

	require.Contains(t, byPage, existing.ID)
	assert.Equal(t, EventChanged, byPage[existing.ID].Type)

	require.Contains(t, byPage, created.ID)
	assert.Equal(t, EventCreated, byPage[created.ID].Type)

	require.Contains(t, byPage, toDelete.ID)
	assert.Equal(t, EventDeleted, byPage[toDelete.ID].Type)
}

func TestTickSkipsWhenPreviousStillRunning(t *testing.T) {
	fake := remoteapi.NewFake()
	events := make(chan Event, 10)
	p := New(fake, remoteapi.Scope{SpaceKey: "ENG"}, time.Hour, events, logging.Nop())
	p.running = 1 // simulate an in-flight tick

	p.tick(context.Background())
	assert.Empty(t, p.seen) // tick returned immediately, never touched the snapshot
}

func TestRunStopsOnContextCancel(t *testing.T) {
	fake := remoteapi.NewFake()
	events := make(chan Event, 10)
	p := New(fake, remoteapi.Scope{SpaceKey: "ENG"}, 5*time.Millisecond, events, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
