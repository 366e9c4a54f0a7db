package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessPreservesOrder(t *testing.T) {
	pool := New(4)
	inputs := []int{1, 2, 3, 4, 5}
	results := Process(context.Background(), pool, inputs, func(_ context.Context, i int) (int, error) {
		return i * i, nil
	}, nil)

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, inputs[i]*inputs[i], r.Result)
		assert.NoError(t, r.Err)
	}
}

func TestProcessReportsProgress(t *testing.T) {
	pool := New(2)
	var calls int32
	Process(context.Background(), pool, []int{1, 2, 3}, func(_ context.Context, i int) (int, error) {
		return i, nil
	}, func(completed, total int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 3, total)
	})
	assert.Equal(t, int32(3), calls)
}

func TestQueueSerializesPerKey(t *testing.T) {
	var mu sync.Mutex
	var active = map[string]bool{}
	var violations int32

	q := NewQueue(4, func(ctx context.Context, key string, msg int) error {
		mu.Lock()
		if active[key] {
			atomic.AddInt32(&violations, 1)
		}
		active[key] = true
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active[key] = false
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Push("page-1", i)
		}(i)
	}
	wg.Wait()

	time.Sleep(100 * time.Millisecond)
	cancel()

	assert.Equal(t, int32(0), violations)
}

func TestQueueCoalescesLatestMessage(t *testing.T) {
	results := make(chan int, 10)
	firstCallStarted := make(chan struct{})
	release := make(chan struct{})
	var first int32 = 1

	q := NewQueue(1, func(ctx context.Context, key string, msg int) error {
		if atomic.CompareAndSwapInt32(&first, 1, 0) {
			close(firstCallStarted)
			<-release
		}
		results <- msg
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Push("p1", 1)
	<-firstCallStarted // first push is now in flight, blocked on release
	q.Push("p1", 2)
	q.Push("p1", 3) // coalesces with the pending 2
	close(release)

	got := []int{<-results, <-results}
	assert.Equal(t, []int{1, 3}, got)
}
