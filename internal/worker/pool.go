// Package worker provides the generic worker-pool and keyed-queue
// primitives shared by bulk page processing (pull/push/link-check fan-out)
// and the sync reconciliation pipeline.
//
// Task/Pool/Process are a direct generalization of the teacher's
// internal/sync.WorkerPool (renamed to avoid colliding with the standard
// library's package name and with this module's own reconcile package), with
// the two near-duplicate Process/ProcessWithProgress bodies collapsed into
// one implementation taking an optional progress callback. Queue is new:
// it implements §4.8's per-page serialization and coalescing invariant,
// which the teacher's flat Process call has no equivalent for because the
// teacher runs one-shot batch commands, not a long-lived reconciler.
package worker

import (
	"context"
	"sync"
)

// Task pairs an input with the result (or error) of processing it.
type Task[T any, R any] struct {
	Input  T
	Result R
	Err    error
}

// Pool bounds how many fn calls run concurrently.
type Pool struct {
	size int
}

// New creates a Pool with the given concurrency bound (minimum 1).
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size}
}

// ProgressFunc is called after each completed task with a running count.
type ProgressFunc func(completed, total int)

// Process runs fn over every input with bounded concurrency, returning
// results in input order. progress may be nil.
func Process[T any, R any](ctx context.Context, pool *Pool, inputs []T, fn func(context.Context, T) (R, error), progress ProgressFunc) []Task[T, R] {
	if len(inputs) == 0 {
		return nil
	}

	type indexed struct {
		index int
		input T
	}
	type indexedResult struct {
		index  int
		result R
		err    error
	}

	inCh := make(chan indexed, len(inputs))
	outCh := make(chan indexedResult, len(inputs))

	var wg sync.WaitGroup
	for i := 0; i < pool.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range inCh {
				if ctx.Err() != nil {
					outCh <- indexedResult{index: item.index, err: ctx.Err()}
					continue
				}
				r, err := fn(ctx, item.input)
				outCh <- indexedResult{index: item.index, result: r, err: err}
			}
		}()
	}

	go func() {
		for i, in := range inputs {
			inCh <- indexed{index: i, input: in}
		}
		close(inCh)
	}()

	go func() {
		wg.Wait()
		close(outCh)
	}()

	results := make([]Task[T, R], len(inputs))
	for i := range inputs {
		results[i].Input = inputs[i]
	}

	completed := 0
	for r := range outCh {
		results[r.index].Result = r.result
		results[r.index].Err = r.err
		completed++
		if progress != nil {
			progress(completed, len(inputs))
		}
	}
	return results
}

// Queue is a keyed work queue: at most one in-flight item per key, and a
// later Push for a key already pending (or in flight) replaces the pending
// payload rather than enqueueing a second job. Handler runs with no
// cross-key ordering guarantee and no two in-flight calls for the same key
// (§4.8 invariants 1-2).
type Queue[K comparable, M any] struct {
	handler func(context.Context, K, M) error

	mu      sync.Mutex
	pending map[K]M
	inFlush map[K]bool
	order   []K
	notify  chan struct{}

	workers int
	started bool
}

// NewQueue builds a Queue with workers concurrent consumers, each invoking
// handler for at most one key at a time.
func NewQueue[K comparable, M any](workers int, handler func(context.Context, K, M) error) *Queue[K, M] {
	if workers < 1 {
		workers = 1
	}
	return &Queue[K, M]{
		handler: handler,
		pending: make(map[K]M),
		inFlush: make(map[K]bool),
		notify:  make(chan struct{}, 1),
		workers: workers,
	}
}

// Push enqueues (or replaces the pending payload for) key. Safe for
// concurrent use by multiple event sources (poller, webhook, watcher).
func (q *Queue[K, M]) Push(key K, msg M) {
	q.mu.Lock()
	if _, exists := q.pending[key]; !exists {
		q.order = append(q.order, key)
	}
	q.pending[key] = msg
	q.mu.Unlock()
	q.wake()
}

func (q *Queue[K, M]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Run drains the queue with the configured worker count until ctx is
// cancelled.
func (q *Queue[K, M]) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.drain(ctx)
		}()
	}
	wg.Wait()
}

func (q *Queue[K, M]) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		key, msg, ok := q.take()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.notify:
				continue
			}
		}

		_ = q.handler(ctx, key, msg)

		q.mu.Lock()
		q.inFlush[key] = false
		q.mu.Unlock()
		q.wake()
	}
}

// take pops the next key that has a pending message and is not already in
// flight on another worker.
func (q *Queue[K, M]) take() (K, M, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, key := range q.order {
		if q.inFlush[key] {
			continue
		}
		msg, ok := q.pending[key]
		if !ok {
			continue
		}
		delete(q.pending, key)
		q.order = append(q.order[:i:i], q.order[i+1:]...)
		q.inFlush[key] = true
		return key, msg, true
	}
	var zero K
	var zeroM M
	return zero, zeroM, false
}
