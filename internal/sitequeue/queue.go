// Package sitequeue implements the per-site FIFO of discovered pasty IDs
// that sit between DiscoveryWorker (producer) and FetchWorkerPool
// (consumer).
package sitequeue

import (
	"context"
	"sync"
)

// defaultCapacity bounds how many pending IDs a single site can queue
// before DiscoveryWorker blocks, so a site with no fetch workers keeping up
// cannot grow the queue without bound.
const defaultCapacity = 2048

// Item is one pending fetch: a pasty ID discovered on a site, paired with
// the download URL already resolved for it.
type Item struct {
	Site string
	ID   string
	URL  string
}

// Queue is a single site's bounded FIFO of pending fetches.
type Queue struct {
	mu     sync.Mutex
	ch     chan Item
	closed bool
}

// New returns an empty Queue with room for defaultCapacity pending items.
func New() *Queue {
	return &Queue{ch: make(chan Item, defaultCapacity)}
}

// Push enqueues item, blocking if the queue is full, until ctx is done or
// the queue is closed. Returns false if the item was not accepted.
func (q *Queue) Push(ctx context.Context, item Item) (accepted bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.mu.Unlock()

	// Close() can still run concurrently between the check above and the
	// send below; recover turns that race into a clean "not accepted"
	// instead of a panic.
	defer func() {
		if recover() != nil {
			accepted = false
		}
	}()

	select {
	case q.ch <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// Pop blocks for the next item until one arrives, ctx is done, or the queue
// is closed and drained (ok is false in the latter two cases).
func (q *Queue) Pop(ctx context.Context) (Item, bool) {
	select {
	case item, ok := <-q.ch:
		return item, ok
	case <-ctx.Done():
		return Item{}, false
	}
}

// TryPop returns the next item without blocking, if one is immediately
// available.
func (q *Queue) TryPop() (Item, bool) {
	select {
	case item, ok := <-q.ch:
		return item, ok
	default:
		return Item{}, false
	}
}

// Len reports how many items are currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting new pushes and closes the underlying channel, so
// Pop/TryPop drain whatever is already buffered and then report ok=false.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
