// Package queue provides the bounded in-memory work queue carrying
// dispatched items from the coordinator to the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

// DefaultCapacity bounds the queue when no option overrides it. A full
// NBA slate is a few hundred players; the default leaves generous
// headroom for stacked re-prediction triggers.
const DefaultCapacity = 10000

var _ ports.WorkQueue = (*InMemoryQueue)(nil)

// InMemoryQueue implements ports.WorkQueue on a buffered channel.
// Enqueue is non-blocking: a full queue rejects the item with
// domain.ErrQueueFull and the coordinator reports the player missing
// at the batch deadline instead of stalling dispatch.
type InMemoryQueue struct {
	items chan domain.WorkItem

	mu     sync.RWMutex
	closed bool
}

// Option configures an InMemoryQueue.
type Option func(*config)

type config struct {
	capacity int
}

// WithCapacity overrides the queue's item capacity.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	cfg := config{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryQueue{items: make(chan domain.WorkItem, cfg.capacity)}
}

// Enqueue adds an item, returning domain.ErrQueueFull at capacity and
// domain.ErrQueueFull after close.
func (q *InMemoryQueue) Enqueue(_ context.Context, item domain.WorkItem) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return domain.ErrQueueFull
	}
	select {
	case q.items <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue returns the channel workers receive items on.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan domain.WorkItem {
	return q.items
}

// Len returns the number of items currently queued.
func (q *InMemoryQueue) Len() int { return len(q.items) }

// Close stops the queue. Queued items remain readable until drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.items)
	return nil
}
