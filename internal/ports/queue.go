package ports

import (
	"context"

	"github.com/courtside/propcast/internal/domain"
)

// WorkQueue carries dispatched work items from the coordinator to the
// worker pool. Each item is delivered to exactly one worker.
type WorkQueue interface {
	// Enqueue adds an item, returning domain.ErrQueueFull when the
	// queue is at capacity.
	Enqueue(ctx context.Context, item domain.WorkItem) error

	// Dequeue returns the channel workers receive items on. The
	// channel closes when the queue closes.
	Dequeue(ctx context.Context) <-chan domain.WorkItem

	// Len returns the number of items currently queued.
	Len() int

	// Close stops the queue; no further enqueues are accepted and the
	// dequeue channel is closed once drained.
	Close() error
}
