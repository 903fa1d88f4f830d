package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/propcast/internal/domain"
)

func TestInMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.WorkItem{PlayerID: "p1"}))
	require.NoError(t, q.Enqueue(ctx, domain.WorkItem{PlayerID: "p2"}))
	assert.Equal(t, 2, q.Len())

	item := <-q.Dequeue(ctx)
	assert.Equal(t, "p1", item.PlayerID)
	assert.Equal(t, 1, q.Len())
}

func TestInMemoryQueue_RejectsWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.WorkItem{PlayerID: "p1"}))
	err := q.Enqueue(ctx, domain.WorkItem{PlayerID: "p2"})
	assert.ErrorIs(t, err, domain.ErrQueueFull)
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.WorkItem{PlayerID: "p1"}))
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, domain.WorkItem{PlayerID: "p2"}), domain.ErrQueueFull)

	// Queued items stay readable; then the channel closes.
	item, ok := <-q.Dequeue(ctx)
	assert.True(t, ok)
	assert.Equal(t, "p1", item.PlayerID)
	_, ok = <-q.Dequeue(ctx)
	assert.False(t, ok)

	assert.NoError(t, q.Close(), "double close is safe")
}
