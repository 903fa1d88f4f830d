package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courtside/propcast/infrastructure/queue"
	"github.com/courtside/propcast/infrastructure/storage"
	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

func testCoordinator(t *testing.T, store *storage.MemoryStore, q ports.WorkQueue, slate []domain.SlateEntry) *Coordinator {
	t.Helper()

	features := newFakeFeatureStore()
	features.slate = slate

	config := DefaultCoordinatorConfig()
	config.DispatchRate = 10000
	config.DispatchBurst = 1000

	c, err := NewCoordinator(store, store, q, features, zap.NewNop(), ports.NopMetrics{}, config)
	require.NoError(t, err)
	return c
}

func slateOf(n int) []domain.SlateEntry {
	slate := make([]domain.SlateEntry, 0, n)
	for i := 0; i < n; i++ {
		slate = append(slate, domain.SlateEntry{
			PlayerID:  "p" + string(rune('a'+i)),
			ContestID: "c1",
		})
	}
	return slate
}

func drain(q *queue.InMemoryQueue) []domain.WorkItem {
	var items []domain.WorkItem
	for {
		select {
		case item := <-q.Dequeue(context.Background()):
			items = append(items, item)
		default:
			return items
		}
	}
}

func TestCoordinator_FullSlateTrigger(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	c := testCoordinator(t, store, q, slateOf(3))

	batch, err := c.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		EventType:      "lineup_confirmed",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)
	require.NotNil(t, batch)

	assert.Equal(t, 3, batch.TotalTargets)
	assert.Equal(t, int64(1), batch.Generation)
	assert.Equal(t, domain.BatchRunning, batch.Status)

	items := drain(q)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, batch.ID, item.BatchID)
		assert.Equal(t, batch.Generation, item.Generation)
	}

	stored, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchRunning, stored.Status)
}

func TestCoordinator_DuplicateTriggerIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	c := testCoordinator(t, store, q, slateOf(2))

	ev := domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		EventType:      "lineup_confirmed",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	}

	first, err := c.HandleTrigger(ctx, ev)
	require.NoError(t, err)
	require.NotNil(t, first)

	dup, err := c.HandleTrigger(ctx, ev)
	require.NoError(t, err)
	assert.Nil(t, dup, "duplicate keys produce no batch")

	assert.Len(t, drain(q), 2, "no extra items dispatched for the duplicate")

	gen, err := store.NextGeneration(ctx, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen, "the duplicate must not burn a generation")
}

func TestCoordinator_SubsetTriggerLeavesOpenBatchAlone(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	c := testCoordinator(t, store, q, slateOf(4))

	full, err := c.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-full",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)
	drain(q)

	subset, err := c.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey:  "ev-injury",
		EventType:       "injury_update",
		Scope:           domain.ScopePlayerSubset,
		ContestDate:     "2026-01-15",
		AffectedPlayers: []string{"pa", "pb"},
	})
	require.NoError(t, err)
	require.NotNil(t, subset)

	assert.Equal(t, 2, subset.TotalTargets)
	assert.Greater(t, subset.Generation, full.Generation,
		"the subset batch carries a newer generation")

	fullStored, err := store.GetBatch(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, fullStored.TotalTargets, "the open batch is untouched")
	assert.Equal(t, domain.BatchRunning, fullStored.Status)

	items := drain(q)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, subset.ID, item.BatchID)
	}
}

func TestCoordinator_NotifyCompletionClosesFullBatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	c := testCoordinator(t, store, q, slateOf(2))

	batch, err := c.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)

	c.NotifyCompletion(ctx, batch.ID, 1)
	stored, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchRunning, stored.Status, "still one short")

	c.NotifyCompletion(ctx, batch.ID, 2)
	stored, err = store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchComplete, stored.Status)
}

func TestCoordinator_SweepClosesPartialWithMissingPlayers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	c := testCoordinator(t, store, q, slateOf(10))

	batch, err := c.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)

	// Eight of ten players complete before the deadline.
	targets, err := store.Targets(ctx, batch.ID)
	require.NoError(t, err)
	for _, target := range targets[:8] {
		_, created, err := store.RecordCompletion(ctx, &domain.CompletionRecord{
			BatchID:  batch.ID,
			PlayerID: target.PlayerID,
		})
		require.NoError(t, err)
		require.True(t, created)
	}

	c.Sweep(ctx, batch.Deadline.Add(time.Second))

	progress, err := c.Progress(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchPartial, progress.Status)
	assert.Equal(t, 8, progress.CompletedCount)

	want := []string{targets[8].PlayerID, targets[9].PlayerID}
	assert.ElementsMatch(t, want, progress.MissingPlayers,
		"exactly the absent players must be named")
}

func TestCoordinator_SweepClosesCompleteWhenCounterFilled(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	c := testCoordinator(t, store, q, slateOf(2))

	batch, err := c.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)

	targets, err := store.Targets(ctx, batch.ID)
	require.NoError(t, err)
	for _, target := range targets {
		_, _, err := store.RecordCompletion(ctx, &domain.CompletionRecord{
			BatchID:  batch.ID,
			PlayerID: target.PlayerID,
		})
		require.NoError(t, err)
	}

	c.Sweep(ctx, batch.Deadline.Add(time.Second))

	stored, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchComplete, stored.Status)
}

func TestCoordinator_SweepClosesBatchesFromEarlierProcess(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()

	first := testCoordinator(t, store, q, slateOf(3))
	batch, err := first.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)
	drain(q)

	// A fresh coordinator over the same store stands in for a process
	// restart: it has never seen the batch, only the store has.
	restarted := testCoordinator(t, store, q, slateOf(3))
	restarted.Sweep(ctx, batch.Deadline.Add(time.Second))

	progress, err := restarted.Progress(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchPartial, progress.Status,
		"a batch left running by a previous process must still close at its deadline")
	assert.Len(t, progress.MissingPlayers, 3)
}

func TestCoordinator_NotifyCompletionAfterRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()

	first := testCoordinator(t, store, q, slateOf(2))
	batch, err := first.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)
	drain(q)

	restarted := testCoordinator(t, store, q, slateOf(2))
	targets, err := store.Targets(ctx, batch.ID)
	require.NoError(t, err)

	var count int
	for _, target := range targets {
		count, _, err = store.RecordCompletion(ctx, &domain.CompletionRecord{
			BatchID:  batch.ID,
			PlayerID: target.PlayerID,
		})
		require.NoError(t, err)
		restarted.NotifyCompletion(ctx, batch.ID, count)
	}

	stored, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchComplete, stored.Status,
		"a filled batch must close even when this process did not create it")
}

func TestCoordinator_ReturnedBatchIsCallerOwned(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	c := testCoordinator(t, store, q, slateOf(3))

	batch, err := c.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)

	c.NotifyCompletion(ctx, batch.ID, 2)

	assert.Zero(t, batch.CompletedCount,
		"completion tracking must not write into the batch handed to the caller")
}

func TestCoordinator_SupersedeRules(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	c := testCoordinator(t, store, q, slateOf(2))

	batch, err := c.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)

	t.Run("aborts a batch without progress", func(t *testing.T) {
		require.NoError(t, c.Supersede(ctx, batch.ID))
		stored, err := store.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BatchAborted, stored.Status)
	})

	t.Run("refuses a terminal batch", func(t *testing.T) {
		assert.Error(t, c.Supersede(ctx, batch.ID))
	})

	t.Run("refuses a batch with completions", func(t *testing.T) {
		progressed, err := c.HandleTrigger(ctx, domain.TriggerEvent{
			IdempotencyKey: "ev-2",
			Scope:          domain.ScopeFullSlate,
			ContestDate:    "2026-01-15",
		})
		require.NoError(t, err)
		_, _, err = store.RecordCompletion(ctx, &domain.CompletionRecord{
			BatchID:  progressed.ID,
			PlayerID: "pa",
		})
		require.NoError(t, err)

		assert.Error(t, c.Supersede(ctx, progressed.ID))
		stored, err := store.GetBatch(ctx, progressed.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BatchRunning, stored.Status)
	})
}

func TestCoordinator_EmptySlateProducesNoBatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	c := testCoordinator(t, store, q, nil)

	batch, err := c.HandleTrigger(ctx, domain.TriggerEvent{
		IdempotencyKey: "ev-1",
		Scope:          domain.ScopeFullSlate,
		ContestDate:    "2026-01-15",
	})
	require.NoError(t, err)
	assert.Nil(t, batch)
}
