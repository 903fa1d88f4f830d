package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

// CoordinatorConfig bounds batch lifetimes and dispatch throughput.
type CoordinatorConfig struct {
	// BatchDeadline is how long a batch may run before it is closed
	// as partial. Batches never wait indefinitely.
	BatchDeadline time.Duration `yaml:"batch_deadline" json:"batch_deadline"`

	// IdempotencyRetention is how long processed event keys are kept
	// before they may be garbage-collected.
	IdempotencyRetention time.Duration `yaml:"idempotency_retention" json:"idempotency_retention"`

	// DispatchRate and DispatchBurst pace work-item enqueueing so a
	// full slate does not stampede the feature store.
	DispatchRate  float64 `yaml:"dispatch_rate" json:"dispatch_rate" validate:"min=1"`
	DispatchBurst int     `yaml:"dispatch_burst" json:"dispatch_burst" validate:"min=1"`

	// SweepInterval is how often open batches are checked against
	// their deadlines.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// DefaultCoordinatorConfig returns the production bounds.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		BatchDeadline:        10 * time.Minute,
		IdempotencyRetention: 7 * 24 * time.Hour,
		DispatchRate:         200,
		DispatchBurst:        50,
		SweepInterval:        15 * time.Second,
	}
}

// Coordinator consumes trigger events, resolves target player sets,
// creates batches, dispatches work items, and drives each batch
// through pending → running → {complete | partial | aborted}.
//
// It is the only writer of batch status. Completion counting itself
// happens in workers via the store's atomic increment; the coordinator
// merely reacts to the counts workers report.
type Coordinator struct {
	batches  ports.BatchStore
	ledger   ports.IdempotencyLedger
	queue    ports.WorkQueue
	features ports.FeatureStore

	logger  *zap.Logger
	metrics ports.MetricsCollector
	limiter *rate.Limiter
	config  CoordinatorConfig

	mu   sync.Mutex
	open map[string]*domain.Batch // coordinator-owned copies of open batches, by ID
}

// NewCoordinator creates a coordinator.
func NewCoordinator(
	batches ports.BatchStore,
	ledger ports.IdempotencyLedger,
	queue ports.WorkQueue,
	features ports.FeatureStore,
	logger *zap.Logger,
	metrics ports.MetricsCollector,
	config CoordinatorConfig,
) (*Coordinator, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("coordinator configuration invalid: %w", err)
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Coordinator{
		batches:  batches,
		ledger:   ledger,
		queue:    queue,
		features: features,
		logger:   logger.Named("coordinator"),
		metrics:  metrics,
		limiter:  rate.NewLimiter(rate.Limit(config.DispatchRate), config.DispatchBurst),
		config:   config,
		open:     make(map[string]*domain.Batch),
	}, nil
}

// HandleTrigger processes one trigger event. Duplicate idempotency
// keys are silent no-ops returning (nil, nil). A full-slate trigger
// produces a batch covering every slate player; a player-subset
// trigger produces a new-generation batch covering only the named
// players, leaving the bookkeeping of any still-open batch untouched.
func (c *Coordinator) HandleTrigger(ctx context.Context, ev domain.TriggerEvent) (*domain.Batch, error) {
	if ev.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: trigger missing idempotency key", domain.ErrInvalidConfiguration)
	}

	targets, err := c.resolveTargets(ctx, ev)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		c.logger.Warn("trigger resolved zero targets",
			zap.String("event_type", ev.EventType),
			zap.String("contest_date", ev.ContestDate))
		return nil, nil
	}

	first, err := c.ledger.Claim(ctx, "trigger:"+ev.IdempotencyKey, c.config.IdempotencyRetention)
	if err != nil {
		return nil, fmt.Errorf("idempotency claim: %w", err)
	}
	if !first {
		c.logger.Debug("duplicate trigger dropped",
			zap.String("idempotency_key", ev.IdempotencyKey))
		c.metrics.RecordCounter("duplicate_triggers_total", 1, nil)
		return nil, nil
	}

	generation, err := c.batches.NextGeneration(ctx, ev.ContestDate)
	if err != nil {
		return nil, fmt.Errorf("generation allocation: %w", err)
	}

	batch := &domain.Batch{
		ID:           uuid.NewString(),
		ContestDate:  ev.ContestDate,
		Generation:   generation,
		TotalTargets: len(targets),
		Status:       domain.BatchPending,
		CreatedAt:    time.Now().UTC(),
		Deadline:     time.Now().UTC().Add(c.config.BatchDeadline),
	}
	if err := c.batches.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("batch create: %w", err)
	}
	if err := c.batches.SetTargets(ctx, batch.ID, targets); err != nil {
		return nil, fmt.Errorf("batch targets: %w", err)
	}

	if err := c.batches.SetStatus(ctx, batch.ID, domain.BatchRunning); err != nil {
		return nil, fmt.Errorf("batch status: %w", err)
	}
	batch.Status = domain.BatchRunning

	// The tracked entry is the coordinator's own copy; the returned
	// batch belongs to the caller and is never mutated afterward.
	tracked := *batch
	c.mu.Lock()
	c.open[batch.ID] = &tracked
	c.mu.Unlock()

	c.metrics.RecordCounter("batches_created_total", 1,
		map[string]string{"scope": string(ev.Scope)})
	c.logger.Info("batch created",
		zap.String("batch_id", batch.ID),
		zap.String("scope", string(ev.Scope)),
		zap.Int("targets", batch.TotalTargets),
		zap.Int64("generation", generation))

	for _, target := range targets {
		if err := c.limiter.Wait(ctx); err != nil {
			return batch, err
		}
		item := domain.WorkItem{
			BatchID:    batch.ID,
			PlayerID:   target.PlayerID,
			ContestID:  target.ContestID,
			Generation: generation,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := c.queue.Enqueue(ctx, item); err != nil {
			// The player stays dispatched-less and surfaces in the
			// missing list when the deadline closes the batch.
			c.logger.Error("dispatch failed",
				zap.String("batch_id", batch.ID),
				zap.String("player_id", target.PlayerID),
				zap.Error(err))
			c.metrics.RecordCounter("dispatch_failures_total", 1, nil)
			continue
		}
		c.metrics.RecordCounter("items_dispatched_total", 1, nil)
	}
	c.metrics.RecordGauge("queue_depth", float64(c.queue.Len()), nil)

	return batch, nil
}

func (c *Coordinator) resolveTargets(ctx context.Context, ev domain.TriggerEvent) ([]domain.SlateEntry, error) {
	slate, err := c.features.SlatePlayers(ctx, ev.ContestDate)
	if err != nil {
		return nil, fmt.Errorf("slate resolution: %w", err)
	}
	if ev.Scope == domain.ScopeFullSlate {
		return slate, nil
	}

	named := make(map[string]struct{}, len(ev.AffectedPlayers))
	for _, p := range ev.AffectedPlayers {
		named[p] = struct{}{}
	}
	var targets []domain.SlateEntry
	for _, entry := range slate {
		if _, ok := named[entry.PlayerID]; ok {
			targets = append(targets, entry)
		}
	}
	return targets, nil
}

// NotifyCompletion implements CompletionNotifier. It closes a batch
// as complete the moment its counter reaches the target count. A
// batch this process does not track, such as one created before a
// restart, is resolved from the store.
func (c *Coordinator) NotifyCompletion(ctx context.Context, batchID string, completed int) {
	c.mu.Lock()
	var total int
	batch, ok := c.open[batchID]
	if ok {
		batch.CompletedCount = completed
		total = batch.TotalTargets
	}
	c.mu.Unlock()

	if !ok {
		stored, err := c.batches.GetBatch(ctx, batchID)
		if err != nil {
			c.logger.Error("completion for unknown batch",
				zap.String("batch_id", batchID), zap.Error(err))
			return
		}
		if stored.Status.Terminal() {
			return
		}
		total = stored.TotalTargets
	}
	if completed < total {
		return
	}

	if err := c.batches.SetStatus(ctx, batchID, domain.BatchComplete); err != nil {
		c.logger.Error("failed to close batch", zap.String("batch_id", batchID), zap.Error(err))
		return
	}
	c.mu.Lock()
	delete(c.open, batchID)
	c.mu.Unlock()

	c.metrics.RecordCounter("batches_closed_total", 1,
		map[string]string{"status": string(domain.BatchComplete)})
	c.logger.Info("batch complete", zap.String("batch_id", batchID), zap.Int("completed", completed))
}

// Sweep closes every open batch whose deadline has passed: complete
// when the counter filled in the meantime, partial otherwise. It
// enumerates open batches from the store rather than process memory,
// so batches left running by a previous process are closed too. It is
// called periodically by Run and exposed for tests.
func (c *Coordinator) Sweep(ctx context.Context, now time.Time) {
	open, err := c.batches.ListOpen(ctx)
	if err != nil {
		c.logger.Error("sweep enumeration failed", zap.Error(err))
		return
	}

	for _, stored := range open {
		if !now.After(stored.Deadline) {
			continue
		}

		status := domain.BatchPartial
		if stored.Done() {
			status = domain.BatchComplete
		}
		if err := c.batches.SetStatus(ctx, stored.ID, status); err != nil {
			c.logger.Error("sweep close failed", zap.String("batch_id", stored.ID), zap.Error(err))
			continue
		}

		c.mu.Lock()
		delete(c.open, stored.ID)
		c.mu.Unlock()

		c.metrics.RecordCounter("batches_closed_total", 1,
			map[string]string{"status": string(status)})
		if status == domain.BatchPartial {
			missing := stored.TotalTargets - stored.CompletedCount
			c.logger.Warn("batch closed partial at deadline",
				zap.String("batch_id", stored.ID),
				zap.Int("completed", stored.CompletedCount),
				zap.Int("missing", missing))
		}
	}
}

// Run sweeps open batches until the context is canceled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Sweep(ctx, now)
		}
	}
}

// Progress returns the queryable view of a batch, including the
// explicit missing-player list (every target without a completion
// record). It reads from the store, so it works mid-flight and after
// restarts alike.
func (c *Coordinator) Progress(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
	batch, err := c.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	targets, err := c.batches.Targets(ctx, batchID)
	if err != nil {
		return nil, err
	}
	completed, err := c.batches.CompletedPlayers(ctx, batchID)
	if err != nil {
		return nil, err
	}

	done := make(map[string]struct{}, len(completed))
	for _, p := range completed {
		done[p] = struct{}{}
	}
	missing := make([]string, 0)
	for _, t := range targets {
		if _, ok := done[t.PlayerID]; !ok {
			missing = append(missing, t.PlayerID)
		}
	}

	return &domain.BatchProgress{
		BatchID:        batch.ID,
		TotalTargets:   batch.TotalTargets,
		CompletedCount: batch.CompletedCount,
		Status:         batch.Status,
		MissingPlayers: missing,
	}, nil
}

// Supersede explicitly aborts a batch. It succeeds only before any
// completion; a batch with progress runs to its deadline instead.
// In-flight workers for an aborted batch still persist their results;
// those results simply do not become current once newer generations
// land.
func (c *Coordinator) Supersede(ctx context.Context, batchID string) error {
	batch, err := c.batches.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status.Terminal() {
		return fmt.Errorf("batch %s already %s", batchID, batch.Status)
	}
	if batch.CompletedCount > 0 {
		return fmt.Errorf("batch %s has %d completions, cannot abort", batchID, batch.CompletedCount)
	}

	if err := c.batches.SetStatus(ctx, batchID, domain.BatchAborted); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.open, batchID)
	c.mu.Unlock()

	c.metrics.RecordCounter("batches_closed_total", 1,
		map[string]string{"status": string(domain.BatchAborted)})
	c.logger.Info("batch aborted", zap.String("batch_id", batchID))
	return nil
}
