package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

// CompletionNotifier receives the new completion count after a worker
// atomically advances a batch counter. The coordinator implements it
// to close batches the moment they fill.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, batchID string, completed int)
}

// WorkerConfig bounds the worker's retry behavior. Retries apply only
// to transient dependency failures; everything else fails the item
// immediately.
type WorkerConfig struct {
	// MaxRetries caps retry attempts per operation to bound tail
	// latency.
	MaxRetries int `yaml:"max_retries" json:"max_retries" validate:"min=0,max=10"`

	// BaseDelay and MaxDelay bound the exponential backoff between
	// attempts.
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DefaultWorkerConfig returns the production retry bounds.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

// Worker executes one work item end to end: build the prediction
// context, run every scoring method, aggregate, select the champion,
// persist the generation-versioned result, and record completion
// exactly once.
//
// Processing is idempotent: an existing completion record at the same
// or newer generation short-circuits recomputation, so replayed
// deliveries are harmless.
type Worker struct {
	methods    []ports.ScoringMethod
	aggregator *Aggregator
	selector   *ChampionSelector

	features ports.FeatureStore
	results  ports.ResultStore
	batches  ports.BatchStore
	weights  ports.WeightStore

	notifier CompletionNotifier
	logger   *zap.Logger
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
	config   WorkerConfig
}

// NewWorker creates a worker over the given scoring methods and
// stores. The methods slice fixes the evaluation order, which keeps
// component ordering deterministic across reruns.
func NewWorker(
	methods []ports.ScoringMethod,
	aggregator *Aggregator,
	selector *ChampionSelector,
	features ports.FeatureStore,
	results ports.ResultStore,
	batches ports.BatchStore,
	weights ports.WeightStore,
	notifier CompletionNotifier,
	logger *zap.Logger,
	metrics ports.MetricsCollector,
	config WorkerConfig,
) (*Worker, error) {
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: at least one scoring method required", domain.ErrInvalidConfiguration)
	}
	for _, m := range methods {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("scoring method %s invalid: %w", m.SystemID(), err)
		}
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("worker configuration invalid: %w", err)
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Worker{
		methods:    methods,
		aggregator: aggregator,
		selector:   selector,
		features:   features,
		results:    results,
		batches:    batches,
		weights:    weights,
		notifier:   notifier,
		logger:     logger.Named("worker"),
		metrics:    metrics,
		tracer:     otel.Tracer("propcast/engine"),
		config:     config,
	}, nil
}

// Process handles one work item. A nil return means the player either
// completed or had already completed at this or a newer generation.
// Per-player failures are returned as *domain.ItemError and never
// affect other players.
func (w *Worker) Process(ctx context.Context, item domain.WorkItem) error {
	ctx, span := w.tracer.Start(ctx, "worker.process",
		trace.WithAttributes(
			attribute.String("batch_id", item.BatchID),
			attribute.String("player_id", item.PlayerID),
			attribute.Int64("generation", item.Generation),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		w.metrics.RecordLatency("worker_process", time.Since(start), nil)
	}()

	existing, err := w.batches.GetCompletion(ctx, item.BatchID, item.PlayerID)
	if err != nil {
		return w.itemErr(item, fmt.Errorf("completion lookup: %w", err))
	}
	if existing != nil && existing.Generation >= item.Generation {
		w.logger.Debug("skipping already-completed item",
			zap.String("batch_id", item.BatchID),
			zap.String("player_id", item.PlayerID),
			zap.Int64("generation", item.Generation))
		w.metrics.RecordCounter("worker_skipped_total", 1, nil)
		return nil
	}

	var pc *domain.PredictionContext
	err = w.withRetry(ctx, "featurestore.load", func() error {
		var loadErr error
		pc, loadErr = w.features.LoadContext(ctx, item.PlayerID, item.ContestID)
		return loadErr
	})
	if err != nil {
		return w.itemErr(item, err)
	}

	snapshot, err := w.weights.Snapshot(ctx)
	if err != nil {
		return w.itemErr(item, fmt.Errorf("weight snapshot: %w", err))
	}

	predictions := make([]domain.ModelPrediction, 0, len(w.methods))
	for _, method := range w.methods {
		pred, scoreErr := method.Score(ctx, pc)
		if scoreErr != nil {
			return w.itemErr(item, fmt.Errorf("method %s: %w", method.SystemID(), scoreErr))
		}
		if pred.Abstained {
			w.metrics.RecordCounter("method_abstentions_total", 1,
				map[string]string{"system": pred.SystemID.String()})
			w.logger.Debug("method abstained",
				zap.String("system", pred.SystemID.String()),
				zap.String("player_id", item.PlayerID),
				zap.String("reason", pred.AbstainReason))
		}
		predictions = append(predictions, pred)
	}

	blend, err := w.aggregator.Aggregate(predictions, snapshot, pc.BettingLine)
	if err != nil {
		// Zero contributors: no result is written and the player
		// surfaces in the batch's missing list.
		return w.itemErr(item, err)
	}

	contributors := make([]domain.ModelPrediction, 0, len(predictions))
	for _, p := range predictions {
		if !p.Abstained {
			contributors = append(contributors, p)
		}
	}
	champion := w.selector.Select(pc, contributors, blend)

	result := &domain.EnsembleResult{
		PlayerID:             item.PlayerID,
		ContestID:            item.ContestID,
		Generation:           item.Generation,
		PredictedValue:       blend.PredictedValue,
		EnsembleConfidence:   blend.EnsembleConfidence,
		AgreementScore:       blend.AgreementScore,
		ChampionSystemID:     champion.SystemID,
		ChampionValue:        champion.Value,
		ChampionConfidence:   champion.Confidence,
		Recommendation:       blend.Recommendation,
		Edge:                 blend.Edge,
		BettingLine:          pc.BettingLine,
		ComponentPredictions: blend.Components,
		ComputedAt:           time.Now().UTC(),
	}

	if err := w.withRetry(ctx, "resultstore.save", func() error {
		return w.results.SaveResult(ctx, result)
	}); err != nil {
		return w.itemErr(item, err)
	}

	rec := &domain.CompletionRecord{
		BatchID:     item.BatchID,
		PlayerID:    item.PlayerID,
		Generation:  item.Generation,
		CompletedAt: result.ComputedAt,
	}
	var (
		count   int
		created bool
	)
	if err := w.withRetry(ctx, "batchstore.record_completion", func() error {
		var recErr error
		count, created, recErr = w.batches.RecordCompletion(ctx, rec)
		return recErr
	}); err != nil {
		return w.itemErr(item, fmt.Errorf("completion write: %w", err))
	}
	if !created {
		// A concurrent replay beat us to the record; that write
		// advanced the counter exactly once.
		return nil
	}
	w.metrics.RecordCounter("worker_completions_total", 1, nil)
	if w.notifier != nil {
		w.notifier.NotifyCompletion(ctx, item.BatchID, count)
	}

	w.logger.Info("item completed",
		zap.String("batch_id", item.BatchID),
		zap.String("player_id", item.PlayerID),
		zap.Int64("generation", item.Generation),
		zap.String("recommendation", string(result.Recommendation)))
	return nil
}

// withRetry runs fn, retrying transient failures with exponential
// backoff and jitter up to the configured cap.
func (w *Worker) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !domain.IsTransient(err) || ctx.Err() != nil {
			return err
		}
		if attempt == w.config.MaxRetries {
			break
		}

		delay := w.backoff(attempt)
		w.logger.Warn("transient failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, w.config.MaxRetries+1, lastErr)
}

// backoff computes the delay before the next attempt: exponential in
// the attempt number with ±25% jitter, capped at MaxDelay.
func (w *Worker) backoff(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	multiplier := 1 << uint(attempt)
	delay := time.Duration(float64(w.config.BaseDelay) * float64(multiplier))

	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - (delay / 4)

	if delay > w.config.MaxDelay {
		delay = w.config.MaxDelay
	}
	return delay
}

func (w *Worker) itemErr(item domain.WorkItem, err error) error {
	w.metrics.RecordCounter("worker_failures_total", 1, nil)
	if !errors.Is(err, domain.ErrInsufficientData) {
		w.logger.Error("item failed",
			zap.String("batch_id", item.BatchID),
			zap.String("player_id", item.PlayerID),
			zap.Error(err))
	}
	return &domain.ItemError{BatchID: item.BatchID, PlayerID: item.PlayerID, Err: err}
}

// Pool runs a fixed number of workers over a shared queue. Work items
// are embarrassingly parallel; each is owned by exactly one worker.
type Pool struct {
	queue  ports.WorkQueue
	worker *Worker
	size   int
	logger *zap.Logger
}

// NewPool creates a worker pool of the given size.
func NewPool(queue ports.WorkQueue, worker *Worker, size int, logger *zap.Logger) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: pool size must be positive", domain.ErrInvalidConfiguration)
	}
	return &Pool{queue: queue, worker: worker, size: size, logger: logger.Named("pool")}, nil
}

// Run processes queue items until the context is canceled or the
// queue closes. Item failures are absorbed; only context cancellation
// stops the pool.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		g.Go(func() error {
			items := p.queue.Dequeue(ctx)
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case item, ok := <-items:
					if !ok {
						return nil
					}
					if err := p.worker.Process(ctx, item); err != nil {
						// Logged inside Process; the batch deadline
						// sweep reports the player as missing.
						continue
					}
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
