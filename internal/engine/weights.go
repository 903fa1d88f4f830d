package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

// WeightUpdaterConfig controls how system weights are relearned from
// graded history.
type WeightUpdaterConfig struct {
	// Window is the trailing span of graded outcomes considered.
	Window time.Duration `yaml:"window" json:"window"`

	// Tolerance is the |predicted - actual| band counted as a hit.
	Tolerance float64 `yaml:"tolerance" json:"tolerance" validate:"min=0"`

	// MinSamples is the grading count below which a method keeps its
	// previous weight instead of being rescored on noise.
	MinSamples int `yaml:"min_samples" json:"min_samples" validate:"min=1"`

	// Interval is how often the periodic loop recomputes.
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// DefaultWeightUpdaterConfig returns the production grading policy.
func DefaultWeightUpdaterConfig() WeightUpdaterConfig {
	return WeightUpdaterConfig{
		Window:     14 * 24 * time.Hour,
		Tolerance:  3.0,
		MinSamples: 10,
		Interval:   6 * time.Hour,
	}
}

// WeightUpdater periodically recomputes SystemWeight from graded
// outcomes and publishes a fresh snapshot. It runs out of band and
// never blocks workers: the aggregator keeps reading whichever
// snapshot is active until the next publish lands.
type WeightUpdater struct {
	grading ports.GradingService
	weights ports.WeightStore
	logger  *zap.Logger
	metrics ports.MetricsCollector
	config  WeightUpdaterConfig
}

// NewWeightUpdater creates a weight updater.
func NewWeightUpdater(
	grading ports.GradingService,
	weights ports.WeightStore,
	logger *zap.Logger,
	metrics ports.MetricsCollector,
	config WeightUpdaterConfig,
) (*WeightUpdater, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("weight updater configuration invalid: %w", err)
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &WeightUpdater{
		grading: grading,
		weights: weights,
		logger:  logger.Named("weights"),
		metrics: metrics,
		config:  config,
	}, nil
}

// RecomputeOnce pulls the trailing grading window, scores each
// method's hit rate, renormalizes across active methods to sum to 1,
// and publishes the snapshot. Methods with too few graded samples
// keep their previous weight through the renormalization.
func (u *WeightUpdater) RecomputeOnce(ctx context.Context) (*domain.WeightSnapshot, error) {
	outcomes, err := u.grading.GradedOutcomes(ctx, u.config.Window)
	if err != nil {
		return nil, fmt.Errorf("graded outcomes: %w", err)
	}

	previous, err := u.weights.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("previous snapshot: %w", err)
	}

	hits := make(map[domain.SystemID]int, len(domain.ComponentSystems))
	totals := make(map[domain.SystemID]int, len(domain.ComponentSystems))
	for _, o := range outcomes {
		totals[o.SystemID]++
		if o.Hit(u.config.Tolerance) {
			hits[o.SystemID]++
		}
	}

	scores := make(map[domain.SystemID]float64, len(domain.ComponentSystems))
	var sum float64
	for _, system := range domain.ComponentSystems {
		var score float64
		if totals[system] >= u.config.MinSamples {
			score = float64(hits[system]) / float64(totals[system])
		} else {
			score = previous.BaseWeight(system)
		}
		scores[system] = score
		sum += score
	}

	weights := make(map[domain.SystemID]float64, len(scores))
	if sum == 0 {
		// Nothing graded and no usable prior: fall back to an equal
		// split rather than publishing a zero snapshot.
		for _, system := range domain.ComponentSystems {
			weights[system] = 1.0 / float64(len(domain.ComponentSystems))
		}
	} else {
		for system, score := range scores {
			weights[system] = score / sum
		}
	}

	snapshot := &domain.WeightSnapshot{
		Weights:    weights,
		WindowDays: int(u.config.Window.Hours() / 24),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := u.weights.Publish(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}

	u.metrics.RecordCounter("weight_recomputes_total", 1, nil)
	for system, w := range weights {
		u.metrics.RecordGauge("system_base_weight", w,
			map[string]string{"system": system.String()})
	}
	u.logger.Info("weights published",
		zap.Int("graded_outcomes", len(outcomes)),
		zap.Any("weights", weights))

	return snapshot, nil
}

// Run recomputes on the configured interval until the context is
// canceled. Failures are logged and retried on the next tick.
func (u *WeightUpdater) Run(ctx context.Context) {
	ticker := time.NewTicker(u.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := u.RecomputeOnce(ctx); err != nil {
				u.logger.Error("weight recompute failed", zap.Error(err))
			}
		}
	}
}
