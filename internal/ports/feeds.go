package ports

import (
	"context"
	"time"

	"github.com/courtside/propcast/internal/domain"
)

// FeatureStore is the upstream source of everything needed to build a
// PredictionContext. Its implementation (warehouse, cache, scraper
// pipeline) is out of scope; the engine depends only on these reads.
type FeatureStore interface {
	// LoadContext assembles a fresh context snapshot for one
	// (player, contest) pair. Unreachable stores surface as
	// domain.TransientError so workers retry with backoff.
	LoadContext(ctx context.Context, playerID, contestID string) (*domain.PredictionContext, error)

	// SlatePlayers resolves the full target set for a contest date.
	SlatePlayers(ctx context.Context, contestDate string) ([]domain.SlateEntry, error)
}

// GradingService supplies actual outcomes for graded historical
// predictions, consumed by the weight updater.
type GradingService interface {
	// GradedOutcomes returns every graded outcome within the trailing
	// window ending now.
	GradedOutcomes(ctx context.Context, window time.Duration) ([]domain.GradedOutcome, error)
}
