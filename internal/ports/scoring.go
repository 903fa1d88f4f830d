// Package ports defines the core interfaces that form the contract
// between the domain/engine layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system
// testable.
package ports

import (
	"context"

	"github.com/courtside/propcast/internal/domain"
)

// ScoringMethod is one independent prediction strategy in the
// ensemble. Implementations must be pure functions of the context plus
// their own validated configuration: no cross-call mutable state, safe
// for concurrent use, and they abstain rather than guess when their
// preconditions are unmet.
type ScoringMethod interface {
	// SystemID returns the method's stable identifier, used for
	// weighting, champion selection, and logging.
	SystemID() domain.SystemID

	// Score produces the method's prediction for one context. An
	// abstention is returned in-band as a ModelPrediction with
	// Abstained set; errors are reserved for genuine failures such as
	// an unreachable dependency.
	//
	// Score must be deterministic: identical contexts yield identical
	// predictions.
	Score(ctx context.Context, pc *domain.PredictionContext) (domain.ModelPrediction, error)

	// Validate checks the method's configuration and reports whether
	// it is ready for execution. Called during engine construction.
	Validate() error
}

// Predictor is the pluggable black-box learned model consumed by the
// learned scoring method. Training and internals are out of scope; the
// engine only requires a deterministic value-and-confidence mapping
// over a fixed-length feature vector.
type Predictor interface {
	// Predict maps a complete feature vector to a predicted value and
	// a confidence in [0,100]. Implementations return
	// domain.ErrModelUnavailable when the model artifact cannot be
	// loaded.
	Predict(ctx context.Context, features []float64) (value, confidence float64, err error)
}
