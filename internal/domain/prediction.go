package domain

import (
	"time"
)

// SystemID identifies one scoring method within the ensemble.
type SystemID string

// The closed set of scoring systems. The aggregator iterates over a
// fixed list of implementations, so adding a system means adding a
// constant here and an implementation in infrastructure/models.
const (
	// SystemBaseline is the moving-average baseline method.
	SystemBaseline SystemID = "moving_average"

	// SystemZoneMatchup is the multiplicative zone-matchup method.
	SystemZoneMatchup SystemID = "zone_matchup"

	// SystemSimilarity is the case-based similarity-retrieval method.
	SystemSimilarity SystemID = "similarity"

	// SystemLearned is the black-box learned-model method.
	SystemLearned SystemID = "learned"

	// SystemEnsemble denotes the blended ensemble itself. It is a
	// valid champion but never a component.
	SystemEnsemble SystemID = "ensemble"
)

// String returns the string representation of the system identifier.
func (s SystemID) String() string { return string(s) }

// ComponentSystems lists every scoring method that can contribute a
// component prediction, in evaluation order.
var ComponentSystems = []SystemID{
	SystemBaseline,
	SystemZoneMatchup,
	SystemSimilarity,
	SystemLearned,
}

// ModelPrediction is the output of exactly one scoring method for
// exactly one PredictionContext.
type ModelPrediction struct {
	// SystemID names the method that produced this prediction.
	SystemID SystemID `json:"system_id"`

	// Value is the predicted statistical output. Meaningless when
	// Abstained is true.
	Value float64 `json:"value"`

	// Confidence is the method's self-assessed certainty, 0 to 100.
	Confidence float64 `json:"confidence"`

	// Abstained is true when the method declined to predict because
	// its preconditions were unmet. An abstention is not an error; it
	// shrinks the contributing set.
	Abstained bool `json:"abstained"`

	// AbstainReason explains an abstention for the operations surface.
	// Empty unless Abstained is true.
	AbstainReason string `json:"abstain_reason,omitempty"`
}

// Abstain builds an abstained prediction for the given system.
func Abstain(system SystemID, reason string) ModelPrediction {
	return ModelPrediction{SystemID: system, Abstained: true, AbstainReason: reason}
}

// SystemWeight is one method's blending coefficient, relearned
// periodically from graded historical accuracy.
type SystemWeight struct {
	// SystemID names the method the weight applies to.
	SystemID SystemID `json:"system_id"`

	// BaseWeight is the method's share of the blend, 0.0 to 1.0.
	// Weights across active methods sum to 1.
	BaseWeight float64 `json:"base_weight"`
}

// WeightSnapshot is the full set of active system weights published by
// the weight updater. It is read-only to the aggregator; only the
// updater replaces it, atomically and as a whole.
type WeightSnapshot struct {
	// Weights maps each active method to its base weight.
	Weights map[SystemID]float64 `json:"weights"`

	// WindowDays is the trailing grading window the snapshot was
	// learned from.
	WindowDays int `json:"window_days"`

	// UpdatedAt records when the snapshot was published.
	UpdatedAt time.Time `json:"updated_at"`
}

// BaseWeight returns the snapshot weight for a system, falling back to
// an equal split across component systems when the snapshot has no
// entry. A missing snapshot must never zero out a healthy method.
func (w *WeightSnapshot) BaseWeight(system SystemID) float64 {
	if w == nil || len(w.Weights) == 0 {
		return 1.0 / float64(len(ComponentSystems))
	}
	if bw, ok := w.Weights[system]; ok {
		return bw
	}
	return 0
}

// DefaultWeightSnapshot returns an equal-weight snapshot used before
// the first weight-updater run.
func DefaultWeightSnapshot() *WeightSnapshot {
	weights := make(map[SystemID]float64, len(ComponentSystems))
	for _, s := range ComponentSystems {
		weights[s] = 1.0 / float64(len(ComponentSystems))
	}
	return &WeightSnapshot{Weights: weights, UpdatedAt: time.Now().UTC()}
}
