package domain

import (
	"time"
)

// Recommendation is the betting-side guidance derived from the
// ensemble's edge over the market line.
type Recommendation string

// Supported recommendations.
const (
	// RecommendOver indicates the predicted value exceeds the line by
	// at least the minimum edge.
	RecommendOver Recommendation = "OVER"

	// RecommendUnder indicates the predicted value trails the line by
	// at least the minimum edge.
	RecommendUnder Recommendation = "UNDER"

	// RecommendPass indicates the edge is too small or the systems
	// disagree too much to act on.
	RecommendPass Recommendation = "PASS"
)

// ComponentPrediction is the per-method slice of an EnsembleResult kept
// for the operations audience, which needs to see why systems disagree.
type ComponentPrediction struct {
	// SystemID names the contributing method.
	SystemID SystemID `json:"system_id"`

	// Value is the method's raw predicted value.
	Value float64 `json:"value"`

	// Confidence is the method's raw confidence, 0 to 100.
	Confidence float64 `json:"confidence"`
}

// EnsembleResult is the authoritative per-(player, contest) prediction.
// Exactly one current result exists per pair; superseded results are
// retained under their generation number and never overwritten in
// place.
type EnsembleResult struct {
	// PlayerID identifies the predicted player.
	PlayerID string `json:"player_id"`

	// ContestID identifies the contest the prediction is for.
	ContestID string `json:"contest_id"`

	// Generation is the monotonically increasing version marker that
	// distinguishes a fresh recomputation from a prior one. The
	// current pointer always advances to the latest generation.
	Generation int64 `json:"generation"`

	// PredictedValue is the confidence-weighted blend of all
	// contributing methods.
	PredictedValue float64 `json:"predicted_value"`

	// EnsembleConfidence blends mean component confidence with the
	// agreement score, 0 to 100.
	EnsembleConfidence float64 `json:"ensemble_confidence"`

	// AgreementScore measures how tightly the contributing predictions
	// cluster, 0 to 100, derived from their coefficient of variation.
	AgreementScore float64 `json:"agreement_score"`

	// ChampionSystemID names the method the rule table nominated as
	// most trustworthy for this context.
	ChampionSystemID SystemID `json:"champion_system_id"`

	// ChampionValue is the champion's raw predicted value, persisted
	// alongside the blend so downstream consumers choose which to
	// surface.
	ChampionValue float64 `json:"champion_value"`

	// ChampionConfidence is the champion's raw confidence.
	ChampionConfidence float64 `json:"champion_confidence"`

	// Recommendation is OVER, UNDER, or PASS.
	Recommendation Recommendation `json:"recommendation"`

	// Edge is PredictedValue minus BettingLine.
	Edge float64 `json:"edge"`

	// BettingLine is the market line the edge was measured against.
	BettingLine float64 `json:"betting_line"`

	// ComponentPredictions holds every non-abstained method's raw
	// output.
	ComponentPredictions []ComponentPrediction `json:"component_predictions"`

	// ComputedAt records when the worker produced this result.
	ComputedAt time.Time `json:"computed_at"`
}

// Key returns the (player, contest) identity the current pointer is
// keyed by.
func (r *EnsembleResult) Key() string { return r.PlayerID + "/" + r.ContestID }
