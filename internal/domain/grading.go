package domain

import (
	"time"
)

// SlateEntry is one (player, contest) pairing on a slate, as resolved
// from the upstream feature store when a full-slate trigger arrives.
type SlateEntry struct {
	// PlayerID identifies the player.
	PlayerID string `json:"player_id"`

	// ContestID identifies the contest the player appears in.
	ContestID string `json:"contest_id"`
}

// GradedOutcome is one historical prediction graded against the actual
// result, supplied by the grading service to the weight updater.
type GradedOutcome struct {
	// SystemID names the method that made the prediction.
	SystemID SystemID `json:"system_id"`

	// Predicted is the value the method produced at the time.
	Predicted float64 `json:"predicted"`

	// Actual is the player's realized output.
	Actual float64 `json:"actual"`

	// GradedAt records when the outcome was graded.
	GradedAt time.Time `json:"graded_at"`
}

// Hit reports whether the prediction landed within tolerance of the
// actual outcome.
func (g GradedOutcome) Hit(tolerance float64) bool {
	diff := g.Predicted - g.Actual
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
