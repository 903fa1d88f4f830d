package models

import (
	"context"
	"fmt"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

var _ ports.ScoringMethod = (*SimilarityMethod)(nil)

// SimilarityMethod implements the case-based similarity scoring
// method. It builds a context vector (opponent defensive tier,
// rest-day bucket, venue, recent-form bucket), retrieves historical
// games whose contexts score at least MinSimilarity against it, and
// predicts the similarity-weighted mean of their outcomes.
//
// Because the retrieval already encodes much of the context, the
// additive adjustment terms shared with the baseline method are
// applied at reduced magnitude via AdjustmentScale.
//
// The method abstains when fewer than MinSample sufficiently similar
// games exist; a degraded prediction from a thin sample is worse than
// no prediction.
type SimilarityMethod struct {
	config SimilarityConfig
}

// SimilarityConfig defines the retrieval thresholds and adjustment
// coefficients of the similarity method. All fields are validated
// during method creation.
type SimilarityConfig struct {
	// MinSimilarity is the retrieval threshold on the 0-100
	// similarity scale.
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity" validate:"min=0,max=100"`

	// MinSample is the abstention floor on retrieved game count.
	MinSample int `yaml:"min_sample" json:"min_sample" validate:"min=1"`

	// TierPenalty, RestPenalty, VenuePenalty, and FormPenalty are the
	// per-unit similarity deductions for each context-vector
	// component.
	TierPenalty  float64 `yaml:"tier_penalty" json:"tier_penalty" validate:"min=0"`
	RestPenalty  float64 `yaml:"rest_penalty" json:"rest_penalty" validate:"min=0"`
	VenuePenalty float64 `yaml:"venue_penalty" json:"venue_penalty" validate:"min=0"`
	FormPenalty  float64 `yaml:"form_penalty" json:"form_penalty" validate:"min=0"`

	// AdjustmentScale shrinks the baseline adjustment terms, since the
	// retrieval already partially encodes the context.
	AdjustmentScale float64 `yaml:"adjustment_scale" json:"adjustment_scale" validate:"min=0,max=1"`

	// Baseline holds the adjustment coefficients shared with the
	// baseline method, applied here at AdjustmentScale magnitude.
	Baseline BaselineConfig `yaml:"baseline" json:"baseline"`
}

// DefaultSimilarityConfig returns the production coefficients.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		MinSimilarity:   70.0,
		MinSample:       5,
		TierPenalty:     15.0,
		RestPenalty:     10.0,
		VenuePenalty:    10.0,
		FormPenalty:     10.0,
		AdjustmentScale: 0.5,
		Baseline:        DefaultBaselineConfig(),
	}
}

// NewSimilarityMethod creates a similarity method with the given
// configuration.
func NewSimilarityMethod(config SimilarityConfig) (*SimilarityMethod, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("similarity configuration invalid: %w", err)
	}
	return &SimilarityMethod{config: config}, nil
}

// SystemID returns domain.SystemSimilarity.
func (m *SimilarityMethod) SystemID() domain.SystemID { return domain.SystemSimilarity }

// Validate reports whether the method is ready for execution.
func (m *SimilarityMethod) Validate() error { return validate.Struct(m.config) }

// Score retrieves similar historical games and predicts their
// similarity-weighted outcome. It abstains below the minimum sample.
func (m *SimilarityMethod) Score(_ context.Context, pc *domain.PredictionContext) (domain.ModelPrediction, error) {
	type retrieved struct {
		points     float64
		similarity float64
	}

	var sample []retrieved
	for _, g := range pc.RecentGames {
		sim := m.similarity(pc, g)
		if sim >= m.config.MinSimilarity {
			sample = append(sample, retrieved{points: g.Points, similarity: sim})
		}
	}

	if len(sample) < m.config.MinSample {
		return domain.Abstain(m.SystemID(),
			fmt.Sprintf("%d similar games, need %d", len(sample), m.config.MinSample)), nil
	}

	var weightedSum, weightSum, simSum float64
	for _, r := range sample {
		w := r.similarity / 100
		weightedSum += r.points * w
		weightSum += w
		simSum += r.similarity
	}
	baseline := weightedSum / weightSum

	value := baseline + m.config.AdjustmentScale*m.adjustments(pc)

	meanSim := simSum / float64(len(sample))
	conf := clamp(30+4*float64(len(sample))+(meanSim-m.config.MinSimilarity)*0.8, 0, 95)

	return domain.ModelPrediction{
		SystemID:   m.SystemID(),
		Value:      value,
		Confidence: conf,
	}, nil
}

// similarity scores one historical game against the current context on
// a 0-100 scale, deducting per component of the context vector.
func (m *SimilarityMethod) similarity(pc *domain.PredictionContext, g domain.GameLog) float64 {
	score := 100.0
	score -= m.config.TierPenalty * float64(absInt(pc.OpponentTier-g.OpponentTier))
	score -= m.config.RestPenalty * float64(absInt(restBucket(pc.RestDays)-restBucket(g.RestDays)))
	if pc.Venue != g.Venue {
		score -= m.config.VenuePenalty
	}
	score -= m.config.FormPenalty * float64(absInt(pc.FormBucket()-g.FormBucket))
	return clamp(score, 0, 100)
}

// adjustments returns the full-magnitude sum of the baseline
// adjustment terms; the caller scales it down.
func (m *SimilarityMethod) adjustments(pc *domain.PredictionContext) float64 {
	cfg := m.config.Baseline

	adj := (pc.FatigueScore - cfg.FatigueNeutral) * cfg.FatigueCoeff
	adj += pc.ZoneMismatchScore * cfg.ZoneMismatchCoeff
	adj += pc.PaceScore
	adj += pc.UsageScore

	switch pc.Venue {
	case domain.VenueHome:
		adj += cfg.HomeBonus
	case domain.VenueAway:
		adj -= cfg.AwayPenalty
	}
	if pc.RestDays == 0 {
		adj -= cfg.BackToBackPenalty
	}
	return adj
}
