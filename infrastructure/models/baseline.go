package models

import (
	"context"
	"fmt"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

var _ ports.ScoringMethod = (*BaselineMethod)(nil)

// BaselineMethod implements the moving-average baseline scoring
// method: a weighted blend of the last-5, last-10, and season scoring
// averages with additive contextual adjustments for fatigue, zone
// mismatch, pace, usage, venue, and back-to-backs.
//
// The method is stateless and thread-safe. It abstains only when fewer
// than the minimum number of historical games exist; every other
// missing input degrades confidence instead of blocking the
// prediction.
type BaselineMethod struct {
	config BaselineConfig
}

// BaselineConfig defines the coefficients of the moving-average
// baseline. All fields are validated during method creation.
type BaselineConfig struct {
	// Last5Weight, Last10Weight, and SeasonWeight blend the rolling
	// averages. They must sum to 1.
	Last5Weight  float64 `yaml:"last5_weight" json:"last5_weight" validate:"min=0,max=1"`
	Last10Weight float64 `yaml:"last10_weight" json:"last10_weight" validate:"min=0,max=1"`
	SeasonWeight float64 `yaml:"season_weight" json:"season_weight" validate:"min=0,max=1"`

	// FatigueNeutral is the fatigue score treated as neutral; the
	// fatigue adjustment is (score - neutral) * FatigueCoeff.
	FatigueNeutral float64 `yaml:"fatigue_neutral" json:"fatigue_neutral" validate:"min=0,max=100"`
	FatigueCoeff   float64 `yaml:"fatigue_coeff" json:"fatigue_coeff" validate:"min=0"`

	// ZoneMismatchCoeff scales the signed zone mismatch score into
	// points.
	ZoneMismatchCoeff float64 `yaml:"zone_mismatch_coeff" json:"zone_mismatch_coeff" validate:"min=0"`

	// HomeBonus is added for home contests; AwayPenalty is subtracted
	// for away contests.
	HomeBonus   float64 `yaml:"home_bonus" json:"home_bonus" validate:"min=0"`
	AwayPenalty float64 `yaml:"away_penalty" json:"away_penalty" validate:"min=0"`

	// BackToBackPenalty is subtracted when the player has zero rest
	// days.
	BackToBackPenalty float64 `yaml:"back_to_back_penalty" json:"back_to_back_penalty" validate:"min=0"`

	// MinGames is the abstention floor: below this many historical
	// games the method declines to predict.
	MinGames int `yaml:"min_games" json:"min_games" validate:"min=1"`
}

// DefaultBaselineConfig returns the production coefficients.
func DefaultBaselineConfig() BaselineConfig {
	return BaselineConfig{
		Last5Weight:       0.40,
		Last10Weight:      0.35,
		SeasonWeight:      0.25,
		FatigueNeutral:    70.0,
		FatigueCoeff:      0.02,
		ZoneMismatchCoeff: 0.5,
		HomeBonus:         1.0,
		AwayPenalty:       1.0,
		BackToBackPenalty: 1.5,
		MinGames:          3,
	}
}

// NewBaselineMethod creates a moving-average baseline method with the
// given configuration.
func NewBaselineMethod(config BaselineConfig) (*BaselineMethod, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("baseline configuration invalid: %w", err)
	}
	sum := config.Last5Weight + config.Last10Weight + config.SeasonWeight
	if sum < 0.999 || sum > 1.001 {
		return nil, fmt.Errorf("%w: average weights must sum to 1, got %.3f",
			domain.ErrInvalidConfiguration, sum)
	}
	return &BaselineMethod{config: config}, nil
}

// SystemID returns domain.SystemBaseline.
func (m *BaselineMethod) SystemID() domain.SystemID { return domain.SystemBaseline }

// Validate reports whether the method is ready for execution.
func (m *BaselineMethod) Validate() error { return validate.Struct(m.config) }

// Score computes the baseline prediction. It abstains when fewer than
// MinGames historical games exist.
func (m *BaselineMethod) Score(_ context.Context, pc *domain.PredictionContext) (domain.ModelPrediction, error) {
	if pc.GamesPlayed < m.config.MinGames {
		return domain.Abstain(m.SystemID(),
			fmt.Sprintf("%d games played, need %d", pc.GamesPlayed, m.config.MinGames)), nil
	}

	baseline := m.config.Last5Weight*pc.Last5Avg +
		m.config.Last10Weight*pc.Last10Avg +
		m.config.SeasonWeight*pc.SeasonAvg

	fatigueAdj := (pc.FatigueScore - m.config.FatigueNeutral) * m.config.FatigueCoeff
	zoneAdj := pc.ZoneMismatchScore * m.config.ZoneMismatchCoeff
	paceAdj := pc.PaceScore
	usageAdj := pc.UsageScore

	var venueAdj float64
	switch pc.Venue {
	case domain.VenueHome:
		venueAdj = m.config.HomeBonus
	case domain.VenueAway:
		venueAdj = -m.config.AwayPenalty
	}

	var b2bPenalty float64
	if pc.RestDays == 0 {
		b2bPenalty = -m.config.BackToBackPenalty
	}

	value := baseline + fatigueAdj + zoneAdj + paceAdj + usageAdj + venueAdj + b2bPenalty

	return domain.ModelPrediction{
		SystemID:   m.SystemID(),
		Value:      value,
		Confidence: m.confidence(pc),
	}, nil
}

// confidence rises with recent-scoring consistency (lower standard
// deviation relative to the mean) and with input completeness.
func (m *BaselineMethod) confidence(pc *domain.PredictionContext) float64 {
	conf := 50.0

	points := make([]float64, 0, len(pc.RecentGames))
	for _, g := range pc.RecentGames {
		points = append(points, g.Points)
	}
	if avg := mean(points); len(points) >= 3 && avg > 0 {
		cv := stddev(points) / avg
		conf += (0.5 - cv) * 40
	}

	// Input completeness: each available signal firms up the estimate.
	if len(pc.ShotZones) > 0 {
		conf += 5
	}
	if len(pc.OpponentZoneDefense) > 0 {
		conf += 5
	}
	if pc.FatigueScore > 0 {
		conf += 5
	}
	if len(pc.RecentGames) >= 10 {
		conf += 5
	}

	return clamp(conf, 0, 100)
}
