package engine

import (
	"fmt"
	"math"

	"github.com/courtside/propcast/internal/domain"
)

// ChampionConfig defines the thresholds of the champion rule table.
type ChampionConfig struct {
	// ZoneMismatchHigh is the |zone mismatch| above which the zone
	// matchup method is nominated.
	ZoneMismatchHigh float64 `yaml:"zone_mismatch_high" json:"zone_mismatch_high" validate:"min=0"`

	// FormDeviationHigh is the |last5 - season| deviation above which
	// the similarity method is nominated.
	FormDeviationHigh float64 `yaml:"form_deviation_high" json:"form_deviation_high" validate:"min=0"`

	// AgreementHigh is the agreement score at or above which the
	// ensemble itself is nominated.
	AgreementHigh float64 `yaml:"agreement_high" json:"agreement_high" validate:"min=0,max=100"`
}

// DefaultChampionConfig returns the production rule thresholds.
func DefaultChampionConfig() ChampionConfig {
	return ChampionConfig{
		ZoneMismatchHigh:  5.0,
		FormDeviationHigh: 4.0,
		AgreementHigh:     95.0,
	}
}

// Champion is the rule table's nomination: the single method judged
// most trustworthy for the context, carried alongside the blended
// ensemble value so downstream consumers choose which to surface.
type Champion struct {
	// SystemID names the nominated method (possibly the ensemble).
	SystemID domain.SystemID

	// Value and Confidence are the nominee's raw outputs.
	Value      float64
	Confidence float64
}

// ChampionSelector evaluates a deterministic, ordered rule table
// against the context and the set of contributing predictions. The
// first matching rule wins; a method-specific rule only fires when
// that method actually contributed.
type ChampionSelector struct {
	config ChampionConfig
}

// NewChampionSelector creates a selector with the given thresholds.
func NewChampionSelector(config ChampionConfig) (*ChampionSelector, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("champion configuration invalid: %w", err)
	}
	return &ChampionSelector{config: config}, nil
}

// Select nominates the champion for one context. The contributors
// slice must contain only non-abstained predictions, and the blend
// must be the aggregator output for the same contributors.
func (s *ChampionSelector) Select(pc *domain.PredictionContext, contributors []domain.ModelPrediction, blend *Blend) Champion {
	byID := make(map[domain.SystemID]domain.ModelPrediction, len(contributors))
	for _, p := range contributors {
		byID[p.SystemID] = p
	}

	// Rule 1: a pronounced zone mismatch is the zone model's home turf.
	if math.Abs(pc.ZoneMismatchScore) > s.config.ZoneMismatchHigh {
		if p, ok := byID[domain.SystemZoneMatchup]; ok {
			return fromPrediction(p)
		}
	}

	// Rule 2: when recent form deviates sharply from the season
	// average, the case-based model has the most relevant evidence.
	if math.Abs(pc.Last5Avg-pc.SeasonAvg) > s.config.FormDeviationHigh {
		if p, ok := byID[domain.SystemSimilarity]; ok {
			return fromPrediction(p)
		}
	}

	// Rule 3: back-to-backs reward the conservative moving average.
	if pc.RestDays == 0 {
		if p, ok := byID[domain.SystemBaseline]; ok {
			return fromPrediction(p)
		}
	}

	// Rule 4: near-unanimous systems make the blend itself the
	// most defensible number.
	if blend.AgreementScore >= s.config.AgreementHigh {
		return Champion{
			SystemID:   domain.SystemEnsemble,
			Value:      blend.PredictedValue,
			Confidence: blend.EnsembleConfidence,
		}
	}

	// Default: the contributing method with the highest individual
	// confidence, ties broken by evaluation order for determinism.
	best := contributors[0]
	for _, p := range contributors[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	return fromPrediction(best)
}

func fromPrediction(p domain.ModelPrediction) Champion {
	return Champion{SystemID: p.SystemID, Value: p.Value, Confidence: p.Confidence}
}
