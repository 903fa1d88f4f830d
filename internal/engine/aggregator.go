// Package engine contains the prediction ensemble's coordination
// machinery: the aggregator that blends scoring-method outputs, the
// champion selector, the batch coordinator, the worker pool, and the
// weight updater.
package engine

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/courtside/propcast/internal/domain"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// AggregatorConfig defines the blend coefficients and recommendation
// thresholds of the ensemble aggregator.
type AggregatorConfig struct {
	// ConfidenceBlend is the share of ensemble confidence taken from
	// mean component confidence; the remainder comes from the
	// agreement score. The 0.5/0.5 split is a tunable default, not a
	// hard requirement.
	ConfidenceBlend float64 `yaml:"confidence_blend" json:"confidence_blend" validate:"min=0,max=1"`

	// MinEdge is the minimum |predicted - line| needed before the
	// aggregator recommends OVER or UNDER.
	MinEdge float64 `yaml:"min_edge" json:"min_edge" validate:"min=0"`

	// LowAgreement forces a PASS whenever the agreement score falls
	// below it, regardless of edge. Disagreeing systems are not a
	// signal to act on.
	LowAgreement float64 `yaml:"low_agreement" json:"low_agreement" validate:"min=0,max=100"`
}

// DefaultAggregatorConfig returns the production thresholds.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		ConfidenceBlend: 0.5,
		MinEdge:         1.5,
		LowAgreement:    70.0,
	}
}

// Blend is the aggregator's output for one context: the
// confidence-weighted prediction plus the diagnostics the operations
// audience needs to see why systems disagree.
type Blend struct {
	// PredictedValue is the weighted mean of contributing values. By
	// construction it lies within [min(value_i), max(value_i)].
	PredictedValue float64

	// EnsembleConfidence blends mean component confidence with the
	// agreement score, 0 to 100.
	EnsembleConfidence float64

	// AgreementScore is clamp(100*(1-cv), 0, 100) over the
	// contributing values.
	AgreementScore float64

	// Edge is PredictedValue minus the betting line.
	Edge float64

	// Recommendation is OVER, UNDER, or PASS.
	Recommendation domain.Recommendation

	// Components holds every contributing method's raw output in
	// evaluation order.
	Components []domain.ComponentPrediction
}

// Aggregator combines non-abstained model predictions with the active
// weight snapshot into a single blended estimate. It is stateless and
// safe for concurrent use.
type Aggregator struct {
	config AggregatorConfig
}

// NewAggregator creates an aggregator with the given configuration.
func NewAggregator(config AggregatorConfig) (*Aggregator, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("aggregator configuration invalid: %w", err)
	}
	return &Aggregator{config: config}, nil
}

// Aggregate blends the contributing predictions. Abstained predictions
// are ignored. It returns domain.ErrInsufficientData when zero methods
// contributed or the adjusted weights sum to zero; no EnsembleResult
// may be emitted in that case.
func (a *Aggregator) Aggregate(preds []domain.ModelPrediction, weights *domain.WeightSnapshot, bettingLine float64) (*Blend, error) {
	var (
		contributors []domain.ModelPrediction
		weightedSum  float64
		weightSum    float64
	)
	for _, p := range preds {
		if p.Abstained {
			continue
		}
		contributors = append(contributors, p)
		adjusted := weights.BaseWeight(p.SystemID) * (p.Confidence / 100)
		weightedSum += p.Value * adjusted
		weightSum += adjusted
	}

	if len(contributors) == 0 || weightSum == 0 {
		return nil, fmt.Errorf("aggregate: %w", domain.ErrInsufficientData)
	}

	predicted := weightedSum / weightSum

	values := make([]float64, len(contributors))
	var confSum float64
	components := make([]domain.ComponentPrediction, len(contributors))
	for i, p := range contributors {
		values[i] = p.Value
		confSum += p.Confidence
		components[i] = domain.ComponentPrediction{
			SystemID:   p.SystemID,
			Value:      p.Value,
			Confidence: p.Confidence,
		}
	}

	agreement := agreementScore(values)
	meanConf := confSum / float64(len(contributors))
	confidence := clamp(a.config.ConfidenceBlend*meanConf+(1-a.config.ConfidenceBlend)*agreement, 0, 100)

	edge := predicted - bettingLine

	return &Blend{
		PredictedValue:     predicted,
		EnsembleConfidence: confidence,
		AgreementScore:     agreement,
		Edge:               edge,
		Recommendation:     a.recommend(edge, agreement),
		Components:         components,
	}, nil
}

// recommend maps an edge and agreement score to betting guidance. Low
// agreement forces a PASS regardless of edge.
func (a *Aggregator) recommend(edge, agreement float64) domain.Recommendation {
	if agreement < a.config.LowAgreement {
		return domain.RecommendPass
	}
	switch {
	case edge > a.config.MinEdge:
		return domain.RecommendOver
	case edge < -a.config.MinEdge:
		return domain.RecommendUnder
	default:
		return domain.RecommendPass
	}
}

// agreementScore measures how tightly values cluster: 100 when all
// values are identical, decreasing monotonically as the coefficient of
// variation grows, floored at 0.
func agreementScore(values []float64) float64 {
	if len(values) < 2 {
		return 100
	}
	m := mean(values)
	if m == 0 {
		return 100
	}
	cv := stddev(values) / math.Abs(m)
	return clamp(100*(1-cv), 0, 100)
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mean returns the arithmetic mean of vs, or 0 for an empty slice.
func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// stddev returns the population standard deviation of vs.
func stddev(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	m := mean(vs)
	var ss float64
	for _, v := range vs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vs)))
}
