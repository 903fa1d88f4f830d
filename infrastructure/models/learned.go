package models

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

var _ ports.ScoringMethod = (*LearnedMethod)(nil)

// LearnedMethod wraps the black-box learned predictor (a
// gradient-boosted tree model consumed as an opaque artifact) as a
// scoring method. It validates the fixed-length feature vector before
// invoking the predictor and abstains on any malformed input or
// missing artifact; a configuration problem with one method must never
// fail the whole player.
type LearnedMethod struct {
	config    LearnedConfig
	predictor ports.Predictor
}

// LearnedConfig defines the feature-vector contract and confidence
// policy of the learned method. All fields are validated during method
// creation.
type LearnedConfig struct {
	// FeatureLength is the exact length the feature vector must have.
	FeatureLength int `yaml:"feature_length" json:"feature_length" validate:"min=1"`

	// CriticalIndexes are the vector positions that must be present
	// (non-NaN); a missing critical feature forces an abstention.
	CriticalIndexes []int `yaml:"critical_indexes" json:"critical_indexes"`

	// BaseConfidence is the confidence floor used when the predictor
	// does not report its own.
	BaseConfidence float64 `yaml:"base_confidence" json:"base_confidence" validate:"min=0,max=100"`

	// MissingPenalty is deducted from confidence per missing
	// non-critical feature.
	MissingPenalty float64 `yaml:"missing_penalty" json:"missing_penalty" validate:"min=0"`
}

// DefaultLearnedConfig returns the production feature contract.
func DefaultLearnedConfig() LearnedConfig {
	return LearnedConfig{
		FeatureLength:   24,
		CriticalIndexes: []int{0, 1, 2, 3},
		BaseConfidence:  75.0,
		MissingPenalty:  5.0,
	}
}

// NewLearnedMethod creates a learned method backed by the given
// predictor.
func NewLearnedMethod(config LearnedConfig, predictor ports.Predictor) (*LearnedMethod, error) {
	if predictor == nil {
		return nil, ErrNilPredictor
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("learned configuration invalid: %w", err)
	}
	for _, idx := range config.CriticalIndexes {
		if idx < 0 || idx >= config.FeatureLength {
			return nil, fmt.Errorf("%w: critical index %d outside feature length %d",
				domain.ErrInvalidConfiguration, idx, config.FeatureLength)
		}
	}
	return &LearnedMethod{config: config, predictor: predictor}, nil
}

// SystemID returns domain.SystemLearned.
func (m *LearnedMethod) SystemID() domain.SystemID { return domain.SystemLearned }

// Validate reports whether the method is ready for execution.
func (m *LearnedMethod) Validate() error {
	if m.predictor == nil {
		return ErrNilPredictor
	}
	return validate.Struct(m.config)
}

// Score validates the feature vector and delegates to the predictor.
// Malformed vectors and unavailable artifacts are abstentions for this
// method only, never errors that would block the ensemble.
func (m *LearnedMethod) Score(ctx context.Context, pc *domain.PredictionContext) (domain.ModelPrediction, error) {
	if len(pc.FeatureVector) != m.config.FeatureLength {
		return domain.Abstain(m.SystemID(),
			fmt.Sprintf("feature vector length %d, expected %d",
				len(pc.FeatureVector), m.config.FeatureLength)), nil
	}

	for _, idx := range m.config.CriticalIndexes {
		if math.IsNaN(pc.FeatureVector[idx]) {
			return domain.Abstain(m.SystemID(),
				fmt.Sprintf("critical feature %d missing", idx)), nil
		}
	}

	missing := 0
	features := make([]float64, len(pc.FeatureVector))
	for i, v := range pc.FeatureVector {
		if math.IsNaN(v) {
			missing++
			features[i] = 0
			continue
		}
		features[i] = v
	}

	value, conf, err := m.predictor.Predict(ctx, features)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return domain.ModelPrediction{}, ctx.Err()
	case errors.Is(err, domain.ErrModelUnavailable):
		return domain.Abstain(m.SystemID(), "model artifact unavailable"), nil
	default:
		return domain.Abstain(m.SystemID(), fmt.Sprintf("predictor failed: %v", err)), nil
	}

	if conf <= 0 {
		conf = m.config.BaseConfidence
	}
	conf = clamp(conf-float64(missing)*m.config.MissingPenalty, 0, 100)

	return domain.ModelPrediction{
		SystemID:   m.SystemID(),
		Value:      value,
		Confidence: conf,
	}, nil
}
