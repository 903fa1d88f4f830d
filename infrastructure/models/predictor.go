package models

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

var _ ports.Predictor = (*ArtifactPredictor)(nil)

// artifact is the on-disk shape of an exported model: a linear scorer
// distilled from the offline training pipeline.
type artifact struct {
	Intercept    float64   `yaml:"intercept"`
	Coefficients []float64 `yaml:"coefficients"`
	Confidence   float64   `yaml:"confidence"`
}

// ArtifactPredictor serves predictions from a model artifact exported
// by the offline training pipeline. The artifact is loaded once at
// startup; a missing or malformed file surfaces as
// domain.ErrModelUnavailable so the learned method abstains instead of
// failing players.
type ArtifactPredictor struct {
	model *artifact
}

// LoadArtifactPredictor reads a model artifact from disk.
func LoadArtifactPredictor(path string) (*ArtifactPredictor, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	var model artifact
	if err := yaml.Unmarshal(payload, &model); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	if len(model.Coefficients) == 0 {
		return nil, fmt.Errorf("%w: artifact has no coefficients", domain.ErrModelUnavailable)
	}
	return &ArtifactPredictor{model: &model}, nil
}

// Predict scores one feature vector.
func (p *ArtifactPredictor) Predict(_ context.Context, features []float64) (float64, float64, error) {
	if p.model == nil {
		return 0, 0, domain.ErrModelUnavailable
	}
	if len(features) != len(p.model.Coefficients) {
		return 0, 0, fmt.Errorf("feature length %d, model expects %d",
			len(features), len(p.model.Coefficients))
	}

	value := p.model.Intercept
	for i, f := range features {
		value += p.model.Coefficients[i] * f
	}
	return value, p.model.Confidence, nil
}

// UnavailablePredictor always reports the model artifact as missing.
// It stands in when no artifact path is configured, keeping the learned
// method wired but permanently abstaining.
type UnavailablePredictor struct{}

// Predict implements ports.Predictor.
func (UnavailablePredictor) Predict(context.Context, []float64) (float64, float64, error) {
	return 0, 0, domain.ErrModelUnavailable
}
