package models

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/propcast/internal/domain"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestArtifactPredictor(t *testing.T) {
	t.Run("scores a linear model", func(t *testing.T) {
		path := writeArtifact(t, "intercept: 10.0\ncoefficients: [2.0, 0.5]\nconfidence: 80\n")
		p, err := LoadArtifactPredictor(path)
		require.NoError(t, err)

		value, conf, err := p.Predict(context.Background(), []float64{3.0, 4.0})
		require.NoError(t, err)
		assert.InDelta(t, 10.0+2.0*3.0+0.5*4.0, value, 1e-9)
		assert.InDelta(t, 80.0, conf, 1e-9)
	})

	t.Run("rejects mismatched feature length", func(t *testing.T) {
		path := writeArtifact(t, "intercept: 0\ncoefficients: [1.0]\nconfidence: 50\n")
		p, err := LoadArtifactPredictor(path)
		require.NoError(t, err)

		_, _, err = p.Predict(context.Background(), []float64{1, 2, 3})
		assert.Error(t, err)
	})

	t.Run("missing file is model-unavailable", func(t *testing.T) {
		_, err := LoadArtifactPredictor(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	})

	t.Run("empty coefficients are model-unavailable", func(t *testing.T) {
		path := writeArtifact(t, "intercept: 1.0\nconfidence: 50\n")
		_, err := LoadArtifactPredictor(path)
		assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	})
}

func TestUnavailablePredictor(t *testing.T) {
	_, _, err := UnavailablePredictor{}.Predict(context.Background(), []float64{1})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}
