package models

import (
	"context"
	"fmt"
	"math"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

var _ ports.ScoringMethod = (*ZoneMatchupMethod)(nil)

// ZoneMatchupMethod implements the multiplicative zone-matchup scoring
// method. It identifies the player's primary shot zone, measures how
// the opponent defends that zone relative to league average, and
// scales the last-10 average by matchup, pace, and venue factors.
//
// All factors are multiplicative and sign-preserving: a favorable
// mismatch raises the factor above 1, a stout defense lowers it below
// 1. The method abstains when shot-zone data is unavailable.
type ZoneMatchupMethod struct {
	config ZoneMatchupConfig
}

// ZoneMatchupConfig defines the coefficients of the zone-matchup
// method. All fields are validated during method creation.
type ZoneMatchupConfig struct {
	// PaceCoeff converts the signed pace score into a multiplicative
	// factor: pace_factor = 1 + pace_score * PaceCoeff.
	PaceCoeff float64 `yaml:"pace_coeff" json:"pace_coeff" validate:"min=0"`

	// VenueEdge is the multiplicative edge applied by venue: home
	// contests use 1 + edge, away contests 1 - edge.
	VenueEdge float64 `yaml:"venue_edge" json:"venue_edge" validate:"min=0,max=0.5"`

	// ConfidenceBase is the confidence assigned to a neutral matchup.
	ConfidenceBase float64 `yaml:"confidence_base" json:"confidence_base" validate:"min=0,max=100"`

	// ConfidencePerPoint is the confidence gained per percentage point
	// of |zone weakness|; stronger signals in either direction make
	// the method more certain.
	ConfidencePerPoint float64 `yaml:"confidence_per_point" json:"confidence_per_point" validate:"min=0"`

	// ConfidenceCap bounds the confidence from above.
	ConfidenceCap float64 `yaml:"confidence_cap" json:"confidence_cap" validate:"min=0,max=100"`
}

// DefaultZoneMatchupConfig returns the production coefficients.
func DefaultZoneMatchupConfig() ZoneMatchupConfig {
	return ZoneMatchupConfig{
		PaceCoeff:          0.01,
		VenueEdge:          0.02,
		ConfidenceBase:     45.0,
		ConfidencePerPoint: 5.0,
		ConfidenceCap:      90.0,
	}
}

// NewZoneMatchupMethod creates a zone-matchup method with the given
// configuration.
func NewZoneMatchupMethod(config ZoneMatchupConfig) (*ZoneMatchupMethod, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("zone matchup configuration invalid: %w", err)
	}
	return &ZoneMatchupMethod{config: config}, nil
}

// SystemID returns domain.SystemZoneMatchup.
func (m *ZoneMatchupMethod) SystemID() domain.SystemID { return domain.SystemZoneMatchup }

// Validate reports whether the method is ready for execution.
func (m *ZoneMatchupMethod) Validate() error { return validate.Struct(m.config) }

// Score computes the matchup-scaled prediction. It abstains when
// shot-zone data or the opponent's defensive profile for the primary
// zone is unavailable.
func (m *ZoneMatchupMethod) Score(_ context.Context, pc *domain.PredictionContext) (domain.ModelPrediction, error) {
	primary, ok := pc.PrimaryZone()
	if !ok {
		return domain.Abstain(m.SystemID(), "no shot zone data"), nil
	}
	defense, ok := pc.OpponentZoneDefense[primary.Zone]
	if !ok {
		return domain.Abstain(m.SystemID(),
			fmt.Sprintf("no opponent defense profile for zone %q", primary.Zone)), nil
	}

	weakness := defense.Weakness()
	matchupFactor := 1 + weakness/100
	paceFactor := 1 + pc.PaceScore*m.config.PaceCoeff

	venueFactor := 1.0
	switch pc.Venue {
	case domain.VenueHome:
		venueFactor = 1 + m.config.VenueEdge
	case domain.VenueAway:
		venueFactor = 1 - m.config.VenueEdge
	}

	value := pc.Last10Avg * matchupFactor * paceFactor * venueFactor

	conf := clamp(m.config.ConfidenceBase+math.Abs(weakness)*m.config.ConfidencePerPoint,
		0, m.config.ConfidenceCap)

	return domain.ModelPrediction{
		SystemID:   m.SystemID(),
		Value:      value,
		Confidence: conf,
	}, nil
}
