package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/propcast/internal/domain"
)

// similarityContext builds a context whose vector is (tier 2, two rest
// days, home, neutral form).
func similarityContext(games []domain.GameLog) domain.PredictionContext {
	return domain.PredictionContext{
		Last5Avg: 20, Last10Avg: 20, SeasonAvg: 20, // neutral form bucket
		GamesPlayed:  30,
		OpponentTier: 2,
		RestDays:     2,
		Venue:        domain.VenueHome,
		FatigueScore: 70,
		RecentGames:  games,
	}
}

// matchingGame is a perfect context match (similarity 100).
func matchingGame(points float64) domain.GameLog {
	return domain.GameLog{
		Points:       points,
		OpponentTier: 2,
		RestDays:     2,
		Venue:        domain.VenueHome,
		FormBucket:   0,
	}
}

// dissimilarGame differs by three defensive tiers, which alone drops
// similarity to 55 under the default penalties.
func dissimilarGame(points float64) domain.GameLog {
	return domain.GameLog{
		Points:       points,
		OpponentTier: 5,
		RestDays:     2,
		Venue:        domain.VenueHome,
		FormBucket:   0,
	}
}

func TestSimilarityMethod_AbstentionFloor(t *testing.T) {
	method, err := NewSimilarityMethod(DefaultSimilarityConfig())
	require.NoError(t, err)

	// Three matches and a pile of dissimilar games: below the minimum
	// sample of five, the method must abstain rather than degrade.
	games := []domain.GameLog{
		matchingGame(18), matchingGame(22), matchingGame(20),
		dissimilarGame(30), dissimilarGame(31), dissimilarGame(29), dissimilarGame(35),
	}
	ctx := similarityContext(games)

	pred, err := method.Score(context.Background(), &ctx)
	require.NoError(t, err)
	assert.True(t, pred.Abstained)
	assert.Contains(t, pred.AbstainReason, "3 similar games")
}

func TestSimilarityMethod_WeightedRetrieval(t *testing.T) {
	cfg := DefaultSimilarityConfig()
	cfg.AdjustmentScale = 0 // isolate the retrieval baseline
	method, err := NewSimilarityMethod(cfg)
	require.NoError(t, err)

	// Five perfect matches: the prediction is their plain mean.
	games := []domain.GameLog{
		matchingGame(18), matchingGame(22), matchingGame(20),
		matchingGame(24), matchingGame(16),
	}
	ctx := similarityContext(games)

	pred, err := method.Score(context.Background(), &ctx)
	require.NoError(t, err)
	require.False(t, pred.Abstained)
	assert.InDelta(t, 20.0, pred.Value, 1e-9)
	assert.Equal(t, domain.SystemSimilarity, pred.SystemID)
}

func TestSimilarityMethod_SimilarityWeighting(t *testing.T) {
	cfg := DefaultSimilarityConfig()
	cfg.AdjustmentScale = 0
	method, err := NewSimilarityMethod(cfg)
	require.NoError(t, err)

	// Four perfect matches at 20 points and one 80-similarity game
	// (one tier off would be 85; use an away game: 90) at 30 points.
	offVenue := matchingGame(30)
	offVenue.Venue = domain.VenueAway // similarity 90
	games := []domain.GameLog{
		matchingGame(20), matchingGame(20), matchingGame(20), matchingGame(20),
		offVenue,
	}
	ctx := similarityContext(games)

	pred, err := method.Score(context.Background(), &ctx)
	require.NoError(t, err)
	require.False(t, pred.Abstained)

	// (4*20*1.0 + 30*0.9) / (4*1.0 + 0.9) = 107/4.9
	assert.InDelta(t, 107.0/4.9, pred.Value, 1e-9)

	// The weighted value sits between the plain mean and the matched
	// cluster, pulled toward the higher-similarity games.
	plainMean := (20.0*4 + 30.0) / 5
	assert.Less(t, pred.Value, plainMean)
	assert.Greater(t, pred.Value, 20.0)
}

func TestSimilarityMethod_ReducedAdjustments(t *testing.T) {
	games := []domain.GameLog{
		matchingGame(20), matchingGame(20), matchingGame(20),
		matchingGame(20), matchingGame(20),
	}

	neutral := DefaultSimilarityConfig()
	neutral.AdjustmentScale = 0
	scaled := DefaultSimilarityConfig()
	scaled.AdjustmentScale = 0.5

	neutralMethod, err := NewSimilarityMethod(neutral)
	require.NoError(t, err)
	scaledMethod, err := NewSimilarityMethod(scaled)
	require.NoError(t, err)

	ctx := similarityContext(games)
	ctx.ZoneMismatchScore = 4.0 // baseline adjustment would be +2.0

	base, err := neutralMethod.Score(context.Background(), &ctx)
	require.NoError(t, err)
	adjusted, err := scaledMethod.Score(context.Background(), &ctx)
	require.NoError(t, err)

	// Half-magnitude version of the baseline's zone adjustment, plus
	// the half-scaled home bonus.
	assert.InDelta(t, base.Value+0.5*(4.0*0.5+1.0), adjusted.Value, 1e-9)
}

func TestSimilarityMethod_ConfidenceScalesWithSample(t *testing.T) {
	cfg := DefaultSimilarityConfig()
	method, err := NewSimilarityMethod(cfg)
	require.NoError(t, err)

	five := make([]domain.GameLog, 5)
	ten := make([]domain.GameLog, 10)
	for i := range five {
		five[i] = matchingGame(20)
	}
	for i := range ten {
		ten[i] = matchingGame(20)
	}

	small := similarityContext(five)
	large := similarityContext(ten)

	smallPred, err := method.Score(context.Background(), &small)
	require.NoError(t, err)
	largePred, err := method.Score(context.Background(), &large)
	require.NoError(t, err)

	assert.Greater(t, largePred.Confidence, smallPred.Confidence)
	assert.LessOrEqual(t, largePred.Confidence, 95.0)
}
