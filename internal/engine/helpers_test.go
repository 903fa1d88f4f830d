package engine

import (
	"context"
	"sync"
	"time"

	"github.com/courtside/propcast/internal/domain"
)

// fixedMethod returns a canned prediction for every context.
type fixedMethod struct {
	id   domain.SystemID
	pred domain.ModelPrediction
	err  error
}

func (m *fixedMethod) SystemID() domain.SystemID { return m.id }
func (m *fixedMethod) Validate() error           { return nil }

func (m *fixedMethod) Score(_ context.Context, _ *domain.PredictionContext) (domain.ModelPrediction, error) {
	if m.err != nil {
		return domain.ModelPrediction{}, m.err
	}
	return m.pred, nil
}

func scoring(id domain.SystemID, value, confidence float64) *fixedMethod {
	return &fixedMethod{id: id, pred: domain.ModelPrediction{
		SystemID:   id,
		Value:      value,
		Confidence: confidence,
	}}
}

func abstaining(id domain.SystemID, reason string) *fixedMethod {
	return &fixedMethod{id: id, pred: domain.Abstain(id, reason)}
}

// fakeFeatureStore serves canned contexts and a fixed slate, with an
// optional per-call failure budget to exercise retries.
type fakeFeatureStore struct {
	mu       sync.Mutex
	contexts map[string]*domain.PredictionContext
	slate    []domain.SlateEntry
	failures int
	failWith error
	loads    int
}

func newFakeFeatureStore() *fakeFeatureStore {
	return &fakeFeatureStore{contexts: make(map[string]*domain.PredictionContext)}
}

func (f *fakeFeatureStore) put(playerID string, pc *domain.PredictionContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts[playerID] = pc
}

func (f *fakeFeatureStore) LoadContext(_ context.Context, playerID, contestID string) (*domain.PredictionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	pc, ok := f.contexts[playerID]
	if !ok {
		return nil, domain.ErrInsufficientData
	}
	copied := *pc
	copied.PlayerID = playerID
	copied.ContestID = contestID
	return &copied, nil
}

func (f *fakeFeatureStore) SlatePlayers(_ context.Context, _ string) ([]domain.SlateEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SlateEntry(nil), f.slate...), nil
}

// fakeGrading returns a fixed set of graded outcomes.
type fakeGrading struct {
	outcomes []domain.GradedOutcome
	err      error
}

func (f *fakeGrading) GradedOutcomes(_ context.Context, _ time.Duration) ([]domain.GradedOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.outcomes, nil
}

// recordingNotifier captures completion notifications.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []int
}

func (n *recordingNotifier) NotifyCompletion(_ context.Context, _ string, completed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, completed)
}

func neutralContext() *domain.PredictionContext {
	return &domain.PredictionContext{
		PlayerID:    "p1",
		ContestID:   "c1",
		Last5Avg:    22.0,
		Last10Avg:   21.5,
		SeasonAvg:   21.0,
		GamesPlayed: 40,
		RestDays:    2,
		Venue:       domain.VenueHome,
		BettingLine: 20.5,
	}
}
