package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courtside/propcast/internal/domain"
)

type stubBatchService struct {
	batch    *domain.Batch
	progress *domain.BatchProgress
	err      error
	last     domain.TriggerEvent
}

func (s *stubBatchService) HandleTrigger(_ context.Context, ev domain.TriggerEvent) (*domain.Batch, error) {
	s.last = ev
	return s.batch, s.err
}

func (s *stubBatchService) Progress(_ context.Context, _ string) (*domain.BatchProgress, error) {
	return s.progress, s.err
}

func (s *stubBatchService) Supersede(_ context.Context, _ string) error { return s.err }

type stubResultStore struct {
	result *domain.EnsembleResult
	err    error
}

func (s *stubResultStore) SaveResult(_ context.Context, _ *domain.EnsembleResult) error { return nil }

func (s *stubResultStore) CurrentResult(_ context.Context, _, _ string) (*domain.EnsembleResult, error) {
	return s.result, s.err
}

type stubWeightStore struct {
	snap *domain.WeightSnapshot
}

func (s *stubWeightStore) Snapshot(_ context.Context) (*domain.WeightSnapshot, error) {
	return s.snap, nil
}

func (s *stubWeightStore) Publish(_ context.Context, snap *domain.WeightSnapshot) error {
	s.snap = snap
	return nil
}

type stubUpdater struct {
	snap *domain.WeightSnapshot
	err  error
}

func (s *stubUpdater) RecomputeOnce(_ context.Context) (*domain.WeightSnapshot, error) {
	return s.snap, s.err
}

func newTestHandler(batches *stubBatchService, results *stubResultStore) *Handler {
	return New(Config{
		Batches: batches,
		Results: results,
		Weights: &stubWeightStore{snap: domain.DefaultWeightSnapshot()},
		Updater: &stubUpdater{snap: domain.DefaultWeightSnapshot()},
		Logger:  zap.NewNop(),
	})
}

func TestPostTrigger(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		batch      *domain.Batch
		wantStatus int
	}{
		{
			name: "valid full-slate trigger",
			body: `{"event_type":"slate_publish","scope":"full-slate",
				"contest_date":"2026-01-15","idempotency_key":"ev-1"}`,
			batch:      &domain.Batch{ID: "b1", Status: domain.BatchRunning, TotalTargets: 3},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "duplicate trigger acknowledged without a batch",
			body: `{"event_type":"slate_publish","scope":"full-slate",
				"contest_date":"2026-01-15","idempotency_key":"ev-1"}`,
			wantStatus: http.StatusOK,
		},
		{
			name: "subset trigger requires affected players",
			body: `{"event_type":"line_move","scope":"player-subset",
				"contest_date":"2026-01-15","idempotency_key":"ev-2"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing idempotency key",
			body:       `{"event_type":"slate_publish","scope":"full-slate","contest_date":"2026-01-15"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "malformed contest date",
			body: `{"event_type":"slate_publish","scope":"full-slate",
				"contest_date":"Jan 15","idempotency_key":"ev-3"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid JSON",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBatchService{batch: tt.batch}
			h := newTestHandler(svc, &stubResultStore{})

			req := httptest.NewRequest("POST", "/v1/triggers", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Router().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestGetBatch(t *testing.T) {
	t.Run("returns progress with missing players", func(t *testing.T) {
		svc := &stubBatchService{progress: &domain.BatchProgress{
			BatchID:        "b1",
			TotalTargets:   10,
			CompletedCount: 8,
			Status:         domain.BatchPartial,
			MissingPlayers: []string{"p9", "p10"},
		}}
		h := newTestHandler(svc, &stubResultStore{})

		req := httptest.NewRequest("GET", "/v1/batches/b1", nil)
		w := httptest.NewRecorder()
		h.Router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var progress domain.BatchProgress
		require.NoError(t, json.NewDecoder(w.Body).Decode(&progress))
		assert.Equal(t, []string{"p9", "p10"}, progress.MissingPlayers)
	})

	t.Run("unknown batch is 404", func(t *testing.T) {
		svc := &stubBatchService{err: domain.ErrBatchNotFound}
		h := newTestHandler(svc, &stubResultStore{})

		req := httptest.NewRequest("GET", "/v1/batches/nope", nil)
		w := httptest.NewRecorder()
		h.Router().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetResult(t *testing.T) {
	t.Run("returns the current result", func(t *testing.T) {
		results := &stubResultStore{result: &domain.EnsembleResult{
			PlayerID:       "p1",
			ContestID:      "c1",
			Generation:     3,
			PredictedValue: 25.7,
			Recommendation: domain.RecommendOver,
			ComputedAt:     time.Now().UTC(),
		}}
		h := newTestHandler(&stubBatchService{}, results)

		req := httptest.NewRequest("GET", "/v1/results/p1/c1", nil)
		w := httptest.NewRecorder()
		h.Router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var result domain.EnsembleResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		assert.Equal(t, int64(3), result.Generation)
		assert.Equal(t, domain.RecommendOver, result.Recommendation)
	})

	t.Run("missing result is 404", func(t *testing.T) {
		h := newTestHandler(&stubBatchService{}, &stubResultStore{err: domain.ErrResultNotFound})

		req := httptest.NewRequest("GET", "/v1/results/p1/c1", nil)
		w := httptest.NewRecorder()
		h.Router().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRecomputeWeights(t *testing.T) {
	h := newTestHandler(&stubBatchService{}, &stubResultStore{})

	req := httptest.NewRequest("POST", "/v1/weights/recompute", nil)
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var snap domain.WeightSnapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Len(t, snap.Weights, len(domain.ComponentSystems))
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&stubBatchService{}, &stubResultStore{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
