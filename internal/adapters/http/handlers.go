// Package http exposes the admin and query surface of the prediction
// pipeline: trigger ingestion, batch status, current results, and
// weight management.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

// MaxBodySize limits the size of request bodies to 1MB.
const MaxBodySize = 1048576

// BatchService is the coordinator surface the handlers drive.
type BatchService interface {
	HandleTrigger(ctx context.Context, ev domain.TriggerEvent) (*domain.Batch, error)
	Progress(ctx context.Context, batchID string) (*domain.BatchProgress, error)
	Supersede(ctx context.Context, batchID string) error
}

// WeightService recomputes and publishes system weights on demand.
type WeightService interface {
	RecomputeOnce(ctx context.Context) (*domain.WeightSnapshot, error)
}

// Config carries the handler dependencies.
type Config struct {
	Batches BatchService
	Results ports.ResultStore
	Weights ports.WeightStore
	Updater WeightService
	Logger  *zap.Logger
}

// Handler serves the HTTP surface.
type Handler struct {
	batches   BatchService
	results   ports.ResultStore
	weights   ports.WeightStore
	updater   WeightService
	logger    *zap.SugaredLogger
	validator *validator.Validate
}

// New creates a handler.
func New(cfg Config) *Handler {
	return &Handler{
		batches:   cfg.Batches,
		results:   cfg.Results,
		weights:   cfg.Weights,
		updater:   cfg.Updater,
		logger:    cfg.Logger.Sugar(),
		validator: validator.New(),
	}
}

// Router assembles the chi router with CORS, request logging, and the
// Prometheus scrape endpoint.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/triggers", h.PostTrigger)
		r.Get("/batches/{batchID}", h.GetBatch)
		r.Post("/batches/{batchID}/supersede", h.SupersedeBatch)
		r.Get("/results/{playerID}/{contestID}", h.GetResult)
		r.Get("/weights", h.GetWeights)
		r.Post("/weights/recompute", h.RecomputeWeights)
	})

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// triggerRequest is the wire shape of a recomputation trigger.
type triggerRequest struct {
	EventType       string   `json:"event_type" validate:"required"`
	Scope           string   `json:"scope" validate:"required,oneof=full-slate player-subset"`
	ContestDate     string   `json:"contest_date" validate:"required,datetime=2006-01-02"`
	AffectedPlayers []string `json:"affected_players" validate:"required_if=Scope player-subset"`
	IdempotencyKey  string   `json:"idempotency_key" validate:"required"`
}

// PostTrigger ingests one trigger event. Duplicates are acknowledged
// with 200 and no batch; fresh triggers answer 202 with the created
// batch.
func (h *Handler) PostTrigger(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := h.batches.HandleTrigger(r.Context(), domain.TriggerEvent{
		EventType:       req.EventType,
		Scope:           domain.TriggerScope(req.Scope),
		ContestDate:     req.ContestDate,
		AffectedPlayers: req.AffectedPlayers,
		IdempotencyKey:  req.IdempotencyKey,
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		h.logger.Errorw("trigger failed", "idempotency_key", req.IdempotencyKey, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "trigger processing failed")
		return
	}
	if batch == nil {
		h.jsonResponse(w, http.StatusOK, map[string]string{"status": "no-op"})
		return
	}
	h.jsonResponse(w, http.StatusAccepted, batch)
}

// GetBatch returns mid-flight or terminal batch progress, including the
// missing-player list.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	progress, err := h.batches.Progress(r.Context(), chi.URLParam(r, "batchID"))
	if errors.Is(err, domain.ErrBatchNotFound) {
		h.errorResponse(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		h.logger.Errorw("batch lookup failed", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "batch lookup failed")
		return
	}
	h.jsonResponse(w, http.StatusOK, progress)
}

// SupersedeBatch aborts a batch that has made no progress yet.
func (h *Handler) SupersedeBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	err := h.batches.Supersede(r.Context(), batchID)
	if errors.Is(err, domain.ErrBatchNotFound) {
		h.errorResponse(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		h.errorResponse(w, http.StatusConflict, err.Error())
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]string{"batch_id": batchID, "status": string(domain.BatchAborted)})
}

// GetResult returns the current-generation result for a
// (player, contest) pair.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	contestID := chi.URLParam(r, "contestID")

	result, err := h.results.CurrentResult(r.Context(), playerID, contestID)
	if errors.Is(err, domain.ErrResultNotFound) {
		h.errorResponse(w, http.StatusNotFound, "no result for player")
		return
	}
	if err != nil {
		h.logger.Errorw("result lookup failed", "player_id", playerID, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "result lookup failed")
		return
	}
	h.jsonResponse(w, http.StatusOK, result)
}

// GetWeights returns the active weight snapshot.
func (h *Handler) GetWeights(w http.ResponseWriter, r *http.Request) {
	snap, err := h.weights.Snapshot(r.Context())
	if err != nil {
		h.logger.Errorw("weight snapshot failed", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "weight snapshot failed")
		return
	}
	h.jsonResponse(w, http.StatusOK, snap)
}

// RecomputeWeights forces an immediate weight recomputation.
func (h *Handler) RecomputeWeights(w http.ResponseWriter, r *http.Request) {
	snap, err := h.updater.RecomputeOnce(r.Context())
	if err != nil {
		h.logger.Errorw("weight recompute failed", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "weight recompute failed")
		return
	}
	h.jsonResponse(w, http.StatusOK, snap)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
