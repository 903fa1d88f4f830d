// Package storage provides the persistence adapters behind the
// engine's store ports: an in-memory implementation for tests and
// single-node deployments, and a Redis implementation whose native
// atomic increment backs the batch completion counter.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

// Interface guards.
var (
	_ ports.ResultStore       = (*MemoryStore)(nil)
	_ ports.BatchStore        = (*MemoryStore)(nil)
	_ ports.IdempotencyLedger = (*MemoryStore)(nil)
	_ ports.WeightStore       = (*MemoryStore)(nil)
)

type resultKey struct {
	playerID  string
	contestID string
}

type completionKey struct {
	batchID  string
	playerID string
}

// MemoryStore is a mutex-guarded, map-backed implementation of every
// store port. Completion record and counter are written under the
// store's lock in one step, giving the same atomicity the Redis
// adapter gets from its completion script.
type MemoryStore struct {
	mu sync.Mutex

	results map[resultKey]map[int64]*domain.EnsembleResult
	current map[resultKey]int64

	batches     map[string]*domain.Batch
	targets     map[string][]domain.SlateEntry
	completions map[completionKey]*domain.CompletionRecord
	generations map[string]int64

	idempotency map[string]time.Time // key -> expiry

	weights *domain.WeightSnapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results:     make(map[resultKey]map[int64]*domain.EnsembleResult),
		current:     make(map[resultKey]int64),
		batches:     make(map[string]*domain.Batch),
		targets:     make(map[string][]domain.SlateEntry),
		completions: make(map[completionKey]*domain.CompletionRecord),
		generations: make(map[string]int64),
		idempotency: make(map[string]time.Time),
	}
}

// SaveResult stores a result under its generation. The current pointer
// only ever advances; a stale generation is retained without becoming
// current.
func (s *MemoryStore) SaveResult(_ context.Context, result *domain.EnsembleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := resultKey{playerID: result.PlayerID, contestID: result.ContestID}
	if s.results[key] == nil {
		s.results[key] = make(map[int64]*domain.EnsembleResult)
	}
	cp := *result
	s.results[key][result.Generation] = &cp

	if result.Generation >= s.current[key] {
		s.current[key] = result.Generation
	}
	return nil
}

// CurrentResult returns the result at the current generation.
func (s *MemoryStore) CurrentResult(_ context.Context, playerID, contestID string) (*domain.EnsembleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := resultKey{playerID: playerID, contestID: contestID}
	gen, ok := s.current[key]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	result, ok := s.results[key][gen]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	cp := *result
	return &cp, nil
}

// CreateBatch persists a new batch record.
func (s *MemoryStore) CreateBatch(_ context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *batch
	s.batches[batch.ID] = &cp
	return nil
}

// GetBatch returns a batch by ID.
func (s *MemoryStore) GetBatch(_ context.Context, batchID string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	cp := *batch
	return &cp, nil
}

// SetStatus updates a batch's lifecycle state.
func (s *MemoryStore) SetStatus(_ context.Context, batchID string, status domain.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return domain.ErrBatchNotFound
	}
	batch.Status = status
	return nil
}

// RecordCompletion writes the completion record and advances the
// batch counter under one lock acquisition. A duplicate write leaves
// both untouched, so the counter always equals the record count.
func (s *MemoryStore) RecordCompletion(_ context.Context, rec *domain.CompletionRecord) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[rec.BatchID]
	if !ok {
		return 0, false, domain.ErrBatchNotFound
	}
	key := completionKey{batchID: rec.BatchID, playerID: rec.PlayerID}
	if _, exists := s.completions[key]; exists {
		return batch.CompletedCount, false, nil
	}
	cp := *rec
	s.completions[key] = &cp
	batch.CompletedCount++
	return batch.CompletedCount, true, nil
}

// GetCompletion returns the record for a (batch, player) pair, or nil.
func (s *MemoryStore) GetCompletion(_ context.Context, batchID, playerID string) (*domain.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.completions[completionKey{batchID: batchID, playerID: playerID}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// ListOpen returns every batch not in a terminal state.
func (s *MemoryStore) ListOpen(_ context.Context) ([]*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []*domain.Batch
	for _, batch := range s.batches {
		if batch.Status.Terminal() {
			continue
		}
		cp := *batch
		open = append(open, &cp)
	}
	return open, nil
}

// CompletedPlayers lists the players holding completion records for a
// batch.
func (s *MemoryStore) CompletedPlayers(_ context.Context, batchID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var players []string
	for key := range s.completions {
		if key.batchID == batchID {
			players = append(players, key.playerID)
		}
	}
	return players, nil
}

// Targets returns the target list recorded for a batch.
func (s *MemoryStore) Targets(_ context.Context, batchID string) ([]domain.SlateEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := make([]domain.SlateEntry, len(s.targets[batchID]))
	copy(targets, s.targets[batchID])
	return targets, nil
}

// SetTargets records the batch's target list.
func (s *MemoryStore) SetTargets(_ context.Context, batchID string, targets []domain.SlateEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.SlateEntry, len(targets))
	copy(cp, targets)
	s.targets[batchID] = cp
	return nil
}

// NextGeneration atomically allocates the next generation for a
// contest date.
func (s *MemoryStore) NextGeneration(_ context.Context, contestDate string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[contestDate]++
	return s.generations[contestDate], nil
}

// Claim records an idempotency key, reporting whether this call was
// the first. Expired keys are swept opportunistically, bounding the
// ledger without a background goroutine.
func (s *MemoryStore) Claim(_ context.Context, key string, retention time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, expiry := range s.idempotency {
		if now.After(expiry) {
			delete(s.idempotency, k)
		}
	}

	if expiry, exists := s.idempotency[key]; exists && now.Before(expiry) {
		return false, nil
	}
	s.idempotency[key] = now.Add(retention)
	return true, nil
}

// Snapshot returns the active weight snapshot, defaulting to an equal
// split before the first publish.
func (s *MemoryStore) Snapshot(_ context.Context) (*domain.WeightSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.weights == nil {
		return domain.DefaultWeightSnapshot(), nil
	}
	cp := *s.weights
	return &cp, nil
}

// Publish atomically replaces the active snapshot.
func (s *MemoryStore) Publish(_ context.Context, snap *domain.WeightSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	s.weights = &cp
	return nil
}
