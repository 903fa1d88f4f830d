package ports

import (
	"context"
	"time"

	"github.com/courtside/propcast/internal/domain"
)

// ResultStore persists generation-versioned ensemble results. Exactly
// one current result exists per (player, contest); superseded
// generations are retained, never overwritten in place.
type ResultStore interface {
	// SaveResult persists a result under its generation and advances
	// the current pointer if the generation is the newest seen for the
	// pair. A stale generation is stored but never becomes current.
	SaveResult(ctx context.Context, result *domain.EnsembleResult) error

	// CurrentResult returns the current result for a pair, or
	// domain.ErrResultNotFound.
	CurrentResult(ctx context.Context, playerID, contestID string) (*domain.EnsembleResult, error)
}

// BatchStore persists batches and their per-player completion records.
// The completed counter must be mutated exclusively through
// RecordCompletion, which writes the record and advances the counter
// as one atomic store operation; separate write-then-increment steps
// leave the counter short of the record count when the increment
// fails, and a diverged counter never heals.
type BatchStore interface {
	// CreateBatch persists a new batch record.
	CreateBatch(ctx context.Context, batch *domain.Batch) error

	// GetBatch returns a batch by ID, or domain.ErrBatchNotFound.
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)

	// ListOpen returns every batch not in a terminal state, including
	// batches created by a previous process.
	ListOpen(ctx context.Context) ([]*domain.Batch, error)

	// SetStatus updates a batch's lifecycle state.
	SetStatus(ctx context.Context, batchID string, status domain.BatchStatus) error

	// RecordCompletion atomically writes one completion record and
	// advances the batch counter, returning the new count. When a
	// record already exists for the (batch, player) pair it returns
	// the current count and false without touching either, making
	// completion exactly-once under at-least-once delivery.
	RecordCompletion(ctx context.Context, rec *domain.CompletionRecord) (int, bool, error)

	// GetCompletion returns the record for a (batch, player) pair, or
	// nil when none exists.
	GetCompletion(ctx context.Context, batchID, playerID string) (*domain.CompletionRecord, error)

	// CompletedPlayers lists the players holding completion records
	// for a batch, used to name the gaps when a batch closes partial.
	CompletedPlayers(ctx context.Context, batchID string) ([]string, error)

	// Targets returns the full target player list recorded for a
	// batch.
	Targets(ctx context.Context, batchID string) ([]domain.SlateEntry, error)

	// SetTargets records the batch's target list at creation time.
	SetTargets(ctx context.Context, batchID string, targets []domain.SlateEntry) error

	// NextGeneration atomically allocates the next recomputation
	// generation for a contest date.
	NextGeneration(ctx context.Context, contestDate string) (int64, error)
}

// IdempotencyLedger is the durable, time-bounded record of event keys
// already processed. It converts at-least-once delivery into
// effectively-once handling without distributed locks.
type IdempotencyLedger interface {
	// Claim records a key with the given retention and reports whether
	// this call was the first to claim it. A false return means the
	// event is a duplicate and the handler must no-op.
	Claim(ctx context.Context, key string, retention time.Duration) (bool, error)
}

// WeightStore holds the active SystemWeight snapshot. Only the weight
// updater publishes; everything else reads.
type WeightStore interface {
	// Snapshot returns the active weight snapshot. Implementations
	// return a default equal-weight snapshot before the first publish.
	Snapshot(ctx context.Context) (*domain.WeightSnapshot, error)

	// Publish atomically replaces the active snapshot.
	Publish(ctx context.Context, snap *domain.WeightSnapshot) error
}
