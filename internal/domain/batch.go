package domain

import (
	"time"
)

// BatchStatus is the lifecycle state of a dispatch batch.
type BatchStatus string

// Batch lifecycle states. Transitions are pending → running →
// {complete | partial | aborted}; the three terminal states are final.
const (
	// BatchPending is a created batch whose work items have not yet
	// been dispatched.
	BatchPending BatchStatus = "pending"

	// BatchRunning is a batch with work items in flight.
	BatchRunning BatchStatus = "running"

	// BatchComplete means every target produced a completion record.
	BatchComplete BatchStatus = "complete"

	// BatchPartial means the deadline passed with targets still
	// missing; the gaps are named, never silent.
	BatchPartial BatchStatus = "partial"

	// BatchAborted means the batch was explicitly superseded before
	// any completion. In-flight workers still persist their results;
	// they simply do not become current.
	BatchAborted BatchStatus = "aborted"
)

// Terminal reports whether the status is final.
func (s BatchStatus) Terminal() bool {
	return s == BatchComplete || s == BatchPartial || s == BatchAborted
}

// Batch tracks one coordinated dispatch of per-player prediction work.
// Progress is an atomically incremented counter plus one immutable
// CompletionRecord per finished player; it is never derived by
// scanning a list of identifiers.
type Batch struct {
	// ID uniquely identifies the batch (a UUID).
	ID string `json:"batch_id"`

	// ContestDate is the slate date the batch covers, YYYY-MM-DD.
	ContestDate string `json:"contest_date"`

	// Generation is the recomputation version stamped on every work
	// item the batch dispatches.
	Generation int64 `json:"generation"`

	// TotalTargets is the number of players the batch must predict.
	TotalTargets int `json:"total_targets"`

	// CompletedCount is the number of completion records written so
	// far. Mutated exclusively through the store's atomic increment.
	CompletedCount int `json:"completed_count"`

	// Status is the batch's lifecycle state.
	Status BatchStatus `json:"status"`

	// CreatedAt records when the coordinator created the batch.
	CreatedAt time.Time `json:"created_at"`

	// Deadline is when the coordinator closes the batch as partial if
	// it has not completed. Batches never wait indefinitely.
	Deadline time.Time `json:"deadline"`
}

// Done reports whether every target has completed.
func (b *Batch) Done() bool { return b.CompletedCount >= b.TotalTargets }

// CompletionRecord marks one player's work in one batch as finished.
// It is written exactly once by the worker that produced the
// corresponding EnsembleResult, never updated afterward, and its
// existence is the sole source of truth for "this player is done."
type CompletionRecord struct {
	// BatchID identifies the batch the completion belongs to.
	BatchID string `json:"batch_id"`

	// PlayerID identifies the completed player.
	PlayerID string `json:"player_id"`

	// Generation is the generation of the result that completed.
	Generation int64 `json:"generation"`

	// CompletedAt records when the worker finished.
	CompletedAt time.Time `json:"completed_at"`
}

// WorkItem is one unit of dispatch: predict one player for one contest
// at one generation. Players are embarrassingly parallel; items carry
// no cross-player dependencies.
type WorkItem struct {
	// BatchID ties the item back to its batch for progress tracking.
	BatchID string `json:"batch_id"`

	// PlayerID identifies the player to predict.
	PlayerID string `json:"player_id"`

	// ContestID identifies the contest to predict for.
	ContestID string `json:"contest_id"`

	// Generation versions the recomputation this item belongs to.
	Generation int64 `json:"generation"`

	// EnqueuedAt records when the coordinator dispatched the item.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// TriggerScope selects how much of the slate a trigger recomputes.
type TriggerScope string

// Supported trigger scopes.
const (
	// ScopeFullSlate recomputes every player on the slate.
	ScopeFullSlate TriggerScope = "full-slate"

	// ScopePlayerSubset recomputes only the named players, typically
	// after a line move.
	ScopePlayerSubset TriggerScope = "player-subset"
)

// TriggerEvent asks the coordinator to (re)compute predictions. Events
// are delivered at least once and deduplicated by idempotency key; a
// repeated key is a silent no-op.
type TriggerEvent struct {
	// EventType labels the trigger source, for example "slate_publish"
	// or "line_move".
	EventType string `json:"event_type"`

	// Scope is full-slate or player-subset.
	Scope TriggerScope `json:"scope"`

	// ContestDate is the slate date the trigger applies to.
	ContestDate string `json:"contest_date"`

	// AffectedPlayers names the targets of a player-subset trigger.
	// Ignored for full-slate triggers.
	AffectedPlayers []string `json:"affected_players,omitempty"`

	// IdempotencyKey detects and discards duplicate deliveries.
	IdempotencyKey string `json:"idempotency_key"`

	// Timestamp is when the trigger was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// BatchProgress is the queryable mid-flight view of a batch, including
// the explicit missing-player list for partial closures.
type BatchProgress struct {
	// BatchID identifies the batch.
	BatchID string `json:"batch_id"`

	// TotalTargets is the batch's target count.
	TotalTargets int `json:"total_targets"`

	// CompletedCount is the current completion counter.
	CompletedCount int `json:"completed_count"`

	// Status is the batch's lifecycle state.
	Status BatchStatus `json:"status"`

	// MissingPlayers names every target without a completion record.
	MissingPlayers []string `json:"missing_players"`
}
