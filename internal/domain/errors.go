package domain

import (
	"errors"
	"fmt"
)

// Common domain errors for the prediction pipeline. The taxonomy
// distinguishes abstentions (not errors, handled in-band via
// ModelPrediction.Abstained), insufficient ensemble data, duplicate
// event deliveries, and transient dependency failures.
var (
	// ErrInsufficientData indicates zero scoring methods contributed,
	// so no EnsembleResult can be emitted and the player is reported
	// missing in batch status.
	ErrInsufficientData = errors.New("no contributing predictions")

	// ErrDuplicateEvent indicates an idempotency key has already been
	// processed. Handlers treat this as a silent no-op.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrBatchNotFound indicates a batch ID has no stored record.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrResultNotFound indicates no current result exists for a
	// (player, contest) pair.
	ErrResultNotFound = errors.New("result not found")

	// ErrModelUnavailable indicates the learned model artifact could
	// not be loaded. The learned method treats this as an abstention.
	ErrModelUnavailable = errors.New("model artifact unavailable")

	// ErrInvalidConfiguration indicates configuration is invalid or
	// incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrQueueFull indicates the work queue rejected an item because
	// it is at capacity.
	ErrQueueFull = errors.New("work queue full")
)

// TransientError wraps a dependency failure that is expected to clear
// on retry, such as an unreachable store or feed. Workers retry these
// with bounded backoff; everything else fails the item immediately.
type TransientError struct {
	// Op describes the operation that failed, for example
	// "featurestore.load".
	Op string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface for TransientError.
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure: op=%s, err=%v", e.Op, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is/As.
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as retryable for the given operation.
func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ItemError records one player's failure without affecting the rest of
// the batch. The coordinator aggregates these into the missing-player
// list rather than aborting.
type ItemError struct {
	// BatchID and PlayerID identify the failed work item.
	BatchID  string
	PlayerID string

	// Err is the terminal error after retries were exhausted.
	Err error
}

// Error implements the error interface for ItemError.
func (e *ItemError) Error() string {
	return fmt.Sprintf("work item failed: batch=%s, player=%s, err=%v", e.BatchID, e.PlayerID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ItemError) Unwrap() error { return e.Err }
