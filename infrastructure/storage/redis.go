package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

// Interface guards.
var (
	_ ports.ResultStore       = (*RedisStore)(nil)
	_ ports.BatchStore        = (*RedisStore)(nil)
	_ ports.IdempotencyLedger = (*RedisStore)(nil)
	_ ports.WeightStore       = (*RedisStore)(nil)
)

// advanceCurrent atomically moves a current-generation pointer forward
// only. A stale generation leaves the pointer untouched.
var advanceCurrent = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '-1')
local gen = tonumber(ARGV[1])
if gen >= cur then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// recordCompletion writes one completion record and advances the
// batch counter as a single server-side step. A record that already
// exists leaves the counter untouched and reports the current count,
// so the counter can never drift from the record count even when the
// caller dies or errors between delivery and acknowledgement.
var recordCompletion = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return {0, tonumber(redis.call('GET', KEYS[3]) or '0')}
end
redis.call('SADD', KEYS[2], ARGV[2])
return {1, redis.call('INCR', KEYS[3])}
`)

// RedisStore implements every store port on Redis. Completion record,
// player index, and batch counter are written by one Lua script, so
// concurrent or replayed completions never lose or double-count
// updates; idempotency keys use SETNX for exactly-once writes; result
// keys carry their generation, with a compare-and-advance script
// guarding the current pointer.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store over an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func resultKeyOf(playerID, contestID string, generation int64) string {
	return fmt.Sprintf("result:%s:%s:%d", playerID, contestID, generation)
}

func currentKeyOf(playerID, contestID string) string {
	return fmt.Sprintf("result:%s:%s:current", playerID, contestID)
}

// SaveResult persists the result under its generation and advances the
// current pointer if the generation is the newest seen.
func (s *RedisStore) SaveResult(ctx context.Context, result *domain.EnsembleResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	key := resultKeyOf(result.PlayerID, result.ContestID, result.Generation)
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return domain.NewTransientError("redis.set_result", err)
	}
	if err := advanceCurrent.Run(ctx, s.client,
		[]string{currentKeyOf(result.PlayerID, result.ContestID)},
		result.Generation).Err(); err != nil {
		return domain.NewTransientError("redis.advance_current", err)
	}
	return nil
}

// CurrentResult returns the result at the current generation.
func (s *RedisStore) CurrentResult(ctx context.Context, playerID, contestID string) (*domain.EnsembleResult, error) {
	gen, err := s.client.Get(ctx, currentKeyOf(playerID, contestID)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, domain.NewTransientError("redis.get_current", err)
	}

	payload, err := s.client.Get(ctx, resultKeyOf(playerID, contestID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, domain.NewTransientError("redis.get_result", err)
	}

	var result domain.EnsembleResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

// CreateBatch persists the batch's static fields; status and the
// completion counter live under their own keys so they can be mutated
// without read-modify-write on the record.
func (s *RedisStore) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, "batch:"+batch.ID, payload, 0)
	pipe.Set(ctx, "batch:"+batch.ID+":status", string(batch.Status), 0)
	pipe.Set(ctx, "batch:"+batch.ID+":completed", batch.CompletedCount, 0)
	pipe.SAdd(ctx, "batches:open", batch.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.NewTransientError("redis.create_batch", err)
	}
	return nil
}

// ListOpen returns every batch in the open index that has not reached
// a terminal state.
func (s *RedisStore) ListOpen(ctx context.Context) ([]*domain.Batch, error) {
	ids, err := s.client.SMembers(ctx, "batches:open").Result()
	if err != nil {
		return nil, domain.NewTransientError("redis.list_open", err)
	}
	open := make([]*domain.Batch, 0, len(ids))
	for _, id := range ids {
		batch, err := s.GetBatch(ctx, id)
		if errors.Is(err, domain.ErrBatchNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if batch.Status.Terminal() {
			continue
		}
		open = append(open, batch)
	}
	return open, nil
}

// GetBatch composes the batch record from its static fields, live
// status, and live counter.
func (s *RedisStore) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	payload, err := s.client.Get(ctx, "batch:"+batchID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrBatchNotFound
	}
	if err != nil {
		return nil, domain.NewTransientError("redis.get_batch", err)
	}

	var batch domain.Batch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, fmt.Errorf("unmarshal batch: %w", err)
	}

	status, err := s.client.Get(ctx, "batch:"+batchID+":status").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, domain.NewTransientError("redis.get_status", err)
	}
	if status != "" {
		batch.Status = domain.BatchStatus(status)
	}

	completed, err := s.client.Get(ctx, "batch:"+batchID+":completed").Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, domain.NewTransientError("redis.get_completed", err)
	}
	batch.CompletedCount = completed

	return &batch, nil
}

// SetStatus updates the batch's status key, dropping the batch from
// the open index once the status is terminal.
func (s *RedisStore) SetStatus(ctx context.Context, batchID string, status domain.BatchStatus) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, "batch:"+batchID+":status", string(status), 0)
	if status.Terminal() {
		pipe.SRem(ctx, "batches:open", batchID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.NewTransientError("redis.set_status", err)
	}
	return nil
}

// RecordCompletion runs the completion script: record write, player
// index, and counter advance happen server-side in one step.
func (s *RedisStore) RecordCompletion(ctx context.Context, rec *domain.CompletionRecord) (int, bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, false, fmt.Errorf("marshal completion: %w", err)
	}
	keys := []string{
		fmt.Sprintf("completion:%s:%s", rec.BatchID, rec.PlayerID),
		"batch:" + rec.BatchID + ":players",
		"batch:" + rec.BatchID + ":completed",
	}
	reply, err := recordCompletion.Run(ctx, s.client, keys, payload, rec.PlayerID).Slice()
	if err != nil {
		return 0, false, domain.NewTransientError("redis.record_completion", err)
	}
	if len(reply) != 2 {
		return 0, false, fmt.Errorf("record completion: unexpected reply %v", reply)
	}
	created, _ := reply[0].(int64)
	count, _ := reply[1].(int64)
	return int(count), created == 1, nil
}

// GetCompletion returns the record for a (batch, player) pair, or nil.
func (s *RedisStore) GetCompletion(ctx context.Context, batchID, playerID string) (*domain.CompletionRecord, error) {
	key := fmt.Sprintf("completion:%s:%s", batchID, playerID)
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewTransientError("redis.get_completion", err)
	}
	var rec domain.CompletionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal completion: %w", err)
	}
	return &rec, nil
}

// CompletedPlayers lists the players holding completion records.
func (s *RedisStore) CompletedPlayers(ctx context.Context, batchID string) ([]string, error) {
	players, err := s.client.SMembers(ctx, "batch:"+batchID+":players").Result()
	if err != nil {
		return nil, domain.NewTransientError("redis.completed_players", err)
	}
	return players, nil
}

// Targets returns the target list recorded for a batch.
func (s *RedisStore) Targets(ctx context.Context, batchID string) ([]domain.SlateEntry, error) {
	payload, err := s.client.Get(ctx, "batch:"+batchID+":targets").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewTransientError("redis.get_targets", err)
	}
	var targets []domain.SlateEntry
	if err := json.Unmarshal(payload, &targets); err != nil {
		return nil, fmt.Errorf("unmarshal targets: %w", err)
	}
	return targets, nil
}

// SetTargets records the batch's target list.
func (s *RedisStore) SetTargets(ctx context.Context, batchID string, targets []domain.SlateEntry) error {
	payload, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	if err := s.client.Set(ctx, "batch:"+batchID+":targets", payload, 0).Err(); err != nil {
		return domain.NewTransientError("redis.set_targets", err)
	}
	return nil
}

// NextGeneration allocates the next generation for a contest date
// with INCR.
func (s *RedisStore) NextGeneration(ctx context.Context, contestDate string) (int64, error) {
	gen, err := s.client.Incr(ctx, "generation:"+contestDate).Result()
	if err != nil {
		return 0, domain.NewTransientError("redis.next_generation", err)
	}
	return gen, nil
}

// Claim records an idempotency key with SETNX and the retention as
// TTL; Redis garbage-collects expired keys on its own.
func (s *RedisStore) Claim(ctx context.Context, key string, retention time.Duration) (bool, error) {
	first, err := s.client.SetNX(ctx, "idem:"+key, 1, retention).Result()
	if err != nil {
		return false, domain.NewTransientError("redis.claim", err)
	}
	return first, nil
}

// Snapshot returns the active weight snapshot, defaulting to an equal
// split before the first publish.
func (s *RedisStore) Snapshot(ctx context.Context) (*domain.WeightSnapshot, error) {
	payload, err := s.client.Get(ctx, "weights:active").Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DefaultWeightSnapshot(), nil
	}
	if err != nil {
		return nil, domain.NewTransientError("redis.get_weights", err)
	}
	var snap domain.WeightSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal weights: %w", err)
	}
	return &snap, nil
}

// Publish atomically replaces the active snapshot.
func (s *RedisStore) Publish(ctx context.Context, snap *domain.WeightSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	if err := s.client.Set(ctx, "weights:active", payload, 0).Err(); err != nil {
		return domain.NewTransientError("redis.publish_weights", err)
	}
	return nil
}
