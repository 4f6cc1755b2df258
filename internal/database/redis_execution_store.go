package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"early-listing-bot/internal/executor"
)

// Redis key prefixes for execution state
const (
	// ExecutionKeyPrefix is the prefix for per-phase execution record keys
	// Format: listing:execution:{positionID}:{phase}
	ExecutionKeyPrefix = "listing:execution"

	// SnapshotKeyPrefix is the prefix for executor snapshot keys
	// Format: listing:snapshot:{positionID}
	SnapshotKeyPrefix = "listing:snapshot"

	// ExecutionStateTTL keeps closed-position state around long enough for
	// post-mortems before Redis expires it
	ExecutionStateTTL = 7 * 24 * time.Hour
)

// RedisExecutionStore persists phase execution records and executor
// snapshots in Redis, falling back to an in-memory map when Redis is
// unavailable so the executor never blocks on persistence.
// Implements executor.ExecutionStore.
type RedisExecutionStore struct {
	client         *redis.Client
	logger         zerolog.Logger
	mu             sync.RWMutex
	records        map[string][]executor.PhaseExecutionRecord
	snapshots      map[string]executor.ExecutorSnapshot
	redisAvailable atomic.Bool
}

// NewRedisExecutionStore creates a store. If client is nil the store
// operates in memory-only mode.
func NewRedisExecutionStore(client *redis.Client, logger zerolog.Logger) *RedisExecutionStore {
	store := &RedisExecutionStore{
		client:    client,
		logger:    logger.With().Str("component", "RedisExecutionStore").Logger(),
		records:   make(map[string][]executor.PhaseExecutionRecord),
		snapshots: make(map[string]executor.ExecutorSnapshot),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			store.logger.Warn().Err(err).Msg("Redis unavailable at startup, using in-memory store")
			store.redisAvailable.Store(false)
		} else {
			store.logger.Info().Msg("Redis connected")
			store.redisAvailable.Store(true)
		}
	} else {
		store.logger.Info().Msg("No Redis client provided, using in-memory store only")
		store.redisAvailable.Store(false)
	}

	return store
}

func executionKey(positionID string, phase int) string {
	return fmt.Sprintf("%s:%s:%d", ExecutionKeyPrefix, positionID, phase)
}

func snapshotKey(positionID string) string {
	return fmt.Sprintf("%s:%s", SnapshotKeyPrefix, positionID)
}

// PersistExecution stores one phase execution record.
func (s *RedisExecutionStore) PersistExecution(ctx context.Context, positionID string, record executor.PhaseExecutionRecord) error {
	s.mu.Lock()
	s.records[positionID] = append(s.records[positionID], record)
	s.mu.Unlock()

	if s.client == nil || !s.redisAvailable.Load() {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal execution record: %w", err)
	}
	if err := s.client.Set(ctx, executionKey(positionID, record.Phase), data, ExecutionStateTTL).Err(); err != nil {
		s.redisAvailable.Store(false)
		s.logger.Warn().Err(err).Str("position_id", positionID).Msg("Redis write failed, in-memory copy retained")
		return fmt.Errorf("failed to persist execution record: %w", err)
	}
	return nil
}

// SaveSnapshot stores the full executor snapshot.
func (s *RedisExecutionStore) SaveSnapshot(ctx context.Context, snapshot executor.ExecutorSnapshot) error {
	s.mu.Lock()
	s.snapshots[snapshot.PositionID] = snapshot
	s.mu.Unlock()

	if s.client == nil || !s.redisAvailable.Load() {
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(snapshot.PositionID), data, ExecutionStateTTL).Err(); err != nil {
		s.redisAvailable.Store(false)
		s.logger.Warn().Err(err).Str("position_id", snapshot.PositionID).Msg("Redis write failed, in-memory copy retained")
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves a stored executor snapshot for restart recovery.
// Redis is tried first, then the in-memory fallback.
func (s *RedisExecutionStore) LoadSnapshot(ctx context.Context, positionID string) (executor.ExecutorSnapshot, bool, error) {
	if s.client != nil && s.redisAvailable.Load() {
		data, err := s.client.Get(ctx, snapshotKey(positionID)).Bytes()
		switch {
		case err == redis.Nil:
			// fall through to the in-memory copy
		case err != nil:
			s.redisAvailable.Store(false)
			s.logger.Warn().Err(err).Str("position_id", positionID).Msg("Redis read failed, trying in-memory store")
		default:
			var snapshot executor.ExecutorSnapshot
			if err := json.Unmarshal(data, &snapshot); err != nil {
				return executor.ExecutorSnapshot{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
			}
			return snapshot, true, nil
		}
	}

	s.mu.RLock()
	snapshot, ok := s.snapshots[positionID]
	s.mu.RUnlock()
	return snapshot, ok, nil
}

// Reconnect re-checks Redis availability. Intended to be called
// periodically after a Redis outage.
func (s *RedisExecutionStore) Reconnect(ctx context.Context) bool {
	if s.client == nil {
		return false
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return false
	}
	if s.redisAvailable.CompareAndSwap(false, true) {
		s.logger.Info().Msg("Redis connection restored")
	}
	return true
}
