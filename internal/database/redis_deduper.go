package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DedupKeyPrefix is the prefix for dedup marker keys
// Format: listing:dedup:{symbol}:{patternType}
const DedupKeyPrefix = "listing:dedup"

// RedisDeduper implements first-seen checks with Redis SET NX, falling back
// to an in-memory map when Redis is unavailable. Satisfies bridge.Deduper.
type RedisDeduper struct {
	client         *redis.Client
	logger         zerolog.Logger
	mu             sync.Mutex
	seen           map[string]time.Time
	redisAvailable atomic.Bool
	nowFn          func() time.Time
}

// NewRedisDeduper creates a deduper. If client is nil it operates in
// memory-only mode.
func NewRedisDeduper(client *redis.Client, logger zerolog.Logger) *RedisDeduper {
	d := &RedisDeduper{
		client: client,
		logger: logger.With().Str("component", "RedisDeduper").Logger(),
		seen:   make(map[string]time.Time),
		nowFn:  time.Now,
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			d.logger.Warn().Err(err).Msg("Redis unavailable at startup, using in-memory dedup")
			d.redisAvailable.Store(false)
		} else {
			d.redisAvailable.Store(true)
		}
	} else {
		d.redisAvailable.Store(false)
	}

	return d
}

// FirstSeen reports whether key is new within the ttl window and marks it
// seen. The in-memory map is always updated so a Redis outage mid-run does
// not reset the window.
func (d *RedisDeduper) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", DedupKeyPrefix, key)

	if d.client != nil && d.redisAvailable.Load() {
		ok, err := d.client.SetNX(ctx, redisKey, "1", ttl).Result()
		if err != nil {
			d.redisAvailable.Store(false)
			d.logger.Warn().Err(err).Msg("Redis dedup failed, falling back to in-memory")
		} else {
			d.markLocal(key, ttl)
			return ok, nil
		}
	}

	return d.firstSeenLocal(key, ttl), nil
}

func (d *RedisDeduper) markLocal(key string, ttl time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[key] = d.nowFn().Add(ttl)
}

func (d *RedisDeduper) firstSeenLocal(key string, ttl time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.nowFn()
	if expires, ok := d.seen[key]; ok && now.Before(expires) {
		return false
	}
	// opportunistic cleanup keeps the fallback map bounded
	for k, expires := range d.seen {
		if now.After(expires) {
			delete(d.seen, k)
		}
	}
	d.seen[key] = now.Add(ttl)
	return true
}
