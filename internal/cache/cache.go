// Package cache holds short-lived copies of per-step population counts so
// repeated dashboard reads do not rerun the windowed aggregation.
//
// Entries are versioned by a per-journey generation counter. Invalidate bumps
// the counter instead of deleting the entry, and readers fetch the generation
// before running the aggregation and store the result under that generation.
// A result computed before an invalidation therefore lands under a generation
// nobody reads anymore. The TTL only bounds how long such orphans live.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is used when a RedisStatsCache is created with a non-positive TTL.
const DefaultTTL = 30 * time.Second

const keyPrefix = "journeys:stats:"

// StatsCache stores computed step statistics per journey and generation.
type StatsCache interface {
	// Generation returns the current generation of a journey's stats.
	Generation(ctx context.Context, journeyID int64) (int64, error)
	// Get returns the stats cached for gen and true, or nil and false on a miss.
	Get(ctx context.Context, journeyID, gen int64) (model.StepStats, bool, error)
	Set(ctx context.Context, journeyID, gen int64, stats model.StepStats) error
	// Invalidate advances the generation so earlier entries are never served.
	Invalidate(ctx context.Context, journeyID int64) error
	Close() error
}

// Key returns the Redis key holding the stats of a journey at gen.
func Key(journeyID, gen int64) string {
	return keyPrefix + strconv.FormatInt(journeyID, 10) + ":" + strconv.FormatInt(gen, 10)
}

// GenerationKey returns the Redis key of a journey's generation counter.
func GenerationKey(journeyID int64) string {
	return keyPrefix + strconv.FormatInt(journeyID, 10) + ":gen"
}

// RedisStatsCache keeps JSON-encoded stats in Redis with a TTL.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache connects to the Redis server at url (redis:// or
// rediss://) and verifies the connection with a PING.
func NewRedisStatsCache(ctx context.Context, url string, ttl time.Duration) (*RedisStatsCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStatsCacheWithClient(client, ttl), nil
}

// NewRedisStatsCacheWithClient wraps an existing client.
func NewRedisStatsCacheWithClient(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStatsCache{client: client, ttl: ttl}
}

func (c *RedisStatsCache) Generation(ctx context.Context, journeyID int64) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey(journeyID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting stats generation for journey %d: %w", journeyID, err)
	}
	return gen, nil
}

func (c *RedisStatsCache) Get(ctx context.Context, journeyID, gen int64) (model.StepStats, bool, error) {
	data, err := c.client.Get(ctx, Key(journeyID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting stats for journey %d: %w", journeyID, err)
	}
	var stats model.StepStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false, fmt.Errorf("decoding stats for journey %d: %w", journeyID, err)
	}
	return stats, true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, journeyID, gen int64, stats model.StepStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	if err := c.client.Set(ctx, Key(journeyID, gen), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("setting stats for journey %d: %w", journeyID, err)
	}
	return nil
}

// Invalidate bumps the generation counter. The counter itself never expires
// so a generation is never reused.
func (c *RedisStatsCache) Invalidate(ctx context.Context, journeyID int64) error {
	if err := c.client.Incr(ctx, GenerationKey(journeyID)).Err(); err != nil {
		return fmt.Errorf("invalidating stats for journey %d: %w", journeyID, err)
	}
	return nil
}

func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}

// NoopStatsCache never holds anything (used when Redis is not configured).
type NoopStatsCache struct{}

func (NoopStatsCache) Generation(context.Context, int64) (int64, error) { return 0, nil }

func (NoopStatsCache) Get(context.Context, int64, int64) (model.StepStats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) Set(context.Context, int64, int64, model.StepStats) error { return nil }

func (NoopStatsCache) Invalidate(context.Context, int64) error { return nil }

func (NoopStatsCache) Close() error { return nil }
