// File: internal/ratelimit/counter.go
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DailyCounter persists the number of submissions made on a given date.
type DailyCounter interface {
	Load(ctx context.Context, date string) (int, error)
	Increment(ctx context.Context, date string) (int, error)
}

// MemoryCounter keeps counts for the life of the process.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

func (m *MemoryCounter) Load(_ context.Context, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[date], nil
}

func (m *MemoryCounter) Increment(_ context.Context, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[date]++
	return m.counts[date], nil
}

// RedisCounter stores one key per day so the ceiling survives restarts.
type RedisCounter struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// CounterTTL keeps yesterday's key around long enough to inspect it.
const CounterTTL = 48 * time.Hour

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client, prefix: "easyapply:applies:", ttl: CounterTTL}
}

func (r *RedisCounter) key(date string) string { return r.prefix + date }

func (r *RedisCounter) Load(ctx context.Context, date string) (int, error) {
	n, err := r.client.Get(ctx, r.key(date)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", r.key(date), err)
	}
	return n, nil
}

func (r *RedisCounter) Increment(ctx context.Context, date string) (int, error) {
	key := r.key(date)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return int(n), fmt.Errorf("redis expire %s: %w", key, err)
	}
	return int(n), nil
}

// NewRedisClient parses addr as a redis:// URL when it has a scheme, and as
// host:port otherwise, then verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	var opts *redis.Options
	if parsed, err := redis.ParseURL(addr); err == nil {
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr, Password: password, DB: db}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
