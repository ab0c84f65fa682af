package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
// Keep it config-driven; defaults should be safe and conservative.
type RedisConfig struct {
	Addr string

	// Basic timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pool tuning
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var mutexReleaseScript = redis.NewScript(`
-- KEYS[1] = lock key
-- ARGV[1] = holder token
-- Delete only if we still own the lock.
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisMutex is a small cross-instance mutex used to serialize writers
// per key (e.g., message appends within one conversation).
//
// Safety properties:
// - Acquire is atomic (SET NX PX).
// - TTL prevents leaked locks on process crash.
// - Release is owner-checked via Lua so a late release cannot drop a
//   lock re-acquired by another holder.
type RedisMutex struct {
	rdb *redis.Client

	// TTL bounds how long a crashed holder can block other writers.
	TTL time.Duration
	// RetryInterval is the poll spacing while waiting for the lock.
	RetryInterval time.Duration
	// MaxWait bounds the total time Acquire may block.
	MaxWait time.Duration
}

func NewRedisMutex(rdb *redis.Client) *RedisMutex {
	return &RedisMutex{
		rdb:           rdb,
		TTL:           15 * time.Second,
		RetryInterval: 50 * time.Millisecond,
		MaxWait:       5 * time.Second,
	}
}

// Acquire blocks until the lock for key is held, MaxWait elapses, or ctx
// is done. It returns an opaque holder token to pass to Release.
func (m *RedisMutex) Acquire(ctx context.Context, key string) (string, error) {
	if m.rdb == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return "", fmt.Errorf("key is required")
	}

	token := uuid.NewString()
	deadline := time.Now().Add(m.MaxWait)

	for {
		ok, err := m.rdb.SetNX(ctx, key, token, m.TTL).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("lock %q: wait exceeded", key)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.RetryInterval):
		}
	}
}

// Release drops the lock if the holder token still owns it.
func (m *RedisMutex) Release(ctx context.Context, key, token string) error {
	if m.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" || token == "" {
		return fmt.Errorf("key and token are required")
	}
	return mutexReleaseScript.Run(ctx, m.rdb, []string{key}, token).Err()
}
