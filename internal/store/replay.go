package store

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReplay tracks seen challenge nonces in Redis so replay
// detection survives restarts and is shared across instances.
type RedisReplay struct {
	client *redis.Client
}

// NewRedisReplay creates a Redis-backed replay store and verifies the
// connection.
func NewRedisReplay(ctx context.Context, redisURL string) (*RedisReplay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisReplay{client: client}, nil
}

// Seen records the key and reports whether it was already present.
// SetNX makes the check-and-record atomic.
func (r *RedisReplay) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := r.client.SetNX(ctx, "replay:"+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Close closes the Redis connection.
func (r *RedisReplay) Close() error {
	return r.client.Close()
}

// MemoryReplay is an in-process replay store used when no Redis is
// configured. Expired entries are pruned on each call, which is
// enough at single-instance scale.
type MemoryReplay struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryReplay() *MemoryReplay {
	return &MemoryReplay{seen: make(map[string]time.Time)}
}

// Seen records the key and reports whether it was already present and
// unexpired.
func (m *MemoryReplay) Seen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, expiry := range m.seen {
		if now.After(expiry) {
			delete(m.seen, k)
		}
	}
	if expiry, ok := m.seen[key]; ok && now.Before(expiry) {
		return true, nil
	}
	m.seen[key] = now.Add(ttl)
	return false, nil
}
