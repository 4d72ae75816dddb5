// Package trends computes aggregate activity statistics behind a
// time-boxed cache. The cache is advisory: staleness only costs a
// recompute, never a wrong answer.
package trends

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/metrics"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/store"
)

const redisKey = "trends:snapshot"

// Snapshot is one computed set of aggregates.
type Snapshot struct {
	Agents           int64            `json:"agents"`
	FeedbackByStatus map[string]int64 `json:"feedbackByStatus"`
	Messages         int64            `json:"messages"`
	LastActivity     *time.Time       `json:"lastActivity,omitempty"`
	ComputedAt       time.Time        `json:"computedAt"`
}

// ComputeFunc produces a fresh snapshot.
type ComputeFunc func(ctx context.Context) (*Snapshot, error)

// FromStore builds the standard compute function over the store's
// aggregate queries.
func FromStore(db store.DataStore) ComputeFunc {
	return func(ctx context.Context) (*Snapshot, error) {
		agents, err := db.CountAgents(ctx)
		if err != nil {
			return nil, err
		}
		byStatus, err := db.CountFeedbackByStatus(ctx)
		if err != nil {
			return nil, err
		}
		messages, err := db.CountMessages(ctx)
		if err != nil {
			return nil, err
		}
		last, err := db.LastActivity(ctx)
		if err != nil {
			return nil, err
		}
		return &Snapshot{
			Agents:           agents,
			FeedbackByStatus: byStatus,
			Messages:         messages,
			LastActivity:     last,
			ComputedAt:       time.Now(),
		}, nil
	}
}

// Cache serves snapshots no older than the TTL, with an explicit
// force-refresh override. This is the only shared mutable state in
// the process. An optional Redis client shares snapshots across
// instances; Redis failures fall back to local compute.
type Cache struct {
	ttl     time.Duration
	compute ComputeFunc
	redis   *redis.Client
	logger  zerolog.Logger

	mu     sync.Mutex
	cached *Snapshot
	now    func() time.Time
}

func NewCache(ttl time.Duration, compute ComputeFunc, redisClient *redis.Client, logger zerolog.Logger) *Cache {
	return &Cache{
		ttl:     ttl,
		compute: compute,
		redis:   redisClient,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns a snapshot, recomputing when the cached one is older
// than the TTL or force is set. The second return reports whether the
// snapshot came from cache.
func (c *Cache) Get(ctx context.Context, force bool) (*Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if force {
		metrics.TrendCacheHits.WithLabelValues("forced").Inc()
		return c.refresh(ctx)
	}

	if c.cached != nil && c.now().Sub(c.cached.ComputedAt) <= c.ttl {
		metrics.TrendCacheHits.WithLabelValues("hit").Inc()
		return c.cached, true, nil
	}

	if snap := c.fromRedis(ctx); snap != nil {
		c.cached = snap
		metrics.TrendCacheHits.WithLabelValues("hit").Inc()
		return snap, true, nil
	}

	metrics.TrendCacheHits.WithLabelValues("miss").Inc()
	return c.refresh(ctx)
}

func (c *Cache) refresh(ctx context.Context) (*Snapshot, bool, error) {
	snap, err := c.compute(ctx)
	if err != nil {
		return nil, false, err
	}
	c.cached = snap
	c.toRedis(ctx, snap)
	return snap, false, nil
}

func (c *Cache) fromRedis(ctx context.Context) *Snapshot {
	if c.redis == nil {
		return nil
	}
	raw, err := c.redis.Get(ctx, redisKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Msg("trend snapshot redis read failed")
		}
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil
	}
	if c.now().Sub(snap.ComputedAt) > c.ttl {
		return nil
	}
	return &snap
}

func (c *Cache) toRedis(ctx context.Context, snap *Snapshot) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKey, raw, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Msg("trend snapshot redis write failed")
	}
}
