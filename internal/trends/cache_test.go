package trends

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func countingCompute(calls *int) ComputeFunc {
	return func(_ context.Context) (*Snapshot, error) {
		*calls++
		return &Snapshot{Agents: int64(*calls), ComputedAt: time.Now()}, nil
	}
}

func TestCacheServesWithinTTL(t *testing.T) {
	calls := 0
	c := NewCache(time.Minute, countingCompute(&calls), nil, zerolog.Nop())
	ctx := context.Background()

	first, cached, err := c.Get(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Fatal("first fetch cannot be cached")
	}

	second, cached, err := c.Get(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if !cached {
		t.Fatal("second fetch within TTL must be cached")
	}
	if first.Agents != second.Agents || calls != 1 {
		t.Fatalf("expected one compute, got %d", calls)
	}
}

func TestCacheRecomputesPastTTL(t *testing.T) {
	calls := 0
	c := NewCache(time.Minute, countingCompute(&calls), nil, zerolog.Nop())
	ctx := context.Background()

	if _, _, err := c.Get(ctx, false); err != nil {
		t.Fatal(err)
	}

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, cached, err := c.Get(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Fatal("stale snapshot must be recomputed")
	}
	if calls != 2 {
		t.Fatalf("expected two computes, got %d", calls)
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	calls := 0
	c := NewCache(time.Minute, countingCompute(&calls), nil, zerolog.Nop())
	ctx := context.Background()

	if _, _, err := c.Get(ctx, false); err != nil {
		t.Fatal(err)
	}
	_, cached, err := c.Get(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Fatal("forced fetch must not report cached")
	}
	if calls != 2 {
		t.Fatalf("expected two computes, got %d", calls)
	}
}

func TestComputeErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	c := NewCache(time.Minute, func(_ context.Context) (*Snapshot, error) {
		return nil, boom
	}, nil, zerolog.Nop())

	if _, _, err := c.Get(context.Background(), false); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
}
