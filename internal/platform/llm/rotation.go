package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"
)

// Rotation hands out the next credential index for a pool of size n.
type Rotation interface {
	Next(ctx context.Context, n int) (int, error)
}

// NextIndex is the round-robin step: (last+1) mod n.
func NextIndex(n, last int) int {
	if n <= 0 {
		return 0
	}
	if last < 0 {
		last = -1
	}
	return (last + 1) % n
}

// AtomicRotation is a process-local counter advanced by compare-and-swap.
type AtomicRotation struct {
	last atomic.Int64
}

func NewAtomicRotation() *AtomicRotation {
	r := &AtomicRotation{}
	r.last.Store(-1)
	return r
}

func (r *AtomicRotation) Next(_ context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("empty credential pool")
	}
	for {
		last := r.last.Load()
		next := int64(NextIndex(n, int(last)))
		if r.last.CompareAndSwap(last, next) {
			return int(next), nil
		}
	}
}

// RedisRotation shares the counter across replicas through INCR.
type RedisRotation struct {
	rdb *goredis.Client
	key string
}

func NewRedisRotation(rdb *goredis.Client, key string) *RedisRotation {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "proofstake:llm:key_rotation"
	}
	return &RedisRotation{rdb: rdb, key: key}
}

func (r *RedisRotation) Next(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("empty credential pool")
	}
	if r == nil || r.rdb == nil {
		return 0, fmt.Errorf("redis rotation not initialized")
	}
	v, err := r.rdb.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", r.key, err)
	}
	return int((v - 1) % int64(n)), nil
}

// fallbackRotation prefers primary and falls back to the local counter when it errors.
type fallbackRotation struct {
	primary Rotation
	local   *AtomicRotation
}

func (f fallbackRotation) Next(ctx context.Context, n int) (int, error) {
	if f.primary != nil {
		if idx, err := f.primary.Next(ctx, n); err == nil {
			return idx, nil
		}
	}
	return f.local.Next(ctx, n)
}
