package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// ReplayGuard bounds how often an already-applied callback may re-run the
// order update for one payment.
type ReplayGuard interface {
	Allow(ctx context.Context, paymentId uint) bool
}

type RedisReplayGuard struct {
	rdb    *redis.Client
	window time.Duration
	limit  int64
}

func NewRedisReplayGuard(rdb *redis.Client, window time.Duration, limit int) *RedisReplayGuard {
	return &RedisReplayGuard{rdb: rdb, window: window, limit: int64(limit)}
}

// Allow counts replays in a fixed window. Redis errors let the replay through.
func (g *RedisReplayGuard) Allow(ctx context.Context, paymentId uint) bool {
	key := fmt.Sprintf("payment:replay:%d", paymentId)

	n, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Warnw("replay guard unavailable", "payment", paymentId, "error", err)
		return true
	}
	if n == 1 {
		if err := g.rdb.Expire(ctx, key, g.window).Err(); err != nil {
			log.Warnw("replay guard expiry not set", "payment", paymentId, "error", err)
		}
	}
	return n <= g.limit
}

type MemoryReplayGuard struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	entries map[uint]*replayEntry
	now     func() time.Time
}

type replayEntry struct {
	count   int
	resetAt time.Time
}

func NewMemoryReplayGuard(window time.Duration, limit int) *MemoryReplayGuard {
	return &MemoryReplayGuard{
		window:  window,
		limit:   limit,
		entries: make(map[uint]*replayEntry),
		now:     time.Now,
	}
}

func (g *MemoryReplayGuard) Allow(_ context.Context, paymentId uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	e, ok := g.entries[paymentId]
	if !ok || now.After(e.resetAt) {
		e = &replayEntry{resetAt: now.Add(g.window)}
		g.entries[paymentId] = e
	}
	e.count++
	return e.count <= g.limit
}
