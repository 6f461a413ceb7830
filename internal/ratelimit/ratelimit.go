// Package ratelimit throttles repeated actions per key, e.g. one
// verification code per email per minute.
//
// Two implementations share the Limiter interface: Redis, for deployments
// running more than one server process, and Memory, a per-process fallback
// used when no Redis address is configured.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter allows one action per key per window.
type Limiter interface {
	// Allow reports whether the action may proceed now. When it may not,
	// retryAfter is how long until it may.
	Allow(ctx context.Context, key string, window time.Duration) (ok bool, retryAfter time.Duration, err error)
}

// ===== REDIS =====

const keyPrefix = "sanctuary:ratelimit:"

// Redis keeps one key per action with a TTL of window. SET NX makes the
// check-and-reserve atomic across processes.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// DialRedis connects to addr and pings it.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: connecting to redis %s: %w", addr, err)
	}
	return client, nil
}

func (l *Redis) Allow(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	k := keyPrefix + key
	ok, err := l.client.SetNX(ctx, k, 1, window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: reserving %s: %w", key, err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: reading ttl of %s: %w", key, err)
	}
	// -1: no expiry, -2: key vanished between the two calls.
	if ttl < 0 {
		ttl = window
	}
	return false, ttl, nil
}

// ===== MEMORY =====

// pruneThreshold is the number of tracked keys above which idle limiters
// are dropped.
const pruneThreshold = 1024

// Memory holds one token bucket per key, refilling one token per window.
type Memory struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{limiters: make(map[string]*rate.Limiter), now: time.Now}
}

// NewMemoryWithClock is NewMemory with an injectable clock for tests.
func NewMemoryWithClock(now func() time.Time) *Memory {
	m := NewMemory()
	m.now = now
	return m
}

func (l *Memory) Allow(_ context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	if window <= 0 {
		return false, 0, errors.New("ratelimit: window must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.limiters) > pruneThreshold {
		l.prune(now)
	}

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(window), 1)
		l.limiters[key] = lim
	}

	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// prune drops limiters whose bucket has refilled; they hold no state.
func (l *Memory) prune(now time.Time) {
	for k, lim := range l.limiters {
		if lim.TokensAt(now) >= 1 {
			delete(l.limiters, k)
		}
	}
}
