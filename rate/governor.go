package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when a key has exhausted its window budget.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrRedisUnavailable wraps Redis failures. The governor fails closed:
	// gated requests are rejected, never silently allowed, during an outage.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const keyPrefix = "rate-limit:"

// Result reports the outcome of a single gate decision. Limit and
// Remaining are populated even when the call itself is over the limit so
// callers can always emit observability headers.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the full window length when the call is rejected,
	// zero otherwise. Each call refreshes the counter TTL, so the
	// effective behavior is closer to a sliding window than a classic
	// fixed window.
	RetryAfter time.Duration
}

// Governor enforces per-key request budgets using Redis counters.
type Governor struct {
	redis redis.UniversalClient
}

// NewGovernor creates a [Governor] backed by the given Redis client.
func NewGovernor(client redis.UniversalClient) *Governor {
	return &Governor{redis: client}
}

func key(prefix, clientKey string) string {
	return keyPrefix + prefix + ":" + clientKey
}

// Gate atomically increments the counter for prefix+clientKey, refreshes
// its TTL to the window length, and compares the post-increment count to
// max. Over-budget calls return a Result with Allowed=false and
// ErrRateLimited; Redis failures return ErrRedisUnavailable.
func (g *Governor) Gate(ctx context.Context, prefix, clientKey string, window time.Duration, max int) (Result, error) {
	if max <= 0 || window <= 0 {
		return Result{}, errors.New("invalid gate parameters")
	}

	k := key(prefix, clientKey)
	count, err := g.redis.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// TTL is refreshed on every hit, not just the first, so a steady
	// over-limit caller keeps pushing its own window forward.
	if err := g.redis.PExpire(ctx, k, window).Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   count <= int64(max),
		Limit:     max,
		Remaining: remaining,
	}
	if !res.Allowed {
		res.RetryAfter = window
		return res, ErrRateLimited
	}

	return res, nil
}
