package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis failure surfaced by the ledger.
// Callers must fail closed: a token whose revocation status cannot be
// determined is treated as unauthorized.
var ErrRedisUnavailable = errors.New("redis unavailable")

const keyPrefix = "blacklisted_token:"

// Ledger tracks blacklisted token IDs in Redis. Every entry carries a TTL
// bounded by the maximum remaining lifetime of the token kind being
// revoked, so the ledger never grows past the credential horizon.
type Ledger struct {
	redis redis.UniversalClient
}

// NewLedger creates a [Ledger] backed by the given Redis client.
func NewLedger(client redis.UniversalClient) *Ledger {
	return &Ledger{redis: client}
}

func key(tokenID string) string {
	return keyPrefix + tokenID
}

// Blacklist writes a revocation marker for tokenID. A non-positive TTL is
// rejected rather than written unbounded.
func (l *Ledger) Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return errors.New("empty token id")
	}
	if ttl <= 0 {
		return errors.New("blacklist ttl must be positive")
	}

	if err := l.redis.Set(ctx, key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether tokenID has a live revocation marker.
// It is a single EXISTS and is invoked on every token verification.
func (l *Ledger) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.redis.Exists(ctx, key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
