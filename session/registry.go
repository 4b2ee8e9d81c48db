package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps every Redis failure surfaced by the registry.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrCapacityExceeded is returned when a user already holds the maximum
	// number of active sessions.
	ErrCapacityExceeded = errors.New("session capacity exceeded")
	// ErrNotFound is returned when the target session does not exist.
	ErrNotFound = errors.New("session not found")
)

const (
	sessionHashPrefix  = "user_sessions:"
	refreshTokenPrefix = "refresh_token:"
)

// registerScript performs the capacity check and the insert as a single
// server-evaluated step, closing the check-then-act race that two
// independent atomic calls would leave open. Re-registering an existing
// token ID refreshes the record without consuming capacity.
const registerScript = `
local count = redis.call("HLEN", KEYS[1])
local exists = redis.call("HEXISTS", KEYS[1], ARGV[1])
if exists == 0 and count >= tonumber(ARGV[4]) then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
redis.call("SET", KEYS[2], ARGV[3], "PX", ARGV[5])
return 1
`

var registerLua = redis.NewScript(registerScript)

// revokeScript removes one session field and its token metadata key,
// reporting whether the field existed so callers can distinguish a revoke
// from a no-op repeat.
const revokeScript = `
local removed = redis.call("HDEL", KEYS[1], ARGV[1])
redis.call("DEL", KEYS[2])
return removed
`

var revokeLua = redis.NewScript(revokeScript)

// Blacklister records revoked token IDs. Satisfied by revocation.Ledger.
type Blacklister interface {
	Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error
}

// Config holds registry tuning parameters.
type Config struct {
	// MaxSessionsPerUser caps concurrent sessions per user.
	MaxSessionsPerUser int
	// RefreshTTL bounds every session and token-metadata key. No registry
	// write outlives the refresh credential it protects.
	RefreshTTL time.Duration
}

// Registry is the Redis-backed per-user session set. Revocations are
// forwarded to the injected [Blacklister] so that a removed session's
// token ID can never be replayed.
type Registry struct {
	redis  redis.UniversalClient
	ledger Blacklister
	config Config
}

// NewRegistry creates a session [Registry] backed by the given Redis
// client and revocation ledger.
func NewRegistry(client redis.UniversalClient, ledger Blacklister, cfg Config) *Registry {
	return &Registry{
		redis:  client,
		ledger: ledger,
		config: cfg,
	}
}

func hashKey(userID string) string {
	return sessionHashPrefix + userID
}

func metadataKey(userID, tokenID string) string {
	return refreshTokenPrefix + userID + ":" + tokenID
}

// Register stores a session keyed by its token ID under the user's hash,
// together with the refresh-token metadata record, both with TTL equal to
// the refresh lifetime. Returns [ErrCapacityExceeded] when the user is at
// the session cap.
func (r *Registry) Register(ctx context.Context, sess *Session, meta *TokenMetadata) error {
	if sess == nil || sess.UserID == "" || sess.TokenID == "" {
		return errors.New("session requires user id and token id")
	}

	sessData, err := encodeSession(sess)
	if err != nil {
		return err
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	ok, err := registerLua.Run(
		ctx,
		r.redis,
		[]string{hashKey(sess.UserID), metadataKey(sess.UserID, sess.TokenID)},
		sess.TokenID,
		sessData,
		metaData,
		r.config.MaxSessionsPerUser,
		r.config.RefreshTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ok == 0 {
		return ErrCapacityExceeded
	}

	return nil
}

// List returns the user's active sessions. Order is not guaranteed.
func (r *Registry) List(ctx context.Context, userID string) ([]*Session, error) {
	fields, err := r.redis.HGetAll(ctx, hashKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(fields))
	for tokenID, raw := range fields {
		sess, decErr := decodeSession([]byte(raw))
		if decErr != nil {
			return nil, decErr
		}
		sess.TokenID = tokenID
		sessions = append(sessions, sess)
	}

	return sessions, nil
}

// Count returns the number of active sessions for the user.
func (r *Registry) Count(ctx context.Context, userID string) (int, error) {
	n, err := r.redis.HLen(ctx, hashKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Get returns a single session by token ID, or [ErrNotFound].
func (r *Registry) Get(ctx context.Context, userID, tokenID string) (*Session, error) {
	raw, err := r.redis.HGet(ctx, hashKey(userID), tokenID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := decodeSession(raw)
	if err != nil {
		return nil, err
	}
	sess.TokenID = tokenID
	return sess, nil
}

// Revoke blacklists the token ID, then removes the session entry and its
// metadata. Idempotent: a second call on an absent token ID returns
// [ErrNotFound] with no state change beyond the no-op blacklist rewrite.
// The blacklist write happens first so a partial failure can only leave a
// revoked-but-listed session, never a live-but-unlisted one.
func (r *Registry) Revoke(ctx context.Context, userID, tokenID string) error {
	if err := r.ledger.Blacklist(ctx, tokenID, r.config.RefreshTTL); err != nil {
		return err
	}

	removed, err := revokeLua.Run(
		ctx,
		r.redis,
		[]string{hashKey(userID), metadataKey(userID, tokenID)},
		tokenID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if removed == 0 {
		return ErrNotFound
	}

	return nil
}

// RevokeAll blacklists every token ID currently registered for the user,
// then deletes the whole per-user collection.
//
// ATOMICITY NOTE: this is a read (HKEYS), a blacklist loop, then a
// pipelined DEL, not one atomic unit. A session registered between the
// read and the delete survives this call; it expires naturally or is
// caught by a follow-up RevokeAll. The blacklist loop runs before the
// deletes so every token ID that was listed is rejected even if the
// deletes fail midway.
func (r *Registry) RevokeAll(ctx context.Context, userID string) error {
	tokenIDs, err := r.redis.HKeys(ctx, hashKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for _, tokenID := range tokenIDs {
		if err := r.ledger.Blacklist(ctx, tokenID, r.config.RefreshTTL); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(tokenIDs)+1)
	keys = append(keys, hashKey(userID))
	for _, tokenID := range tokenIDs {
		keys = append(keys, metadataKey(userID, tokenID))
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (r *Registry) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
