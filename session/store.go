package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a token does not resolve to an account.
var ErrSessionNotFound = errors.New("session not found")

// ErrBindingLost is returned by [Store.StoreBound] when the guard field no
// longer holds the token.
var ErrBindingLost = errors.New("session binding lost")

// ErrRedisUnavailable wraps every backend failure surfaced by the [Store].
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	tokenPrefix = "session:"
	indexPrefix = "sessions:"
)

const revokeScript = `
local account_id = redis.call("GET", KEYS[1])
if not account_id then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. account_id, ARGV[2])
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// KEYS[1] is the account's token set. ARGV[1] is the token key prefix,
// ARGV[2] the account id, ARGV[3..] extra tokens known to belong to the account.
const revokeAllScript = `
local removed = 0
local tokens = redis.call("SMEMBERS", KEYS[1])
for _, token in ipairs(tokens) do
  removed = removed + redis.call("DEL", ARGV[1] .. token)
end
for i = 3, #ARGV do
  local key = ARGV[1] .. ARGV[i]
  if redis.call("GET", key) == ARGV[2] then
    removed = removed + redis.call("DEL", key)
  end
end
redis.call("DEL", KEYS[1])
return removed
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// KEYS[1] is the token key, KEYS[2] the account's token set, KEYS[3] the
// guard hash. ARGV[1] is the account id, ARGV[2] the token, ARGV[3] the guard
// field and ARGV[4] the ttl in milliseconds, 0 for none.
const storeBoundScript = `
if redis.call("HGET", KEYS[3], ARGV[3]) ~= ARGV[2] then
  return 0
end
local expires = tonumber(ARGV[4]) > 0
if expires then
  redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[4])
else
  redis.call("SET", KEYS[1], ARGV[1])
end
redis.call("SADD", KEYS[2], ARGV[2])
if expires then
  redis.call("PEXPIRE", KEYS[2], ARGV[4])
end
return 1
`

var storeBoundLua = redis.NewScript(storeBoundScript)

// Guard names the hash field that must hold a token for [Store.StoreBound]
// to write it.
type Guard struct {
	Key   string
	Field string
}

// Store maps opaque session tokens to account ids in Redis and keeps a
// per-account token set so every session of an account can be revoked.
//
// Keys:
//
//	session:<token>        string, account id
//	sessions:<account_id>  set of tokens
type Store struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewStore creates a session [Store]. ttl <= 0 stores sessions without expiry.
func NewStore(redis redis.UniversalClient, ttl time.Duration) *Store {
	if ttl < 0 {
		ttl = 0
	}
	return &Store{
		redis: redis,
		ttl:   ttl,
	}
}

func (s *Store) key(token string) string {
	return tokenPrefix + token
}

func (s *Store) accountKey(accountID string) string {
	return indexPrefix + accountID
}

// Store upserts the token → account mapping and records the token in the
// account's index.
//
//	Performance: 1 MULTI/EXEC (SET + SADD [+ EXPIRE]).
func (s *Store) Store(ctx context.Context, token, accountID string) error {
	if !ValidToken(token) {
		return ErrTokenMalformed
	}

	accountKey := s.accountKey(accountID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(token), accountID, s.ttl)
		pipe.SAdd(ctx, accountKey, token)
		if s.ttl > 0 {
			pipe.Expire(ctx, accountKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// StoreBound is [Store.Store] conditioned on guard: the mapping is written
// only while HGET guard.Key guard.Field equals token, in the same script.
// A missing hash or a different value yields [ErrBindingLost] and writes
// nothing.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) StoreBound(ctx context.Context, token, accountID string, guard Guard) error {
	if !ValidToken(token) {
		return ErrTokenMalformed
	}

	keys := []string{s.key(token), s.accountKey(accountID), guard.Key}
	n, err := storeBoundLua.Run(ctx, s.redis, keys, accountID, token, guard.Field, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 0 {
		return ErrBindingLost
	}

	return nil
}

// Resolve returns the account id bound to token, or [ErrSessionNotFound].
//
//	Performance: 1 Redis GET.
func (s *Store) Resolve(ctx context.Context, token string) (string, error) {
	if !ValidToken(token) {
		return "", ErrSessionNotFound
	}

	accountID, err := s.redis.Get(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return accountID, nil
}

// Revoke removes token and its index entry. Revoking an unknown token is
// not an error.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if !ValidToken(token) {
		return nil
	}

	err := revokeLua.Run(ctx, s.redis, []string{s.key(token)}, indexPrefix, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// RevokeAll removes every indexed session of the account plus any extra
// tokens that still map to it (for instance the token embedded in the
// account record), and returns how many session keys were deleted.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) RevokeAll(ctx context.Context, accountID string, extraTokens ...string) (int, error) {
	args := make([]interface{}, 0, len(extraTokens)+2)
	args = append(args, tokenPrefix, accountID)
	for _, token := range extraTokens {
		if ValidToken(token) {
			args = append(args, token)
		}
	}

	removed, err := revokeAllLua.Run(ctx, s.redis, []string{s.accountKey(accountID)}, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(removed), nil
}

// Count returns the number of tokens indexed for the account.
func (s *Store) Count(ctx context.Context, accountID string) (int, error) {
	n, err := s.redis.SCard(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
