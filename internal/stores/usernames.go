package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultUsernameIndexKey is the Redis hash holding lower-cased username →
// account id.
const DefaultUsernameIndexKey = "users"

const removeIfOwnedScript = `
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
  return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`

var removeIfOwnedLua = redis.NewScript(removeIfOwnedScript)

// Normalize returns the index form of a username. Uniqueness is
// case-insensitive; the record keeps the original casing.
func Normalize(username string) string {
	return strings.ToLower(username)
}

// Usernames is the case-insensitive username index. It is the only
// authority on username uniqueness.
type Usernames struct {
	redis redis.UniversalClient
	key   string
}

// NewUsernames creates a [Usernames] index stored in the hash at key.
func NewUsernames(redisClient redis.UniversalClient, key string) *Usernames {
	if key == "" {
		key = DefaultUsernameIndexKey
	}
	return &Usernames{
		redis: redisClient,
		key:   key,
	}
}

// Key returns the Redis key of the index hash.
func (u *Usernames) Key() string {
	return u.key
}

// Exists reports whether username (any casing) is indexed.
func (u *Usernames) Exists(ctx context.Context, username string) (bool, error) {
	ok, err := u.redis.HExists(ctx, u.key, Normalize(username)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}

// Get returns the account id indexed for username, or [ErrUsernameNotFound].
func (u *Usernames) Get(ctx context.Context, username string) (string, error) {
	id, err := u.redis.HGet(ctx, u.key, Normalize(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrUsernameNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return id, nil
}

// Insert indexes username → accountID only if the username is free and
// reports whether this call won.
//
//	Performance: 1 Redis HSETNX.
func (u *Usernames) Insert(ctx context.Context, username, accountID string) (bool, error) {
	won, err := u.redis.HSetNX(ctx, u.key, Normalize(username), accountID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return won, nil
}

// Remove drops username from the index unconditionally.
func (u *Usernames) Remove(ctx context.Context, username string) error {
	if err := u.redis.HDel(ctx, u.key, Normalize(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RemoveIfOwned drops username only while it still maps to accountID.
func (u *Usernames) RemoveIfOwned(ctx context.Context, username, accountID string) (bool, error) {
	n, err := removeIfOwnedLua.Run(ctx, u.redis, []string{u.key}, Normalize(username), accountID).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Count returns the number of indexed usernames.
func (u *Usernames) Count(ctx context.Context) (int64, error) {
	n, err := u.redis.HLen(ctx, u.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}
