package ids

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps every backend failure surfaced by this package.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrCounterExhausted is returned once a counter passes the 32-bit range.
	ErrCounterExhausted = errors.New("identifier counter exhausted")
	// ErrHashedIDInvalid is returned when a digest cannot be parsed as an
	// identifier. It indicates a broken hash function, never bad user input.
	ErrHashedIDInvalid = errors.New("hashed identifier is invalid")
)

// HashFunc computes hash(value, salt). It must be deterministic.
type HashFunc func(ctx context.Context, value []byte, salt string) (string, error)

// SaltFunc generates a fresh random salt.
type SaltFunc func() (string, error)

// Generator allocates identifiers from Redis counters and turns them into
// opaque values with a salt that is created once and shared through Redis.
type Generator struct {
	redis   redis.UniversalClient
	hash    HashFunc
	newSalt SaltFunc
}

// NewGenerator creates a [Generator]. hash may be nil when only raw
// counters are needed.
func NewGenerator(redis redis.UniversalClient, hash HashFunc, newSalt SaltFunc) *Generator {
	return &Generator{
		redis:   redis,
		hash:    hash,
		newSalt: newSalt,
	}
}

// Next atomically increments counterKey and returns the new value. The
// first call on a fresh key returns 1.
func (g *Generator) Next(ctx context.Context, counterKey string) (uint32, error) {
	n, err := g.redis.Incr(ctx, counterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n <= 0 || n > math.MaxUint32 {
		return 0, ErrCounterExhausted
	}
	return uint32(n), nil
}

// Salt returns the salt stored at saltKey, creating it when absent.
//
// Creation uses SETNX and the value is always read back afterwards, so every
// caller racing on a fresh key observes the winner's salt.
func (g *Generator) Salt(ctx context.Context, saltKey string) (string, error) {
	salt, err := g.redis.Get(ctx, saltKey).Result()
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if g.newSalt == nil {
		return "", errors.New("salt generator not configured")
	}
	candidate, err := g.newSalt()
	if err != nil {
		return "", err
	}
	if err := g.redis.SetNX(ctx, saltKey, candidate, 0).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	salt, err = g.redis.Get(ctx, saltKey).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return salt, nil
}

// NextID increments counterKey and returns hash(decimal(counter), salt).
func (g *Generator) NextID(ctx context.Context, counterKey, saltKey string) (string, error) {
	if g.hash == nil {
		return "", errors.New("hash function not configured")
	}

	n, err := g.Next(ctx, counterKey)
	if err != nil {
		return "", err
	}
	salt, err := g.Salt(ctx, saltKey)
	if err != nil {
		return "", err
	}

	return g.hash(ctx, []byte(strconv.FormatUint(uint64(n), 10)), salt)
}
