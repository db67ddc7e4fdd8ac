package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrPoolUnavailable is returned when a hashing slot cannot be acquired
// before the caller's context is done.
var ErrPoolUnavailable = errors.New("hash pool unavailable")

// Pool bounds the number of concurrent Argon2 computations so memory-hard
// hashing cannot starve request goroutines of CPU and memory.
type Pool struct {
	hasher  *Hasher
	slots   *semaphore.Weighted
	observe func(time.Duration)
}

// NewPool wraps hasher with at most maxConcurrent simultaneous hashes.
// maxConcurrent <= 0 selects runtime.GOMAXPROCS(0).
func NewPool(hasher *Hasher, maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		hasher: hasher,
		slots:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// OnHash registers a callback receiving the wall time of every hash,
// including time spent waiting for a slot.
func (p *Pool) OnHash(fn func(time.Duration)) {
	p.observe = fn
}

// Hash runs [Hasher.Hash] inside a pool slot.
func (p *Pool) Hash(ctx context.Context, value []byte, salt string) (string, error) {
	start := time.Now()
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
	}
	defer p.slots.Release(1)

	digest, err := p.hasher.Hash(value, salt)
	if p.observe != nil {
		p.observe(time.Since(start))
	}
	return digest, err
}

// Verify runs [Hasher.Verify] inside a pool slot.
func (p *Pool) Verify(ctx context.Context, value []byte, salt, encoded string) (bool, error) {
	start := time.Now()
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
	}
	defer p.slots.Release(1)

	ok, err := p.hasher.Verify(value, salt, encoded)
	if p.observe != nil {
		p.observe(time.Since(start))
	}
	return ok, err
}
