package ids

import (
	"context"
	"fmt"
	"strconv"
)

const (
	// StrategySequential exposes the raw counter as a decimal string.
	StrategySequential = "sequential"
	// StrategyObfuscated exposes hash(counter, salt) as lowercase hex.
	StrategyObfuscated = "obfuscated"
)

// obfuscatedLength is the hex length of a 32-byte Argon2 key.
const obfuscatedLength = 64

// Strategy produces external account identifiers. A deployment picks one
// strategy; identifiers from different strategies must not be mixed.
type Strategy interface {
	Name() string
	Next(ctx context.Context) (string, error)
	Parse(raw string) (string, error)
}

// Sequential hands out 1, 2, 3, ... rendered in decimal.
type Sequential struct {
	gen        *Generator
	counterKey string
}

// NewSequential returns a [Sequential] strategy over counterKey.
func NewSequential(gen *Generator, counterKey string) *Sequential {
	return &Sequential{gen: gen, counterKey: counterKey}
}

func (s *Sequential) Name() string { return StrategySequential }

func (s *Sequential) Next(ctx context.Context) (string, error) {
	n, err := s.gen.Next(ctx, s.counterKey)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(uint64(n), 10), nil
}

// Parse accepts canonical decimal values in [1, MaxUint32].
func (s *Sequential) Parse(raw string) (string, error) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 || strconv.FormatUint(n, 10) != raw {
		return "", fmt.Errorf("%w: %q", ErrHashedIDInvalid, raw)
	}
	return raw, nil
}

// Obfuscated hashes each counter value with a shared salt so identifiers
// reveal neither account count nor creation order. Every allocation pays one
// Argon2 computation.
type Obfuscated struct {
	gen        *Generator
	counterKey string
	saltKey    string
}

// NewObfuscated returns an [Obfuscated] strategy over counterKey and saltKey.
func NewObfuscated(gen *Generator, counterKey, saltKey string) *Obfuscated {
	return &Obfuscated{gen: gen, counterKey: counterKey, saltKey: saltKey}
}

func (o *Obfuscated) Name() string { return StrategyObfuscated }

func (o *Obfuscated) Next(ctx context.Context) (string, error) {
	digest, err := o.gen.NextID(ctx, o.counterKey, o.saltKey)
	if err != nil {
		return "", err
	}
	return o.Parse(digest)
}

// Parse accepts 64 lowercase hex characters.
func (o *Obfuscated) Parse(raw string) (string, error) {
	if len(raw) != obfuscatedLength {
		return "", fmt.Errorf("%w: length %d", ErrHashedIDInvalid, len(raw))
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: non-hex character at %d", ErrHashedIDInvalid, i)
		}
	}
	return raw, nil
}

// NewStrategy builds the strategy named by name. An empty name is rejected
// like any other unknown name.
func NewStrategy(name string, gen *Generator, counterKey, saltKey string) (Strategy, error) {
	switch name {
	case StrategySequential:
		return NewSequential(gen, counterKey), nil
	case StrategyObfuscated:
		return NewObfuscated(gen, counterKey, saltKey), nil
	default:
		return nil, fmt.Errorf("unknown identifier strategy %q", name)
	}
}
