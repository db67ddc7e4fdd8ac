package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minKeyLength   uint32 = 16
	saltBytes             = 16

	// DefaultMaxSecretBytes caps the secret size accepted by Hash when
	// Config.MaxSecretBytes is zero.
	DefaultMaxSecretBytes = 1024
)

var (
	// ErrSecretTooLong is returned when a secret exceeds Config.MaxSecretBytes.
	ErrSecretTooLong = errors.New("secret exceeds maximum length")
	// ErrEmptySalt is returned when Hash or Verify is called without a salt.
	ErrEmptySalt = errors.New("salt must not be empty")
)

// Config holds the Argon2id cost parameters.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	KeyLength      uint32
	MaxSecretBytes int
}

// Hasher computes hash(value, salt) with Argon2id and renders the digest as
// lowercase hex. The same hasher serves passwords, email addresses and
// sequential identifiers.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a [Hasher].
func NewHasher(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxSecretBytes <= 0 {
		cfg.MaxSecretBytes = DefaultMaxSecretBytes
	}

	return &Hasher{config: cfg}, nil
}

// Hash returns hex(argon2id(value, salt)). The output is a pure function of
// value, salt and the configured cost parameters.
func (h *Hasher) Hash(value []byte, salt string) (string, error) {
	if len(value) > h.config.MaxSecretBytes {
		return "", ErrSecretTooLong
	}
	if salt == "" {
		return "", ErrEmptySalt
	}

	digest := argon2.IDKey(
		value,
		[]byte(salt),
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)
	defer clear(digest)

	return hex.EncodeToString(digest), nil
}

// Verify recomputes the hash of value with salt and compares it to encoded
// in constant time.
func (h *Hasher) Verify(value []byte, salt, encoded string) (bool, error) {
	computed, err := h.Hash(value, salt)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare([]byte(computed), []byte(encoded)) == 1, nil
}

// NewSalt returns 16 random bytes rendered as lowercase hex.
func NewSalt() (string, error) {
	var raw [saltBytes]byte
	if _, err := io.ReadFull(rand.Reader, raw[:]); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(raw[:]), nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	if cfg.MaxSecretBytes < 0 {
		return errors.New("password max secret bytes must be >= 0")
	}

	return nil
}
