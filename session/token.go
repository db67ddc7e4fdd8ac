package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const tokenBytes = 32

// TokenLength is the length of an encoded session token.
const TokenLength = tokenBytes * 2

// ErrTokenMalformed is returned when a value is not a well-formed token.
var ErrTokenMalformed = errors.New("malformed session token")

// NewToken returns 32 random bytes rendered as 64 lowercase hex characters.
func NewToken() (string, error) {
	var raw [tokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(raw[:]), nil
}

// ValidToken reports whether s has the shape produced by [NewToken].
func ValidToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
