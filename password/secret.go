package password

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

const redacted = "[redacted]"

// Secret holds raw credential material (a password or an email address)
// in a mutable buffer so it can be overwritten once hashed.
//
// Go may still leave copies behind (JSON decoding buffers, the garbage
// collector moving memory), so Wipe shortens the secret's lifetime rather
// than guaranteeing erasure.
type Secret []byte

// NewSecret copies s into a fresh Secret.
func NewSecret(s string) Secret {
	return Secret([]byte(s))
}

// Wipe overwrites the backing buffer with zeroes.
func (s Secret) Wipe() {
	clear(s)
}

// Empty reports whether the secret holds no bytes.
func (s Secret) Empty() bool {
	return len(s) == 0
}

// String never reveals the secret.
func (s Secret) String() string {
	return redacted
}

// GoString never reveals the secret.
func (s Secret) GoString() string {
	return redacted
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// MarshalJSON never reveals the secret.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// UnmarshalJSON decodes a JSON string. Unescaped strings are copied straight
// out of the request buffer without an intermediate Go string.
func (s *Secret) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		inner := data[1 : len(data)-1]
		if bytes.IndexByte(inner, '\\') < 0 {
			buf := make([]byte, len(inner))
			copy(buf, inner)
			*s = buf
			return nil
		}
	}

	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Secret(v)
	return nil
}
