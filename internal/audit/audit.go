package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Kind identifies an account lifecycle event. The zero Kind is invalid.
type Kind uint8

const (
	KindRegistered Kind = iota + 1
	KindRegisterDuplicate
	KindRegisterFailed
	KindLoggedIn
	KindLoginFailed
	KindLoginRateLimited
	KindLoggedOut
	KindSessionReissued
	KindAccountDeleted
	KindFlushed
	kindEnd
)

var kindNames = [kindEnd]string{
	KindRegistered:        "register_success",
	KindRegisterDuplicate: "register_duplicate",
	KindRegisterFailed:    "register_failure",
	KindLoggedIn:          "login_success",
	KindLoginFailed:       "login_failure",
	KindLoginRateLimited:  "login_rate_limited",
	KindLoggedOut:         "logout",
	KindSessionReissued:   "session_reissued",
	KindAccountDeleted:    "account_deleted",
	KindFlushed:           "flush",
}

// Kinds returns every valid Kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindEnd-1)
	for k := KindRegistered; k < kindEnd; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) Valid() bool {
	return k > 0 && k < kindEnd
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Succeeded reports whether the operation behind k completed. Rejections
// and failures report false.
func (k Kind) Succeeded() bool {
	switch k {
	case KindRegistered, KindLoggedIn, KindLoggedOut, KindSessionReissued, KindAccountDeleted, KindFlushed:
		return true
	default:
		return false
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("audit: invalid kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for i := KindRegistered; i < kindEnd; i++ {
		if kindNames[i] == string(text) {
			*k = i
			return nil
		}
	}
	return fmt.Errorf("audit: unknown kind %q", text)
}

// Event is one account lifecycle occurrence. It never carries secrets or
// session tokens.
type Event struct {
	Time      time.Time `json:"timestamp"`
	Kind      Kind      `json:"event_type"`
	AccountID string    `json:"account_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	// Revoked counts the session keys removed by a reissue or a deletion.
	Revoked int `json:"revoked,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a consumer through a buffered channel. Emit
// blocks while the channel is full.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receive side of the buffer.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink appends one JSON object per event to w. Failed writes are
// counted, not retried.
type JSONWriterSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	failed uint64
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(event); err != nil {
		s.failed++
	}
}

// Failed returns how many events could not be encoded or written.
func (s *JSONWriterSink) Failed() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
