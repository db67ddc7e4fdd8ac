package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type blockingSink struct {
	entered chan Event
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{entered: make(chan Event, 16), release: make(chan struct{})}
}

func (s *blockingSink) Emit(_ context.Context, event Event) {
	s.entered <- event
	<-s.release
}

// stall parks the delivery goroutine inside the sink with an empty queue.
func (s *blockingSink) stall(t *testing.T, d *Dispatcher) {
	t.Helper()
	d.Emit(context.Background(), Event{Kind: KindLoggedIn})
	select {
	case <-s.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received the first event")
	}
}

func TestDispatcherDeliversInOrderAndDrains(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	kinds := []Kind{KindRegistered, KindLoggedIn, KindLoggedOut}
	for _, k := range kinds {
		d.Emit(context.Background(), Event{Kind: k})
	}
	d.Close()

	if got := d.Delivered(); got != 3 {
		t.Fatalf("expected 3 delivered events after Close, got %d", got)
	}
	for _, want := range kinds {
		if got := (<-sink.Events()).Kind; got != want {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	// Emit after Close is a no-op.
	d.Emit(context.Background(), Event{Kind: KindFlushed})
	if got := len(sink.Events()); got != 0 {
		t.Fatalf("expected no delivery after Close, got %d", got)
	}
	d.Close()
}

func TestDispatcherIgnoresInvalidKind(t *testing.T) {
	sink := NewChannelSink(2)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2}, sink)
	d.Emit(context.Background(), Event{})
	d.Close()

	if d.Delivered() != 0 || d.Dropped() != 0 {
		t.Fatalf("zero kind was accounted: delivered=%d dropped=%d", d.Delivered(), d.Dropped())
	}
}

func TestDispatcherDropIfFullCountsPerKind(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	sink.stall(t, d)

	// One login failure fits the buffer.
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Kind: KindLoginFailed})
	}
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Kind: KindRegistered})
	}

	byKind := d.DroppedByKind()
	if byKind[KindLoginFailed] != 4 || byKind[KindRegistered] != 5 {
		t.Fatalf("unexpected drops %v", byKind)
	}
	if byKind[KindLoggedIn] != 0 {
		t.Fatalf("unexpected login drops %d", byKind[KindLoggedIn])
	}
	if total := d.Dropped(); total != 9 {
		t.Fatalf("expected 9 drops, got %d", total)
	}

	close(sink.release)
	d.Close()
	if got := d.Delivered(); got != 2 {
		t.Fatalf("expected 2 delivered, got %d", got)
	}
}

func TestDispatcherCloseReleasesBlockedEmitter(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	sink.stall(t, d)
	d.Emit(context.Background(), Event{Kind: KindLoggedIn})

	returned := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{Kind: KindLoggedOut})
		close(returned)
	}()

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Emit did not return after Close")
	}

	close(sink.release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not finish draining")
	}
}

func TestDispatcherContextExpiryCountsDrop(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	sink.stall(t, d)
	d.Emit(context.Background(), Event{Kind: KindLoggedIn})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{Kind: KindAccountDeleted})

	if got := d.DroppedByKind()[KindAccountDeleted]; got != 1 {
		t.Fatalf("expected 1 expired deletion event, got %d", got)
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{Kind: KindLoggedIn})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher reported activity")
	}
	if got := len(d.DroppedByKind()); got != len(Kinds()) {
		t.Fatalf("expected a zero entry per kind, got %d", got)
	}
}

func TestKindText(t *testing.T) {
	for _, k := range Kinds() {
		text, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", k, err)
		}
		var back Kind
		if err := back.UnmarshalText(text); err != nil || back != k {
			t.Fatalf("UnmarshalText(%q) = %v, %v", text, back, err)
		}
	}

	if _, err := Kind(0).MarshalText(); err == nil {
		t.Fatal("expected zero kind to fail MarshalText")
	}
	var k Kind
	if err := k.UnmarshalText([]byte("password_changed")); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
	if KindLoginRateLimited.Succeeded() || !KindAccountDeleted.Succeeded() {
		t.Fatal("unexpected Succeeded classification")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJSONWriterSinkOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{Time: time.Unix(0, 0).UTC(), Kind: KindSessionReissued, AccountID: "1", Success: true, Revoked: 2})
	sink.Emit(context.Background(), Event{Kind: KindLoginFailed, Username: "toto", Error: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"event_type":"session_reissued"`) {
		t.Fatalf("kind not rendered by name: %s", lines[0])
	}
	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if first.AccountID != "1" || first.Kind != KindSessionReissued || !first.Success || first.Revoked != 2 {
		t.Fatalf("unexpected event %+v", first)
	}
	if sink.Failed() != 0 {
		t.Fatalf("unexpected failures %d", sink.Failed())
	}

	broken := NewJSONWriterSink(failingWriter{})
	broken.Emit(context.Background(), Event{Kind: KindLoggedOut})
	broken.Emit(context.Background(), Event{})
	if got := broken.Failed(); got != 2 {
		t.Fatalf("expected 2 failed writes, got %d", got)
	}
}
