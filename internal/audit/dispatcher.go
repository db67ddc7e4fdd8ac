package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher forwards lifecycle events to a sink from one goroutine, in
// emission order. A nil *Dispatcher accepts and discards events.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	queue   chan Event
	stop    chan struct{}
	drained chan struct{}

	// mu guards closed and the send side of queue.
	mu     sync.RWMutex
	closed bool
	once   sync.Once

	delivered atomic.Uint64
	dropped   [kindEnd]atomic.Uint64
}

// NewDispatcher starts the delivery goroutine, or returns nil when cfg is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
		drained:    make(chan struct{}),
	}
	go d.deliver()

	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.drained)

	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
		d.delivered.Add(1)
	}
}

// Emit queues event. Events of an invalid Kind are ignored. With DropIfFull
// a full buffer drops the event and counts it under its Kind; otherwise Emit
// waits for room until ctx is done or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || !event.Kind.Valid() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped[event.Kind].Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped[event.Kind].Add(1)
	case <-d.stop:
	}
}

// Close stops accepting events, then blocks until every queued event has
// reached the sink. Emitters still waiting for room give up.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		close(d.stop)

		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		<-d.drained
	})
}

// Delivered returns the number of events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

// Dropped returns the number of events lost to a full buffer or an
// expired context, across all kinds.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	var total uint64
	for k := range d.dropped {
		total += d.dropped[k].Load()
	}
	return total
}

// DroppedByKind returns the drop count of every Kind, zero counts included.
func (d *Dispatcher) DroppedByKind() map[Kind]uint64 {
	out := make(map[Kind]uint64, kindEnd-1)
	for _, k := range Kinds() {
		var n uint64
		if d != nil {
			n = d.dropped[k].Load()
		}
		out[k] = n
	}
	return out
}
