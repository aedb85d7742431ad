package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit count and discard events instead of waiting for space.
	DropIfFull bool
}

// Dispatcher relays events to one Sink from a background goroutine, so the
// request path never waits on the sink. A nil *Dispatcher discards everything.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	queue    chan Event
	stopping chan struct{}
	finished chan struct{}

	// mu orders sends against close(queue).
	mu      sync.RWMutex
	closed  bool
	stop    sync.Once
	dropped atomic.Uint64
}

// NewDispatcher starts the relay. It returns nil when cfg.Enabled is false.
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
		stopping:   make(chan struct{}),
		finished:   make(chan struct{}),
	}
	go d.relay()
	return d
}

// relay exits once queue is closed and empty.
func (d *Dispatcher) relay() {
	defer close(d.finished)
	ctx := context.Background()
	for event := range d.queue {
		d.sink.Emit(ctx, event)
	}
}

// Emit queues event. Without DropIfFull it waits for space until ctx is done or
// the dispatcher closes. Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
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
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stopping:
	}
}

// Close stops intake, delivers what is already queued and waits for the relay.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stop.Do(func() {
		// Release emitters blocked on a full queue before taking the write lock.
		close(d.stopping)
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	<-d.finished
}

// Dropped counts events discarded by DropIfFull.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
