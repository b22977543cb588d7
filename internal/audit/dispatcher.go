package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds every Sink.Emit call. Zero leaves calls unbounded.
	SinkTimeout time.Duration
}

// Dispatcher hands events to a sink on one background goroutine, in the
// order they were queued.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	timeout    time.Duration

	// mu keeps Close from closing queue under a sender.
	mu      sync.RWMutex
	queue   chan Event
	stopped bool

	finished chan struct{}
	dropped  atomic.Uint64
}

// NewDispatcher starts a dispatcher. It returns nil when auditing is
// disabled; a nil Dispatcher accepts and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		timeout:    cfg.SinkTimeout,
		queue:      make(chan Event, size),
		finished:   make(chan struct{}),
	}
	go d.forward()
	return d
}

// forward runs until Close closes the queue, so everything queued before
// Close reaches the sink.
func (d *Dispatcher) forward() {
	defer close(d.finished)
	for ev := range d.queue {
		d.send(ev)
	}
}

func (d *Dispatcher) send(ev Event) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	d.sink.Emit(ctx, ev)
}

// Emit queues ev. With DropIfFull a full buffer drops the event and counts
// it; otherwise Emit waits for room or for ctx to end. Events emitted after
// Close are discarded.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		d.queue <- ev
		return
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	}
}

// Close stops accepting events and returns once the queue has been
// delivered. Calling Close again is a no-op.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.finished
}

// Dropped returns the number of events dropped on a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
