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
	// DropIfFull makes Emit non-blocking; events that do not fit are counted
	// in Dropped.
	DropIfFull bool
	// SinkTimeout bounds each Sink.Emit call. Zero means no bound.
	SinkTimeout time.Duration
}

// Dispatcher asynchronously forwards audit events to a sink. A nil
// *Dispatcher is valid and discards everything.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	now       func() time.Time
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	emitted   atomic.Uint64
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled.
func NewDispatcher(cfg Config, sink Sink, now func() time.Time) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if now == nil {
		now = time.Now
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		now:  now,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			// Drain what was accepted before Close.
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx := context.Background()
	if d.cfg.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SinkTimeout)
		defer cancel()
	}
	d.sink.Emit(ctx, event)
	d.emitted.Add(1)
}

// Emit queues event. A zero Timestamp is stamped with the dispatcher clock.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close stops accepting events, flushes the buffer, and waits for the
// delivery goroutine. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of events that never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns the number of events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.emitted.Load()
}
