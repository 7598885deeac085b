package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidated is delivered to waiters of a ticket invalidated with a nil error.
var ErrInvalidated = errors.New("refresh ticket invalidated")

// Func performs one refresh attempt. It runs at most once per ticket, on its own
// goroutine, with a context that is not cancelled when the first caller gives up.
type Func[T any] func(ctx context.Context, ticket TicketInfo) (T, error)

// TicketInfo identifies an in-flight refresh attempt for logging and auditing.
type TicketInfo struct {
	ID        string
	StartedAt time.Time
}

// Stats is a point-in-time view of coordinator activity.
type Stats struct {
	Started     uint64
	Joined      uint64
	Invalidated uint64
	// Skipped counts flights invalidated before fn ever ran.
	Skipped  uint64
	InFlight bool
}

// Config controls how a flight is bounded.
type Config struct {
	// Timeout bounds a single flight. Zero leaves the flight unbounded.
	Timeout time.Duration
}

type ticket[T any] struct {
	info    TicketInfo
	waiters int
	stale   bool

	// done is closed once value/err are final and visible to every waiter.
	done  chan struct{}
	value T
	err   error

	// landed is closed when fn returns, whether or not its result was used.
	landed chan struct{}
}

// Coordinator collapses concurrent refresh demand into one call of a refresh
// function. At most one ticket is current at a time, and a new flight never
// starts while a previous, invalidated flight is still running.
//
// The zero value is not usable; construct with [New].
type Coordinator[T any] struct {
	cfg Config

	mu       sync.Mutex
	current  *ticket[T]
	previous *ticket[T]
	stats    Stats
}

// New describes the new operation and its observable behavior.
//
// New does not start any goroutine; flights are started lazily by [Coordinator.Do].
func New[T any](cfg Config) *Coordinator[T] {
	return &Coordinator[T]{cfg: cfg}
}

// Do returns the result of the current flight, starting one when none is in
// progress. Every caller registered on the same ticket observes the same value
// and error.
//
// If ctx ends before the flight resolves, Do returns ctx.Err() to this caller
// only; the flight keeps running for the remaining waiters.
func (c *Coordinator[T]) Do(ctx context.Context, fn Func[T]) (T, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	t := c.current
	joined := t != nil
	if joined {
		t.waiters++
		c.stats.Joined++
	} else {
		t = &ticket[T]{
			info: TicketInfo{
				ID:        uuid.NewString(),
				StartedAt: time.Now(),
			},
			waiters: 1,
			done:    make(chan struct{}),
			landed:  make(chan struct{}),
		}
		prev := c.previous
		c.current = t
		c.previous = t
		c.stats.Started++
		go c.fly(context.WithoutCancel(ctx), t, prev, fn)
	}
	c.mu.Unlock()

	select {
	case <-t.done:
		return t.value, joined, t.err
	case <-ctx.Done():
		var zero T
		return zero, joined, ctx.Err()
	}
}

func (c *Coordinator[T]) fly(ctx context.Context, t *ticket[T], prev *ticket[T], fn Func[T]) {
	defer close(t.landed)

	// A stale flight may still be talking to the network; wait it out so two
	// refresh calls are never in flight together.
	if prev != nil {
		<-prev.landed
	}

	c.mu.Lock()
	stale := t.stale
	if stale {
		c.stats.Skipped++
	}
	c.mu.Unlock()
	if stale {
		return
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	value, err := fn(ctx, t.info)
	c.resolve(t, value, err)
}

func (c *Coordinator[T]) resolve(t *ticket[T], value T, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.stale {
		return
	}
	t.value = value
	t.err = err
	close(t.done)
	if c.current == t {
		c.current = nil
	}
}

// Invalidate marks the current ticket stale and resolves all of its waiters
// with err (or [ErrInvalidated] when err is nil). The running refresh function
// is not aborted; its eventual result is discarded. It reports whether a
// ticket was invalidated.
func (c *Coordinator[T]) Invalidate(err error) bool {
	if err == nil {
		err = ErrInvalidated
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.current
	if t == nil {
		return false
	}
	t.stale = true
	t.err = err
	close(t.done)
	c.current = nil
	c.stats.Invalidated++
	return true
}

// Waiters returns the number of callers registered on the current ticket.
func (c *Coordinator[T]) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.waiters
}

// Stats returns a snapshot of coordinator counters.
func (c *Coordinator[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.InFlight = c.current != nil
	return s
}
