// Package vcpurtsync holds synchronization primitives built on top of the
// waiter package rather than directly on a host fd. EventCounter is the
// first: a counting semaphore with eventfd-like semantics, grounded on
// original_source/.../async-io/src/event/event_counter.rs.
package vcpurtsync

import (
	"sync/atomic"
	"time"

	"github.com/vcpurt/vcpurt/waiter"
)

// EventCounter is a counter for wait and wakeup, with an API shaped like
// Linux's eventfd: Write increments the counter and wakes one waiter; Read
// atomically swaps the counter to zero and returns whatever value it held,
// blocking first if it was already zero.
type EventCounter struct {
	counter atomic.Uint64
	waiters *waiter.WaiterQueue
}

// New constructs an EventCounter starting at zero.
func New() *EventCounter {
	return &EventCounter{waiters: waiter.NewQueue()}
}

// Read blocks until the counter is non-zero, then swaps it to zero and
// returns the value it held. Mirrors the original's waiter_loop! macro: each
// iteration re-checks the counter before actually waiting, so a Write that
// lands between the check and the wait is never missed.
func (c *EventCounter) Read() (uint64, error) {
	return c.ReadTimeout(nil)
}

// ReadTimeout behaves like Read but returns rterr.ErrTimeout if timeout
// elapses first. A nil timeout blocks indefinitely.
func (c *EventCounter) ReadTimeout(timeout *time.Duration) (uint64, error) {
	for {
		if val := c.counter.Swap(0); val > 0 {
			return val, nil
		}

		w, err := waiter.New()
		if err != nil {
			return 0, err
		}
		member := c.waiters.Enqueue(w)

		// Re-check after enqueueing (and before waiting) to close the race
		// between the check above and a concurrent Write's WakeOne, which
		// only wakes waiters already enqueued at the time it's called.
		if val := c.counter.Swap(0); val > 0 {
			c.waiters.Dequeue(member)
			_ = w.Close()
			return val, nil
		}

		err = w.WaitMut(timeout)
		c.waiters.Dequeue(member)
		_ = w.Close()
		if err != nil {
			return 0, err
		}
		// Woken: loop back to the top and re-swap the counter rather than
		// assuming it's non-zero, since wake_one only promises "check again."
	}
}

// Write increments the counter by one and wakes at most one blocked reader,
// mirroring write()'s fetch_add + wake_one.
func (c *EventCounter) Write() {
	c.counter.Add(1)
	c.waiters.WakeOne()
}
