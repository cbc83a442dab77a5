// Package hostevent implements the runtime's one external notification
// primitive: a 64-bit counter exposed as a pollable handle, one per task,
// used by Waiter to block a vCPU thread in the OS and by external wakers to
// resume it. The concrete implementation is platform-specific (see
// hostevent_linux.go); this file holds the shared interface and the batch
// write path every platform implements the same way.
package hostevent

import (
	"context"
	"time"

	"github.com/joeycumines/go-microbatch"
)

// FD is the external notification primitive. Each Task owns exactly one,
// created alongside the task and closed on drop, matching spec's HostEventFd
// lifecycle.
type FD interface {
	// WriteU64 adds v to the external counter and, if it was previously
	// zero and something is blocked in Poll, wakes it.
	WriteU64(v uint64) error
	// ReadU64 reads and resets the external counter to zero, blocking if
	// it is currently zero.
	ReadU64() (uint64, error)
	// Poll blocks until the counter becomes non-zero or timeout elapses
	// (nil timeout means block forever). Returns (true, nil) if the
	// counter is non-zero on return, (false, nil) on timeout.
	Poll(timeout *time.Duration) (bool, error)
	// Close releases the underlying OS resources.
	Close() error
}

// WriteBatch writes v to every fd in fds in one call — spec's
// host_event_fd_write_batch. It calls WriteU64 on each fd in turn, so it
// issues one write per fd, not a single syscall for the whole slice; it
// returns the first error seen and still attempts the remaining fds.
// Coalescer (below) uses it to flush WriteU64(1) calls submitted to it
// within one flush interval, on every platform; Waker.Wake writes directly
// and does not go through a Coalescer.
func WriteBatch(fds []FD, v uint64) error {
	var firstErr error
	for _, fd := range fds {
		if err := fd.WriteU64(v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Coalescer batches many independent WriteU64(1) calls arriving within the
// same scheduling tick into one WriteBatch call, using
// github.com/joeycumines/go-microbatch's size/interval-bounded batcher.
// This generalizes spec's explicit Waker.batch_wake path (which requires a
// caller to have already collected the fd slice) to ordinary wake() calls
// that never collected anything.
type Coalescer struct {
	batcher *microbatch.Batcher[FD]
}

// NewCoalescer starts a Coalescer that flushes whenever maxSize fds have
// accumulated or flushInterval has elapsed, whichever comes first.
func NewCoalescer(maxSize int, flushInterval time.Duration) *Coalescer {
	c := &Coalescer{}
	c.batcher = microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:       maxSize,
		FlushInterval: flushInterval,
		MaxConcurrency: 1,
	}, func(ctx context.Context, fds []FD) error {
		return WriteBatch(fds, 1)
	})
	return c
}

// Wake submits fd to be written as part of the next batch. It does not
// block on the write completing; spec's wake() is fire-and-forget from the
// Waker's perspective.
func (c *Coalescer) Wake(fd FD) {
	_, _ = c.batcher.Submit(context.Background(), fd)
}

// Close stops accepting new wakes and flushes any pending batch.
func (c *Coalescer) Close() error {
	return c.batcher.Close()
}
