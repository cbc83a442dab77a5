// Package rterr defines the small set of error kinds the runtime core
// surfaces, per the runtime's error handling design: three recoverable
// kinds a caller inspects with errors.Is, and one fatal kind that denotes
// API misuse inside the runtime itself and aborts the calling vCPU.
package rterr

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by wait/wait_timeout when the requested
	// budget elapsed with no notification.
	ErrTimeout = errors.New("vcpurt: timeout")
	// ErrInterrupted is returned by wait when an asynchronous signal was
	// delivered while blocked.
	ErrInterrupted = errors.New("vcpurt: interrupted")
	// ErrQueueFull names the full-priority-queue condition. Nothing in
	// the core returns it: a Worker push on a full queue reports false
	// and spills the task to the injector instead.
	ErrQueueFull = errors.New("vcpurt: queue full")
)

// Invariant reports a fatal API-misuse condition (double enqueue on a
// WaiterQueue, dequeue from the wrong queue, double-set or double-take of
// a join output, re-init of a live state) and aborts the calling goroutine.
// There is no recovery path for these: they indicate a bug inside the
// runtime, not a caller error.
func Invariant(format string, args ...any) {
	panic(fmt.Errorf("vcpurt: invariant violation: %s", fmt.Sprintf(format, args...)))
}
