// Package injector implements the scheduler's single global overflow
// queue, shared by every vCPU, grounded on the unbounded flume channel
// worker.rs falls back to when a Worker's own class queue is full.
package injector

import (
	"sync"

	"github.com/vcpurt/vcpurt/task"
)

// Injector is a single unbounded MPMC queue. It has no notion of priority
// class: whatever priority a task carried is irrelevant once it lands
// here, matching spec's §9 note that overflow is an accepted, not
// corrected, loss of class information.
//
// Go has no unbounded channel, so this is backed by a mutex-protected
// FIFO slice (append at the back, reslice at the front) — the direct substitute for an unbounded
// flume channel (flume itself is backed by a growable deque internally;
// this is the same shape without a third-party dependency, since no repo
// in the retrieval pack wires an unbounded-queue library independent of
// flume, which is Rust-only).
type Injector struct {
	mu    sync.Mutex
	items []*task.Task
}

// New constructs an empty Injector.
func New() *Injector { return &Injector{} }

// Push adds t to the back of the queue. Never fails: the Injector is
// unbounded.
func (i *Injector) Push(t *task.Task) {
	i.mu.Lock()
	i.items = append(i.items, t)
	i.mu.Unlock()
}

// Pop removes and returns the front task, or nil if empty.
func (i *Injector) Pop() *task.Task {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.items) == 0 {
		return nil
	}
	t := i.items[0]
	i.items[0] = nil
	i.items = i.items[1:]
	return t
}

// PopIf removes and returns the front task only if pred accepts it,
// otherwise leaves the queue untouched — used by dequeue() to respect a
// task's affinity without discarding FIFO order for everyone behind it.
func (i *Injector) PopIf(pred func(*task.Task) bool) *task.Task {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.items) == 0 {
		return nil
	}
	if !pred(i.items[0]) {
		return nil
	}
	t := i.items[0]
	i.items[0] = nil
	i.items = i.items[1:]
	return t
}

// Len returns the current number of queued tasks.
func (i *Injector) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}
