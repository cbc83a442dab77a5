// Package pqueue implements the per-vCPU Worker: three bounded priority-class
// PeekableTaskQueues plus the 8-way rotating class selector, grounded on
// original_source/.../priority_scheduler/queue.rs and worker.rs. Go channels
// stand in directly for the original's flume channels — both are bounded
// MPSC primitives with the same try_send/try_recv shape.
package pqueue

import (
	"sync"

	"github.com/vcpurt/vcpurt/task"
)

// PeekableTaskQueue is a bounded channel of tasks with a single-slot peek
// buffer in front of it, populated only by a consumer that looked at the
// head and decided not to take it (pop_if's "not a match" path). The peek
// slot is read by the owning vCPU's executor (Worker.Pop, every loop
// iteration) and by the load balancer's migration pass (Worker.PopWithPriorityIf, from
// a separate goroutine) concurrently against the same Worker's queues, so
// it needs the same mutex protection queue.rs gives its `slot:
// Mutex<Option<Arc<Task>>>` — matching injector.Injector's own
// mutex-guarded slice for the same MPMC shape.
type PeekableTaskQueue struct {
	ch chan *task.Task

	mu   sync.Mutex
	peek *task.Task
}

// NewPeekable constructs a PeekableTaskQueue with the given channel
// capacity.
func NewPeekable(capacity int) *PeekableTaskQueue {
	return &PeekableTaskQueue{ch: make(chan *task.Task, capacity)}
}

// Push attempts a non-blocking send. On a full channel it returns the task
// back to the caller (ok=false) without loss of ownership.
func (q *PeekableTaskQueue) Push(t *task.Task) (ok bool) {
	select {
	case q.ch <- t:
		return true
	default:
		return false
	}
}

// Pop takes the peeked task if present, else performs a non-blocking
// receive.
func (q *PeekableTaskQueue) Pop() *task.Task {
	q.mu.Lock()
	if q.peek != nil {
		t := q.peek
		q.peek = nil
		q.mu.Unlock()
		return t
	}
	q.mu.Unlock()
	select {
	case t := <-q.ch:
		return t
	default:
		return nil
	}
}

// PopIf takes the head task only if pred returns true for it. If pred
// returns false, the task is left at the head — stashed in the peek slot
// if it came from the channel, or left alone if it was already peeked.
func (q *PeekableTaskQueue) PopIf(pred func(*task.Task) bool) *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.peek != nil {
		if pred(q.peek) {
			t := q.peek
			q.peek = nil
			return t
		}
		return nil
	}
	select {
	case t := <-q.ch:
		if pred(t) {
			return t
		}
		q.peek = t
		return nil
	default:
		return nil
	}
}

// Len is a best-effort length: real_len or real_len-1, since the peek slot
// is accounted separately from the channel's own length.
func (q *PeekableTaskQueue) Len() int {
	n := len(q.ch)
	q.mu.Lock()
	if q.peek != nil {
		n++
	}
	q.mu.Unlock()
	return n
}

// IsEmpty reports whether both the peek slot and the channel are empty.
func (q *PeekableTaskQueue) IsEmpty() bool {
	q.mu.Lock()
	empty := q.peek == nil
	q.mu.Unlock()
	return empty && len(q.ch) == 0
}

// Capacity returns the channel's fixed capacity (MAX_QUEUED_TASKS).
func (q *PeekableTaskQueue) Capacity() int { return cap(q.ch) }
