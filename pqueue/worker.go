package pqueue

import (
	"sync/atomic"

	"github.com/vcpurt/vcpurt/priority"
	"github.com/vcpurt/vcpurt/task"
)

// MaxQueuedTasks is the fixed capacity of each of a Worker's three
// priority-class queues, mirroring the original's MAX_QUEUED_TASKS.
const MaxQueuedTasks = 4096

// Overflow is implemented by the global Injector; a Worker pushes here when
// its own class queue is full, losing the task's priority class as spec's
// §9 Open Question notes.
type Overflow interface {
	Push(t *task.Task)
}

// Worker is the per-vCPU component holding three priority-class FIFO
// queues and the rotating class-visit-order selector.
type Worker struct {
	high, normal, low *PeekableTaskQueue
	priNumber         atomic.Uint32
}

// NewWorker constructs a Worker with MaxQueuedTasks capacity per class.
func NewWorker() *Worker {
	return &Worker{
		high:   NewPeekable(MaxQueuedTasks),
		normal: NewPeekable(MaxQueuedTasks),
		low:    NewPeekable(MaxQueuedTasks),
	}
}

func (w *Worker) queue(p priority.SchedPriority) *PeekableTaskQueue {
	switch p {
	case priority.SchedHigh:
		return w.high
	case priority.SchedNormal:
		return w.normal
	default:
		return w.low
	}
}

// Push routes t to the queue named by its priority class; on a full queue
// it falls through to inj and returns false.
func (w *Worker) Push(t *task.Task, inj Overflow) bool {
	if w.queue(t.Priority).Push(t) {
		return true
	}
	inj.Push(t)
	return false
}

// Pop draws a uniformly distributed 3-bit number from the rotating
// counter and visits the three priority-class queues in the order that
// number selects, returning the first non-empty queue's head. This is the
// non-strict priority scheme: High dominates in expectation but every
// class is visited first on some fraction of calls, so Low still makes
// progress.
func (w *Worker) Pop() *task.Task {
	switch w.priNumber.Add(1) % 8 {
	case 0, 1, 2, 3, 4:
		if t := w.high.Pop(); t != nil {
			return t
		}
		if t := w.normal.Pop(); t != nil {
			return t
		}
		return w.low.Pop()
	case 5, 6:
		if t := w.normal.Pop(); t != nil {
			return t
		}
		if t := w.high.Pop(); t != nil {
			return t
		}
		return w.low.Pop()
	default: // 7
		if t := w.low.Pop(); t != nil {
			return t
		}
		if t := w.high.Pop(); t != nil {
			return t
		}
		return w.normal.Pop()
	}
}

// PopWithPriority drains the named class only, used by the load balancer.
func (w *Worker) PopWithPriority(p priority.SchedPriority) *task.Task {
	return w.queue(p).Pop()
}

// PopWithPriorityIf drains the named class's head only if pred accepts it,
// used by the load balancer's affinity filter during migration.
func (w *Worker) PopWithPriorityIf(p priority.SchedPriority, pred func(*task.Task) bool) *task.Task {
	return w.queue(p).PopIf(pred)
}

// Len returns the approximate total runnable count across all three
// classes.
func (w *Worker) Len() int {
	return w.high.Len() + w.normal.Len() + w.low.Len()
}

// LenClass returns the approximate count for one class only.
func (w *Worker) LenClass(p priority.SchedPriority) int { return w.queue(p).Len() }

// IsEmpty reports whether every class queue is empty.
func (w *Worker) IsEmpty() bool {
	return w.high.IsEmpty() && w.normal.IsEmpty() && w.low.IsEmpty()
}
