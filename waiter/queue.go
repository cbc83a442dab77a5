package waiter

import (
	"sync"
	"sync/atomic"

	"github.com/vcpurt/vcpurt/internal/rterr"
)

// queueIDCounter assigns each WaiterQueue a unique id, used as the sanity
// tag node.queueID is CAS'd against on enqueue/dequeue, per spec's "object
// id used as a sanity tag to detect cross-queue mistakes."
var queueIDCounter atomic.Uint64

// node is the intrusive list link a Waiter gets while enqueued on a
// WaiterQueue. Unlike the scheduler's queues, a WaiterQueue is a genuine
// doubly linked list (queue.rs's PeekableTaskQueue is channel-backed; this
// is the mutex-protected intrusive list spec's §3 WaiterQueue calls for),
// so it is built directly on pointers rather than reusing container/list,
// since ownership of the node must live inside the Waiter record itself
// (the queueID CAS tag lives there) rather than in a separate list element.
type node struct {
	prev, next *node
	waiter     *Waiter
	waker      Waker
}

// QueueMember is returned by Enqueue and must be passed back to Dequeue.
type QueueMember struct {
	n *node
}

// WaiterQueue is a mutex-protected intrusive doubly-linked list of Waiters,
// woken as a group. None of its operations allocate after construction
// beyond the per-member node, matching spec's "none of these operations
// allocate after construction" for the fixed-cost path (wake_all/wake_one
// never allocate; Enqueue allocates exactly the member's node, which the
// caller owns and returns via Dequeue).
type WaiterQueue struct {
	id         uint64
	mu         sync.Mutex
	head, tail *node
}

// NewQueue constructs an empty WaiterQueue with a fresh unique id.
func NewQueue() *WaiterQueue {
	return &WaiterQueue{id: queueIDCounter.Add(1)}
}

// Enqueue adds w (and its precomputed Waker) to the back of the queue.
// Calling Enqueue twice for the same Waiter without an intervening Dequeue
// is a fatal API misuse (a Waiter belongs to at most one list at a time).
func (q *WaiterQueue) Enqueue(w *Waiter) QueueMember {
	if !w.queueID.CompareAndSwap(0, q.id) {
		rterr.Invariant("waiter queue: double enqueue")
	}
	n := &node{waiter: w, waker: w.Waker()}
	q.mu.Lock()
	defer q.mu.Unlock()
	n.prev = q.tail
	if q.tail != nil {
		q.tail.next = n
	} else {
		q.head = n
	}
	q.tail = n
	return QueueMember{n: n}
}

// Dequeue removes m from the queue. Calling Dequeue with a member tagged
// for a different queue (or already dequeued) is a fatal API misuse.
func (q *WaiterQueue) Dequeue(m QueueMember) {
	n := m.n
	if !n.waiter.queueID.CompareAndSwap(q.id, 0) {
		rterr.Invariant("waiter queue: dequeue from wrong queue or already dequeued")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		q.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		q.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

// WakeAll calls Wake on every Waiter currently in the queue. The queue
// itself is not drained: each Waiter is responsible for calling Dequeue
// after it observes its own notification.
func (q *WaiterQueue) WakeAll() {
	q.mu.Lock()
	wakers := make([]Waker, 0, 8)
	for n := q.head; n != nil; n = n.next {
		wakers = append(wakers, n.waker)
	}
	q.mu.Unlock()
	for _, k := range wakers {
		k.Wake()
	}
}

// WakeOne wakes only the head of the queue, if any.
func (q *WaiterQueue) WakeOne() {
	q.mu.Lock()
	var k Waker
	have := false
	if q.head != nil {
		k = q.head.waker
		have = true
	}
	q.mu.Unlock()
	if have {
		k.Wake()
	}
}
