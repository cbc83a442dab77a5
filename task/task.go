package task

import (
	"sync"
	"sync/atomic"

	"github.com/vcpurt/vcpurt/priority"
)

// idCounter allocates Task ids sequentially, wrapping past math.MaxUint32
// and skipping any id still in use. This mirrors the registry design in the
// teacher's eventloop/registry.go (sequential allocation from 1, 0 reserved
// as a null marker) generalized with a liveness set for the wraparound
// case, which the teacher's registry does not need (its weak-pointer values
// make staleness self-evident; ours tracks liveness explicitly instead
// because task ids must never collide while both are live).
var (
	idCounter atomic.Uint32
	idMu      sync.Mutex
	idLive    = map[uint32]struct{}{}
)

// IdleTaskID is reserved and never allocated to a real task.
const IdleTaskID uint32 = 0

func allocID() uint32 {
	idMu.Lock()
	defer idMu.Unlock()
	for {
		id := idCounter.Add(1)
		if id == IdleTaskID {
			continue // wrapped past MaxUint32 back to 0
		}
		if _, busy := idLive[id]; busy {
			continue
		}
		idLive[id] = struct{}{}
		return id
	}
}

func freeID(id uint32) {
	idMu.Lock()
	delete(idLive, id)
	idMu.Unlock()
}

// Task is a unit of asynchronous computation: a pinned future plus
// scheduling metadata and a join-state cell. It is owned by whoever
// currently holds a strong reference: a Worker queue while runnable, an
// executor while polling, or (via a weak reference held by a Waker) an
// external wait primitive while suspended.
type Task struct {
	ID       uint32
	Priority priority.SchedPriority
	Affinity Affinity

	future Future
	join   *JoinState
	locals localsMap

	// ClearChildTID, if non-nil, is zeroed and its waiter woken as an
	// exit-time side effect — only set for tasks backing an OS thread
	// (pthread-style clone semantics), per spec's optional field.
	ClearChildTID *uint32
	ctidWake      func()

	done atomic.Bool
}

// New constructs a Task around fut with the given scheduling metadata.
// affinity must be non-empty; an empty affinity set means the task could
// never be placed on any vCPU, which is a construction-time API misuse.
func New(fut Future, prio priority.SchedPriority, affinity Affinity) *Task {
	if affinity.IsEmpty() {
		panic("vcpurt: task constructed with empty affinity")
	}
	return &Task{
		ID:       allocID(),
		Priority: prio,
		Affinity: affinity,
		future:   fut,
		join:     &JoinState{},
	}
}

// Poll drives the task's future once. wake is the callback the future (or
// whatever it suspends on) should invoke when the task can make progress
// again — ordinarily this re-enqueues the task on the scheduler.
//
// Poll also manages SetCurrent/clear-on-return and the clear_child_tid
// exit-time side effect, so callers (the executor run loop) never touch
// those directly.
func (t *Task) Poll(wake func()) (ready bool) {
	SetCurrent(t)
	defer SetCurrent(nil)

	var (
		out      any
		panicked bool
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
			}
		}()
		var isReady bool
		out, isReady = t.future.Poll(wake)
		ready = isReady
	}()
	if panicked {
		ready = true
	}

	if !ready {
		return false
	}

	t.future = nil
	t.locals.clear()
	if panicked {
		t.join.SetPanicked()
	} else {
		t.join.SetOutput(out)
	}
	if t.ClearChildTID != nil {
		*t.ClearChildTID = 0
		if t.ctidWake != nil {
			t.ctidWake()
		}
	}
	t.done.Store(true)
	freeID(t.ID)
	return true
}

// Done reports whether the task's future has completed (Ready or panicked).
func (t *Task) Done() bool { return t.done.Load() }

// JoinState exposes the task's join cell for JoinHandle construction. It is
// an exported method, so any importer of this package can reach it.
func (t *Task) JoinState() *JoinState { return t.join }

// SetClearChildTID configures the exit-time futex-style side effect: addr
// is zeroed and wake is invoked once, when the task's future completes.
func (t *Task) SetClearChildTID(addr *uint32, wake func()) {
	t.ClearChildTID = addr
	t.ctidWake = wake
}
