// Package waiter implements the runtime's single-task sleep primitive: a
// Waiter bound to one task, its weak-reference Waker, and the batch-wake
// fast path used by queues and condition variables. Grounded directly on
// original_source/.../events/waiter/mod.rs and edge.rs.
package waiter

import (
	"sync/atomic"
	"time"
	"weak"

	"github.com/vcpurt/vcpurt/hostevent"
	"github.com/vcpurt/vcpurt/internal/rterr"
)

// state values mirror the original EdgeSync exactly: Init=0, Notified=1,
// Wait=MaxUint32. wait()'s fast path relies on the arithmetic identity
// state-1 == Notified-1 == 0 when (and only when) state was Notified,
// which is why Wait is MaxUint32 rather than some other sentinel: Init-1
// wraps to MaxUint32 (not 0), and Notified-1 is exactly 0, so a single
// fetch_sub followed by a zero-check distinguishes "was Notified" from
// both other states in one atomic op.
const (
	stateInit     uint32 = 0
	stateNotified uint32 = 1
	stateWait     uint32 = ^uint32(0)
)

// Waiter is bound to the current task and must not be shared across tasks;
// it is safe to share its Waker (via Waiter.Waker) across goroutines, since
// that only ever holds a weak reference.
type Waiter struct {
	state   atomic.Uint32
	hostFD  hostevent.FD
	queueID atomic.Uint64 // 0 means "not enqueued on any WaiterQueue"
}

// New creates an unparked Waiter with fresh state Init, owning its own host
// event fd (created alongside the Waiter and closed on Close, mirroring
// HostEventFd's task-scoped lifecycle).
func New() (*Waiter, error) {
	fd, err := hostevent.New()
	if err != nil {
		return nil, err
	}
	return &Waiter{hostFD: fd}, nil
}

// Close releases the Waiter's host event fd. Callers must not call wait
// concurrently with Close.
func (w *Waiter) Close() error { return w.hostFD.Close() }

// HostEventFD exposes the underlying fd, e.g. for registering with an
// external poller.
func (w *Waiter) HostEventFD() hostevent.FD { return w.hostFD }

// Wait blocks until notified, or until timeout elapses if non-nil.
//
// Fast path: if state is already Notified, fetch_sub(1) yields exactly 0,
// which both detects the Notified case and leaves state at Init as a side
// effect — this is the arithmetic trick edge.rs relies on, not a plain CAS.
// Slow path: transition to Wait, block on the host event fd, and on wakeup
// retry the CAS Notified->Init, looping on spurious wakeups.
func (w *Waiter) Wait(timeout *time.Duration) error {
	if w.state.Add(^uint32(0)) == 0 { // fetch_sub(1)
		return nil
	}
	// The fetch_sub above may have taken Init (0) to MaxUint32 (stateWait)
	// if no notification had occurred; restore/confirm the Wait state
	// explicitly so later CAS attempts have a known starting point
	// regardless of what the decrement produced.
	w.state.Store(stateWait)

	var deadline time.Time
	if timeout != nil {
		deadline = time.Now().Add(*timeout)
	}
	for {
		var remaining *time.Duration
		if timeout != nil {
			r := time.Until(deadline)
			if r <= 0 {
				return rterr.ErrTimeout
			}
			remaining = &r
		}
		signalled, err := w.hostFD.Poll(remaining)
		if err != nil {
			return err
		}
		if !signalled {
			return rterr.ErrTimeout
		}
		if w.state.CompareAndSwap(stateNotified, stateInit) {
			return nil
		}
		// spurious wake: some other poller on the same fd observed the
		// signal first (should not happen for a task-private Waiter, but
		// is tolerated per spec's "loop on spurious wake" contract), loop.
	}
}

// WaitMut behaves like Wait but writes back the remaining budget in
// *timeout after the call returns, whether it succeeded or timed out.
func (w *Waiter) WaitMut(timeout *time.Duration) error {
	if timeout == nil {
		return w.Wait(nil)
	}
	start := time.Now()
	err := w.Wait(timeout)
	elapsed := time.Since(start)
	remaining := *timeout - elapsed
	if remaining < 0 {
		remaining = 0
	}
	*timeout = remaining
	return err
}

// Reset prepares the Waiter for another wait/wake cycle. Per this
// implementation's resolution of spec's reset() contract (see
// SPEC_FULL.md §4.1 and DESIGN.md): under the EdgeSync-style fast path
// above, a successful Wait already leaves state at Init as an arithmetic
// side effect, so Reset is a no-op guarded by a debug assertion rather than
// a second state-mutating CAS. The user-visible contract — "call this
// after a successful wait to prepare for the next cycle" — holds exactly as
// documented; only the internal mechanism differs from a naive
// store(Init).
func (w *Waiter) Reset() {
	if s := w.state.Load(); s != stateInit {
		rterr.Invariant("waiter: reset called with state %d, want Init — reset must only follow a successful wait", s)
	}
}

// Waker returns a handle that holds only a weak reference to this Waiter,
// so a Waker never keeps a suspended task alive on its own.
func (w *Waiter) Waker() Waker {
	return Waker{ref: weak.Make(w)}
}

// Waker is the remote wake handle for a Waiter. It is safe to clone
// (copy the struct) and share across goroutines/vCPUs.
type Waker struct {
	ref weak.Pointer[Waiter]
}

// Wake upgrades the weak reference and, if the Waiter is still alive,
// transitions it Wait|Init -> Notified. The host event fd is only signalled
// if the previous state was Wait — a Waiter that was already Notified, or
// one a wake() races against a not-yet-started wait(), needs no syscall.
func (k Waker) Wake() {
	w := k.ref.Value()
	if w == nil {
		return // the task already finished; nothing to wake
	}
	if w.wakeCond() {
		_ = w.hostFD.WriteU64(1)
	}
}

// wakeCond performs the CAS-based gating wake() uses to decide whether a
// real host-fd write is needed: it swaps state to Notified unconditionally
// (Init and Wait are the only two states a Waker can observe) and reports
// whether the previous state was Wait, i.e. whether anyone was actually
// blocked in Poll.
func (w *Waiter) wakeCond() bool {
	prev := w.state.Swap(stateNotified)
	return prev == stateWait
}

// hostFDIfWoken returns this waiter's host fd unconditionally; BatchWake
// calls it only after wakeCond reported that the waiter was genuinely
// blocked, to build its fd list without performing the write itself.
func (w *Waiter) hostFDIfWoken() hostevent.FD { return w.hostFD }

// BatchWake collects the host fds of every Waker in wakers whose
// transition actually went Wait -> Notified, then issues a single
// host_event_fd_write_batch call across all of them. Ordering of wakeups
// across those fds is unspecified, matching spec's batch_wake contract.
func BatchWake(wakers []Waker) error {
	fds := make([]hostevent.FD, 0, len(wakers))
	for _, k := range wakers {
		w := k.ref.Value()
		if w == nil {
			continue
		}
		if w.wakeCond() {
			fds = append(fds, w.hostFDIfWoken())
		}
	}
	if len(fds) == 0 {
		return nil
	}
	return hostevent.WriteBatch(fds, 1)
}
