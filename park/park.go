// Package park implements the per-vCPU thread-parking table an executor's
// run loop uses when it finds nothing runnable: register once at startup,
// park/park_timeout when idle, and unpark to wake it. The scheduler's
// Enqueue does not call Unpark; an idle executor parks with a timeout and
// re-checks its queue when the timeout ends, and runtime shutdown calls
// UnparkAll. Grounded directly on
// original_source/.../vcpu/park.rs.
package park

import (
	"sync"
	"time"

	"github.com/vcpurt/vcpurt/internal/rterr"
)

// Parks holds one parking slot per vCPU. Go has no first-class unparkable
// thread handle the way std::thread::Thread is in the original — a buffered
// chan struct{} substitutes directly, the same "channel as a one-shot
// OS-thread-level wakeup signal" idiom the teacher's event loop uses for its
// own fastWakeupCh.
type Parks struct {
	slots []chan struct{}
	mu    []sync.Mutex // guards registered[i], matching the original's per-slot Mutex<Option<Thread>>
	registered []bool
}

// New constructs a Parks table sized for numVCPUs.
func New(numVCPUs int) *Parks {
	p := &Parks{
		slots:      make([]chan struct{}, numVCPUs),
		mu:         make([]sync.Mutex, numVCPUs),
		registered: make([]bool, numVCPUs),
	}
	for i := range p.slots {
		p.slots[i] = make(chan struct{}, 1)
	}
	return p
}

// Register marks vcpu as parkable from this point on. Must be called by the
// vCPU's own executor goroutine before its first Park call.
func (p *Parks) Register(vcpu int) {
	p.checkRange(vcpu)
	p.mu[vcpu].Lock()
	p.registered[vcpu] = true
	p.mu[vcpu].Unlock()
}

// Unregister marks vcpu as no longer parkable, e.g. on executor shutdown.
func (p *Parks) Unregister(vcpu int) {
	p.checkRange(vcpu)
	p.mu[vcpu].Lock()
	p.registered[vcpu] = false
	p.mu[vcpu].Unlock()
}

// Park blocks the calling goroutine until Unpark(vcpu) is called, at least
// once. Per the original's contract, this must not be called concurrently
// by two goroutines claiming the same vcpu — doing so doesn't corrupt
// memory, but may leave one of them parked forever.
func (p *Parks) Park(vcpu int) {
	p.checkRange(vcpu)
	<-p.slots[vcpu]
}

// ParkTimeout behaves like Park but returns after d even without an Unpark
// call, reporting whether it returned because of a wakeup.
func (p *Parks) ParkTimeout(vcpu int, d time.Duration) (woken bool) {
	p.checkRange(vcpu)
	select {
	case <-p.slots[vcpu]:
		return true
	case <-time.After(d):
		return false
	}
}

// Unpark wakes the vCPU's executor goroutine if it is currently parked;
// otherwise the wakeup is kept and satisfies that vCPU's next Park call.
// At most one wakeup is kept (repeated Unparks do not accumulate: parking is
// not a counting semaphore, matching std::thread::Thread::unpark's own
// at-most-one-pending-wakeup contract). Matches the original's
// `match thread_opt { None => return, ... }`: unparking a vcpu that was
// never registered (or has since unregistered) does nothing.
func (p *Parks) Unpark(vcpu int) {
	p.checkRange(vcpu)
	p.mu[vcpu].Lock()
	registered := p.registered[vcpu]
	p.mu[vcpu].Unlock()
	if !registered {
		return
	}
	select {
	case p.slots[vcpu] <- struct{}{}:
	default:
	}
}

// UnparkAll wakes every vCPU, used for global signals like runtime shutdown.
func (p *Parks) UnparkAll() {
	for i := range p.slots {
		p.Unpark(i)
	}
}

// Len returns the number of vCPU slots this table was constructed for.
func (p *Parks) Len() int { return len(p.slots) }

func (p *Parks) checkRange(vcpu int) {
	if vcpu < 0 || vcpu >= len(p.slots) {
		rterr.Invariant("park: vcpu %d out of range [0,%d)", vcpu, len(p.slots))
	}
}
