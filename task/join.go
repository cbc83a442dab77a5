package task

import (
	"sync"

	"github.com/vcpurt/vcpurt/internal/rterr"
)

// joinPhase mirrors the original source's State<T> enum (Init / Pending /
// Ready / Finished), transitioned only in the directions listed below.
// This state machine guards an interface{} payload, so it uses a mutex
// rather than a single atomic word — an atomic state word only pays off
// when the guarded value itself fits in a machine word.
type joinPhase uint32

const (
	jInit joinPhase = iota
	jPending
	jReady
	jFinished
)

// JoinState is the producer/consumer rendezvous cell behind a JoinHandle.
// It is not generic over the output type at this layer (the Task that owns
// it is itself not generic — see Task.future's type erasure); JoinHandle[T]
// downcasts at the public API boundary.
type JoinState struct {
	mu     sync.Mutex
	phase  joinPhase
	waiter func()
	output any
	panicked bool
}

// SetOutput stores the future's result and, if a joiner had already
// registered interest, wakes it. Calling this twice is an invariant
// violation: a future is polled to completion exactly once.
func (j *JoinState) SetOutput(out any) {
	j.mu.Lock()
	if j.phase == jReady || j.phase == jFinished {
		j.mu.Unlock()
		rterr.Invariant("join state: output set twice")
	}
	j.output = out
	w := j.waiter
	j.waiter = nil
	j.phase = jReady
	j.mu.Unlock()
	if w != nil {
		w()
	}
}

// SetPanicked marks the task as having panicked during poll: its output
// slot stays empty forever and any joiner observes Cancelled rather than a
// value (spec's user-visible failure behavior for a panicking task).
func (j *JoinState) SetPanicked() {
	j.mu.Lock()
	w := j.waiter
	j.waiter = nil
	j.panicked = true
	j.phase = jReady
	j.mu.Unlock()
	if w != nil {
		w()
	}
}

// TakeOutput consumes the stored output. Calling it a second time, or
// before the task has completed, is an invariant violation (for the
// double-take case) or a programmer error the caller must prevent by first
// awaiting readiness (for the too-early case, signalled by ok=false rather
// than a panic, since "not ready yet" is routine rather than a misuse).
func (j *JoinState) TakeOutput() (out any, panicked bool, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase == jFinished {
		rterr.Invariant("join state: output taken twice")
	}
	if j.phase != jReady {
		return nil, false, false
	}
	out, panicked = j.output, j.panicked
	j.output = nil
	j.phase = jFinished
	return out, panicked, true
}

// RegisterWaiter arranges for wake to be called once the output becomes
// available. If it is already available, RegisterWaiter returns true
// immediately without storing wake.
func (j *JoinState) RegisterWaiter(wake func()) (alreadyReady bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase == jReady || j.phase == jFinished {
		return true
	}
	j.waiter = wake
	j.phase = jPending
	return false
}

// JoinHandle is the caller-facing handle to a spawned task's eventual
// output, generic over the task's concrete Output type.
type JoinHandle[T any] struct {
	state *JoinState
}

// NewJoinHandle wraps t's join state into a JoinHandle typed for T, for the
// facade package's Spawn to hand back to callers. T must match the type the
// task's future actually produces; a mismatch surfaces as a zero value on
// Future(), not a panic (the same best-effort downcast join.rs's OutputHandle
// uses).
func NewJoinHandle[T any](t *Task) JoinHandle[T] {
	return JoinHandle[T]{state: t.JoinState()}
}

// JoinResult is the value a JoinHandle's Future resolves to: the task's
// output, or Panicked set if the task's future panicked instead of
// completing normally (in which case Value is the zero value of T).
// Exported so callers composing a join into their own future's Poll can
// name the type their output any holds.
type JoinResult[T any] struct {
	Value    T
	Panicked bool
}

// Future returns a Future that resolves once the task's output is ready,
// suitable for composing into another task's poll loop (e.g. awaiting a
// child task from a parent task's Future). Once Ready, its output is a
// JoinResult[T].
func (h JoinHandle[T]) Future() Future {
	return FutureFunc(func(wake func()) (any, bool) {
		if h.state.RegisterWaiter(wake) {
			out, panicked, ok := h.state.TakeOutput()
			if !ok {
				// another waiter raced us and already took it; treat as
				// not-yet-ready from this caller's perspective is wrong
				// (output is gone) — this handle must only be awaited once.
				rterr.Invariant("join handle: output already taken by another waiter")
			}
			if panicked {
				return JoinResult[T]{Panicked: true}, true
			}
			v, _ := out.(T)
			return JoinResult[T]{Value: v}, true
		}
		return nil, false
	})
}
