package task

// Future is the polymorphic state machine an executor polls. A call to
// Poll either completes the computation (ready=true, with the final
// output) or suspends it (ready=false); in the latter case the future is
// responsible for arranging that wake is eventually called exactly when
// progress can be made again — typically by registering wake as a Waiter's
// Waker, or by capturing it for an I/O completion callback.
//
// This is a deliberately thinner shape than Rust's Future trait: Go has no
// language-level async/await, so there is no Context to thread through,
// just the one callback a suspension point needs. The teacher's own task
// abstraction (internal/alternatetwo.Task{Fn func()}) is even thinner still
// — callback-only, no suspend/resume — because the event loop's microtasks
// always run to completion. Ours adds the ready/not-ready return because
// unlike a microtask, a runtime task can suspend on a Waiter.
type Future interface {
	Poll(wake func()) (out any, ready bool)
}

// FutureFunc adapts a plain poll function into a Future.
type FutureFunc func(wake func()) (any, bool)

func (f FutureFunc) Poll(wake func()) (any, bool) { return f(wake) }
