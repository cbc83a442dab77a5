package task

import (
	"sync"

	"github.com/vcpurt/vcpurt/internal/gid"
)

// currentByGoroutine tracks, for every vCPU goroutine presently polling a
// task, which Task it is polling.
var currentByGoroutine sync.Map // map[uint64]*Task

// SetCurrent records t as the task being polled by the calling goroutine.
// Called by the executor immediately before Future.Poll, and with nil
// immediately after, so Current() is only ever non-nil during a poll.
func SetCurrent(t *Task) {
	g := gid.Current()
	if t == nil {
		currentByGoroutine.Delete(g)
		return
	}
	currentByGoroutine.Store(g, t)
}

// Current returns the Task currently being polled by the calling
// goroutine, or nil if none (i.e. the calling goroutine is not a vCPU
// executor mid-poll).
func Current() *Task {
	v, ok := currentByGoroutine.Load(gid.Current())
	if !ok {
		return nil
	}
	return v.(*Task)
}
