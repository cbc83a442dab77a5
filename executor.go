package vcpurt

import (
	"context"
	"time"

	"github.com/vcpurt/vcpurt/internal/obs"
	"github.com/vcpurt/vcpurt/internal/rtlog"
	"github.com/vcpurt/vcpurt/park"
	"github.com/vcpurt/vcpurt/scheduler"
)

// parkPollInterval bounds how long an idle executor blocks in ParkTimeout
// before re-checking its queues and the shutdown flag. Enqueue does not
// unpark a parked executor, so a newly enqueued task waits at most this long
// before an idle executor picks it up.
const parkPollInterval = 200 * time.Millisecond

// runExecutor is one vCPU's run loop. Grounded directly on spec.md §4.5's
// numbered steps, reproduced 1:1 below.
func runExecutor(self int, sched *scheduler.Scheduler, parks *park.Parks, rec *obs.Recorder, log rtlog.Logger, stop <-chan struct{}) {
	// 1. Register with parking.
	scheduler.SetCurrentVCPU(self)
	defer scheduler.SetCurrentVCPU(-1)
	parks.Register(self)
	defer parks.Unregister(self)

	for {
		// a. Dequeue, or park until unparked.
		t := sched.Dequeue(self)
		if t == nil {
			select {
			case <-stop:
				return
			default:
			}
			parks.ParkTimeout(self, parkPollInterval)
			continue
		}

		// c. Construct a Waker whose wake() re-enqueues t.
		wake := func() { sched.Enqueue(t) }

		// d. Poll t.future with that waker.
		start := time.Now()
		ready := t.Poll(wake)

		// e/f. Ready completes the task (Task.Poll already handled the join
		// state, locals clear, and ClearChildTID side effect internally);
		// Pending means ownership transferred to whatever the future
		// suspended on, so the executor must not touch t again.
		if ready {
			rec.Add(obs.MetricTasksComplete, 1)
			rec.EmitComplete(context.Background(), obs.CompleteEvent{TaskID: t.ID, Elapsed: time.Since(start)})
			log.Log(rtlog.LevelDebug, "task completed", rtlog.Int("vcpu", self))
		}

		// 3. On shutdown, keep draining (the next Dequeue call) until the
		// scheduler reports empty; the stop check at the top of the loop
		// then exits once Dequeue returns nil.
	}
}
