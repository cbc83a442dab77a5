package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vcpurt/vcpurt/priority"
	"github.com/vcpurt/vcpurt/task"
)

func mkTask(p priority.SchedPriority, affinity task.Affinity) *task.Task {
	return task.New(task.FutureFunc(func(func()) (any, bool) { return nil, true }), p, affinity)
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	s := New(1)
	a := mkTask(priority.SchedNormal, task.AffinityAll(1))
	b := mkTask(priority.SchedNormal, task.AffinityAll(1))
	s.Enqueue(a)
	s.Enqueue(b)
	require.Same(t, a, s.Dequeue(0), "expected FIFO order, got wrong first task")
	require.Same(t, b, s.Dequeue(0), "expected FIFO order, got wrong second task")
}

func TestEnqueuePrefersLeastLoaded(t *testing.T) {
	s := New(2)
	// Enqueue tasks that stay enqueued (no dequeue); Enqueue itself spreads
	// them over both vCPUs.
	for i := 0; i < 5; i++ {
		s.Enqueue(mkTask(priority.SchedNormal, task.AffinityAll(2)))
	}
	require.Equal(t, 5, s.Worker(0).Len()+s.Worker(1).Len(), "expected all 5 tasks placed somewhere")
	// A further enqueue should prefer whichever worker has fewer tasks.
	before0, before1 := s.Worker(0).Len(), s.Worker(1).Len()
	s.Enqueue(mkTask(priority.SchedNormal, task.AffinityAll(2)))
	after0, after1 := s.Worker(0).Len(), s.Worker(1).Len()
	if before0 < before1 {
		require.Equal(t, before0+1, after0, "expected new task to land on the less loaded worker 0")
	}
	if before1 < before0 {
		require.Equal(t, before1+1, after1, "expected new task to land on the less loaded worker 1")
	}
}

func TestDequeueRespectsAffinityFromInjector(t *testing.T) {
	s := New(2)
	// Filling a worker queue to force overflow is expensive to set up here,
	// so push a task whose affinity excludes vCPU 0 straight onto the
	// injector; both workers stay empty, so Dequeue falls through to it.
	pinned := mkTask(priority.SchedNormal, task.AffinityOf(1))
	s.inj.Push(pinned)
	require.Nil(t, s.Dequeue(0), "vCPU 0 must not dequeue a task pinned to vCPU 1")
	require.Same(t, pinned, s.Dequeue(1), "vCPU 1 should be able to dequeue the pinned task from the injector")
}

func TestLen(t *testing.T) {
	s := New(1)
	require.Equal(t, 0, s.Len(), "expected empty scheduler to have Len 0")
	s.Enqueue(mkTask(priority.SchedNormal, task.AffinityAll(1)))
	require.Equal(t, 1, s.Len(), "expected Len 1 after one enqueue")
}

func TestDrainRespectsAffinity(t *testing.T) {
	s := New(2)
	movable := mkTask(priority.SchedNormal, task.AffinityAll(2))
	pinned := mkTask(priority.SchedNormal, task.AffinityOf(0))
	s.workers[0].Push(movable, s.inj)
	s.workers[0].Push(pinned, s.inj)

	drained := s.Drain(0, func(t *task.Task) bool { return t.Affinity.Contains(1) }, 10)
	require.Equal(t, []*task.Task{movable}, drained, "expected only the task with vCPU-1 affinity to be drained")
}
