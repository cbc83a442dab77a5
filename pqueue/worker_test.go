package pqueue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vcpurt/vcpurt/priority"
	"github.com/vcpurt/vcpurt/task"
)

func mkTask(p priority.SchedPriority) *task.Task {
	return task.New(task.FutureFunc(func(func()) (any, bool) { return nil, true }), p, task.AffinityAll(1))
}

func TestPeekableQueueFIFO(t *testing.T) {
	q := NewPeekable(8)
	tasks := []*task.Task{mkTask(priority.SchedNormal), mkTask(priority.SchedNormal), mkTask(priority.SchedNormal)}
	for _, tk := range tasks {
		require.True(t, q.Push(tk), "push should succeed under capacity")
	}
	for _, want := range tasks {
		require.Same(t, want, q.Pop(), "FIFO violated")
	}
}

func TestPeekableQueuePopIfLeavesHead(t *testing.T) {
	q := NewPeekable(8)
	a := mkTask(priority.SchedNormal)
	q.Push(a)
	require.Nil(t, q.PopIf(func(*task.Task) bool { return false }), "expected PopIf to reject and leave head")
	require.False(t, q.IsEmpty(), "task should still be at head after a rejected PopIf")
	require.Same(t, a, q.PopIf(func(*task.Task) bool { return true }), "expected PopIf to return the stashed head")
}

func TestPeekableQueuePushFullReturnsFalse(t *testing.T) {
	q := NewPeekable(1)
	q.Push(mkTask(priority.SchedNormal))
	require.False(t, q.Push(mkTask(priority.SchedNormal)), "expected push on full queue to fail")
}

func TestWorkerNonStrictPriorityBias(t *testing.T) {
	w := NewWorker()
	const n = 1000
	for i := 0; i < n; i++ {
		w.Push(mkTask(priority.SchedHigh), discardOverflow{})
		w.Push(mkTask(priority.SchedNormal), discardOverflow{})
		w.Push(mkTask(priority.SchedLow), discardOverflow{})
	}
	var high, normal, low int
	for i := 0; i < n*3; i++ {
		tk := w.Pop()
		require.NotNil(t, tk, "unexpected empty worker at iteration %d", i)
		switch tk.Priority {
		case priority.SchedHigh:
			high++
		case priority.SchedNormal:
			normal++
		case priority.SchedLow:
			low++
		}
		if i == n-1 {
			// No class has run dry yet: the 5/2/1-in-8 rotation gives
			// 625 High, 250 Normal and 125 Low over the first 1000 pops.
			require.Greater(t, high, normal, "High should dominate Normal")
			require.Greater(t, normal, low, "Normal should dominate Low")
			require.Greater(t, low, 0, "Low must not be starved")
		}
	}
	require.Equal(t, n, high)
	require.Equal(t, n, normal)
	require.Equal(t, n, low)
}

type discardOverflow struct{}

func (discardOverflow) Push(*task.Task) {}
