package task

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vcpurt/vcpurt/priority"
)

func TestAffinity(t *testing.T) {
	a := AffinityAll(4)
	require.Equal(t, 4, a.Len())
	require.True(t, a.Contains(0))
	require.True(t, a.Contains(3))
	require.False(t, a.Contains(4))
	require.False(t, AffinityOf(1, 2).IsEmpty())
}

func TestSpawnAndComplete(t *testing.T) {
	done := make(chan struct{})
	fut := FutureFunc(func(wake func()) (any, bool) {
		return 42, true
	})
	tsk := New(fut, priority.SchedNormal, AffinityAll(1))
	jh := NewJoinHandle[int](tsk)

	ready := tsk.Poll(func() {})
	require.True(t, ready, "expected task to complete immediately")
	close(done)
	f := jh.Future()
	out, isReady := f.Poll(func() {})
	require.True(t, isReady, "join future should resolve once task output is set")
	require.Equal(t, 42, out.(JoinResult[int]).Value)
}

func TestJoinStateDoubleTakePanics(t *testing.T) {
	js := &JoinState{}
	js.SetOutput(7)
	_, _, ok := js.TakeOutput()
	require.True(t, ok, "expected first take to succeed")
	require.Panics(t, func() { js.TakeOutput() }, "expected second take to panic")
}

func TestLocalKeyLazyInit(t *testing.T) {
	key := NewLocalKey(func() int { return 99 })
	fut := FutureFunc(func(wake func()) (any, bool) {
		var v int
		key.With(func(p *int) { v = *p; *p = v + 1 })
		key.With(func(p *int) { v = *p })
		return v, true
	})
	tsk := New(fut, priority.SchedNormal, AffinityAll(1))
	tsk.Poll(func() {})
	out, _, ok := tsk.JoinState().TakeOutput()
	require.True(t, ok)
	require.Equal(t, 100, out.(int), "expected local to persist across With calls within one poll")
}

func TestCurrentTaskDuringPoll(t *testing.T) {
	tsk := New(FutureFunc(func(wake func()) (any, bool) {
		require.NotNil(t, Current(), "Current() should be non-nil during poll")
		return nil, true
	}), priority.SchedNormal, AffinityAll(1))
	tsk.Poll(func() {})
	require.Nil(t, Current(), "Current() should be nil after poll returns")
}
