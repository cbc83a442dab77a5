package waiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitTimesOutWithNoWaker(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	defer w.Close()

	d := 20 * time.Millisecond
	start := time.Now()
	err = w.WaitMut(&d)
	require.Error(t, err, "expected timeout error")
	require.Zero(t, d, "expected remaining budget to be zero")
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond, "returned too early")
}

func TestWakeBeforeWaitIsObserved(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	defer w.Close()

	w.Waker().Wake()
	require.NoError(t, w.Wait(nil), "Wait after pre-wake should succeed immediately")
}

func TestWakeDuringWaitResumes(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	defer w.Close()

	go func() {
		time.Sleep(5 * time.Millisecond)
		w.Waker().Wake()
	}()
	require.NoError(t, w.Wait(nil))
}

func TestBatchWakeWakesAllWaiters(t *testing.T) {
	const n = 16
	waiters := make([]*Waiter, n)
	wakers := make([]Waker, n)
	var wg sync.WaitGroup
	results := make([]error, n)

	for i := range waiters {
		w, err := New()
		require.NoError(t, err)
		waiters[i] = w
		wakers[i] = w.Waker()
	}
	defer func() {
		for _, w := range waiters {
			w.Close()
		}
	}()

	for i := range waiters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = waiters[i].Wait(nil)
		}(i)
	}
	time.Sleep(5 * time.Millisecond) // let goroutines reach Wait's slow path
	require.NoError(t, BatchWake(wakers))
	wg.Wait()
	for i, err := range results {
		require.NoError(t, err, "waiter %d", i)
	}
}

func TestResetAfterSuccessfulWaitIsNoop(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	defer w.Close()

	w.Waker().Wake()
	require.NoError(t, w.Wait(nil))
	w.Reset() // must not panic: state is Init after a successful wait
}

func TestWaiterQueueDoubleEnqueuePanics(t *testing.T) {
	q := NewQueue()
	w, _ := New()
	defer w.Close()
	q.Enqueue(w)
	require.Panics(t, func() { q.Enqueue(w) }, "expected panic on double enqueue")
}

func TestWaiterQueueWakeAll(t *testing.T) {
	q := NewQueue()
	const n = 4
	waiters := make([]*Waiter, n)
	var wg sync.WaitGroup
	for i := range waiters {
		w, _ := New()
		waiters[i] = w
		q.Enqueue(w)
		wg.Add(1)
		go func(w *Waiter) {
			defer wg.Done()
			_ = w.Wait(nil)
		}(w)
	}
	time.Sleep(5 * time.Millisecond)
	q.WakeAll()
	wg.Wait()
	for _, w := range waiters {
		w.Close()
	}
}
