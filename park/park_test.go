package park

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParkUnpark(t *testing.T) {
	p := New(2)
	p.Register(0)
	woken := make(chan struct{})
	go func() {
		p.Park(0)
		close(woken)
	}()
	time.Sleep(20 * time.Millisecond)
	p.Unpark(0)
	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("Park never returned after Unpark")
	}
}

func TestUnparkBeforeParkIsNotLost(t *testing.T) {
	p := New(1)
	p.Register(0)
	p.Unpark(0)
	done := make(chan struct{})
	go func() {
		p.Park(0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a pre-registered Unpark should satisfy the next Park call")
	}
}

func TestUnparkOnUnregisteredVCPUIsNoop(t *testing.T) {
	p := New(1)
	// No Register call: Unpark must be a no-op per the original's
	// `None => return` branch.
	p.Unpark(0)
	select {
	case <-p.slots[0]:
		t.Fatal("Unpark delivered a wakeup to an unregistered vCPU")
	default:
	}
}

func TestParkTimeoutReportsWhetherWoken(t *testing.T) {
	p := New(1)
	p.Register(0)
	require.False(t, p.ParkTimeout(0, 20*time.Millisecond), "expected ParkTimeout to report false with no Unpark call")
	p.Unpark(0)
	require.True(t, p.ParkTimeout(0, time.Second), "expected ParkTimeout to report true after Unpark")
}

func TestUnparkAllWakesEveryRegisteredVCPU(t *testing.T) {
	p := New(3)
	for i := 0; i < 3; i++ {
		p.Register(i)
	}
	done := make(chan int, 3)
	for i := 0; i < 3; i++ {
		go func(vcpu int) {
			p.Park(vcpu)
			done <- vcpu
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	p.UnparkAll()
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		select {
		case v := <-done:
			seen[v] = true
		case <-time.After(time.Second):
			t.Fatalf("only %d of 3 vCPUs woke", len(seen))
		}
	}
}

func TestUnregisterStopsFurtherUnparks(t *testing.T) {
	p := New(1)
	p.Register(0)
	p.Unregister(0)
	p.Unpark(0)
	select {
	case <-p.slots[0]:
		t.Fatal("Unpark delivered a wakeup after Unregister")
	default:
	}
}
