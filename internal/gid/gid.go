// Package gid extracts the runtime-assigned goroutine id from a stack
// trace, the same trick the teacher's event loop uses (eventloop/loop.go's
// getGoroutineID) to identify "is this goroutine the loop's own goroutine."
// Go has no supported goroutine-local-storage API; this is the idiomatic
// workaround for associating process-wide state with a specific goroutine,
// used here to answer "which task (or which vCPU) is this goroutine."
package gid

import "runtime"

// Current returns the calling goroutine's numeric id.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
