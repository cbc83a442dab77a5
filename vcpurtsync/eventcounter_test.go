package vcpurtsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	c := New()
	c.Write()
	got, err := c.Read()
	require.NoError(t, err)
	require.EqualValues(t, 1, got)
}

func TestReadThenWrite(t *testing.T) {
	c := New()
	done := make(chan uint64, 1)
	go func() {
		val, err := c.Read()
		if err != nil {
			t.Errorf("Read returned error: %v", err)
			return
		}
		done <- val
	}()

	// Give the reader time to block before writing.
	time.Sleep(20 * time.Millisecond)
	c.Write()

	select {
	case got := <-done:
		require.EqualValues(t, 1, got)
	case <-time.After(time.Second):
		t.Fatal("reader was never woken")
	}
}

func TestReadTimeoutExpires(t *testing.T) {
	c := New()
	timeout := 20 * time.Millisecond
	_, err := c.ReadTimeout(&timeout)
	require.Error(t, err, "expected timeout error on an empty counter")
}

func TestWriteAccumulatesBeforeRead(t *testing.T) {
	c := New()
	c.Write()
	c.Write()
	c.Write()
	got, err := c.Read()
	require.NoError(t, err)
	require.EqualValues(t, 3, got)
}
