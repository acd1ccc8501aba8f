package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrowaves/retrowaves/internal/frame"
)

func mkFrame(tag byte) frame.Frame {
	f := frame.New()
	f[0] = tag
	return f
}

func TestBuffer_PushPop_FIFO(t *testing.T) {
	b := New(4)

	for i := byte(0); i < 3; i++ {
		assert.Equal(t, Accepted, b.Push(mkFrame(i)))
	}

	for i := byte(0); i < 3; i++ {
		f, ok := b.PopBlocking(time.Second)
		require.True(t, ok)
		assert.Equal(t, i, f[0])
	}
}

func TestBuffer_OverflowDropsOldest(t *testing.T) {
	b := New(2)

	assert.Equal(t, Accepted, b.Push(mkFrame(1)))
	assert.Equal(t, Accepted, b.Push(mkFrame(2)))
	assert.Equal(t, Overflowed, b.Push(mkFrame(3)))

	f, ok := b.PopBlocking(time.Second)
	require.True(t, ok)
	assert.Equal(t, byte(2), f[0], "oldest frame (tag 1) should have been evicted")

	f, ok = b.PopBlocking(time.Second)
	require.True(t, ok)
	assert.Equal(t, byte(3), f[0])

	snap := b.Snapshot()
	assert.Equal(t, uint64(1), snap.OverflowCount)
}

func TestBuffer_PopBlockingTimesOutWhenEmpty(t *testing.T) {
	b := New(2)

	start := time.Now()
	_, ok := b.PopBlocking(30 * time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestBuffer_PopBlockingWakesOnPush(t *testing.T) {
	b := New(2)

	done := make(chan frame.Frame, 1)
	go func() {
		f, ok := b.PopBlocking(time.Second)
		if ok {
			done <- f
		} else {
			done <- nil
		}
	}()

	time.Sleep(10 * time.Millisecond)
	b.Push(mkFrame(9))

	select {
	case f := <-done:
		require.NotNil(t, f)
		assert.Equal(t, byte(9), f[0])
	case <-time.After(time.Second):
		t.Fatal("PopBlocking did not wake on Push")
	}
}

func TestBuffer_SnapshotRatio(t *testing.T) {
	b := New(10)
	for i := 0; i < 5; i++ {
		b.Push(mkFrame(byte(i)))
	}

	snap := b.Snapshot()
	assert.Equal(t, 10, snap.Capacity)
	assert.Equal(t, 5, snap.Count)
	assert.InDelta(t, 0.5, snap.Ratio, 0.0001)
}

func TestBuffer_OverflowCountIsMonotonic(t *testing.T) {
	b := New(1)
	b.Push(mkFrame(1))
	b.Push(mkFrame(2))
	b.Push(mkFrame(3))

	snap := b.Snapshot()
	assert.Equal(t, uint64(2), snap.OverflowCount)

	b.PopBlocking(time.Millisecond)
	snap = b.Snapshot()
	assert.Equal(t, uint64(2), snap.OverflowCount, "draining the buffer must not reset overflow_count")
}

func TestNew_ClampsCapacityToOne(t *testing.T) {
	b := New(0)
	assert.Equal(t, 1, b.Snapshot().Capacity)
}
