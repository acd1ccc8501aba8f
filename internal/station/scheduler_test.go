package station

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentScheduler_FIFOOrder(t *testing.T) {
	s := NewSegmentScheduler()
	s.Enqueue(AudioEvent{Path: "a.mp3"})
	s.Enqueue(AudioEvent{Path: "b.mp3"})

	ev, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "a.mp3", ev.Path)

	ev, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, "b.mp3", ev.Path)
}

func TestSegmentScheduler_PopEmptyReturnsFalse(t *testing.T) {
	s := NewSegmentScheduler()
	_, ok := s.Pop()
	assert.False(t, ok)
}

func TestSegmentScheduler_OverflowDropsOldest(t *testing.T) {
	s := NewSegmentScheduler()
	for i := 0; i < intentQueueCapacity+3; i++ {
		s.Enqueue(AudioEvent{Path: string(rune('a' + i))})
	}

	assert.Equal(t, intentQueueCapacity, s.Len())
	assert.Equal(t, uint64(3), s.Dropped())

	ev, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, string(rune('a'+3)), ev.Path, "the 3 oldest events should have been dropped")
}
