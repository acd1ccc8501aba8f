package tower

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrowaves/retrowaves/internal/fallback"
	"github.com/retrowaves/retrowaves/internal/frame"
	"github.com/retrowaves/retrowaves/internal/ring"
)

type recordingSink struct {
	mu          sync.Mutex
	frames      int
	fromFallbck int
}

func (s *recordingSink) PumpFrame(f frame.Frame, fromFallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if fromFallback {
		s.fromFallbck++
	}
}

func TestPump_ServesBufferedFrameWhenAvailable(t *testing.T) {
	buf := ring.New(4)
	buf.Push(frame.New())

	fb := fallback.New(fallback.Silence)
	sink := &recordingSink{}
	p := NewPump(buf, fb, sink, 10*time.Millisecond)

	p.Tick(time.Now())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.frames)
	assert.Equal(t, 0, sink.fromFallbck)
	assert.Equal(t, uint64(0), p.Underruns())
}

func TestPump_FallsBackOnEmptyBuffer(t *testing.T) {
	buf := ring.New(4)
	fb := fallback.New(fallback.Silence)
	sink := &recordingSink{}
	p := NewPump(buf, fb, sink, 5*time.Millisecond)

	p.Tick(time.Now())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.frames)
	assert.Equal(t, 1, sink.fromFallbck)
	assert.Equal(t, uint64(1), p.Underruns())
}

func TestPump_UnderrunsAccumulate(t *testing.T) {
	buf := ring.New(2)
	fb := fallback.New(fallback.Silence)
	sink := &recordingSink{}
	p := NewPump(buf, fb, sink, time.Millisecond)

	for i := 0; i < 3; i++ {
		p.Tick(time.Now())
	}

	require.Equal(t, uint64(3), p.Underruns())
}
