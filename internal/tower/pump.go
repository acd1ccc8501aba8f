// Package tower implements the tower-side playout pipeline: PCM ingress,
// the ring buffer, the emission metronome, encoding, and HTTP fan-out.
package tower

import (
	"time"

	"github.com/retrowaves/retrowaves/internal/clock"
	"github.com/retrowaves/retrowaves/internal/fallback"
	"github.com/retrowaves/retrowaves/internal/frame"
	"github.com/retrowaves/retrowaves/internal/ring"
)

// FrameSink receives each frame the pump produces, one per tick, whether it
// came from the ring buffer or from the fallback generator.
type FrameSink interface {
	PumpFrame(f frame.Frame, fromFallback bool)
}

// Pump drains the ring buffer on Clock B's tick, handing every frame to a
// FrameSink. A tick that finds the ring buffer empty past a short timeout
// is filled from the fallback generator instead; the pump never blocks a
// tick longer than one period.
type Pump struct {
	buf      *ring.Buffer
	fallback *fallback.Generator
	sink     FrameSink

	popTimeout time.Duration

	underruns uint64
}

// NewPump wires a Pump to its buffer, fallback generator and sink. popTimeout
// should be no greater than the clock's tick period.
func NewPump(buf *ring.Buffer, fb *fallback.Generator, sink FrameSink, popTimeout time.Duration) *Pump {
	return &Pump{
		buf:        buf,
		fallback:   fb,
		sink:       sink,
		popTimeout: popTimeout,
	}
}

// Tick implements clock.Callback. It pops one frame from the ring buffer,
// falling back to synthesized audio if none arrives within popTimeout.
func (p *Pump) Tick(_ time.Time) {
	f, ok := p.buf.PopBlocking(p.popTimeout)
	if !ok {
		p.underruns++
		p.sink.PumpFrame(p.fallback.NextFrame(), true)
		return
	}
	p.sink.PumpFrame(f, false)
}

// AsCallback adapts Tick to clock.Callback for Clock.Register.
func (p *Pump) AsCallback() clock.Callback {
	return p.Tick
}

// Underruns returns the lifetime count of ticks served from fallback audio.
func (p *Pump) Underruns() uint64 {
	return p.underruns
}
