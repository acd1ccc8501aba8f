// Package fallback synthesizes PCM frames on demand, without I/O, for use
// when no live frame is available. It is the terminal fallback: it must
// never fail, never block, and never allocate outside its own small
// reusable buffer.
package fallback

import (
	"math"

	"github.com/retrowaves/retrowaves/internal/frame"
)

// Mode selects the kind of frame the Generator synthesizes.
type Mode int

const (
	// Silence yields all-zero frames.
	Silence Mode = iota
	// Tone yields a continuous 440Hz sine wave at 80% amplitude.
	Tone
)

const (
	toneFrequencyHz = 440.0
	toneAmplitude   = 0.8 * 32767.0
)

// Generator produces fallback frames. It holds only a phase accumulator
// and a reusable output buffer; NextFrame is pure aside from that internal
// state, so phase stays continuous across calls.
type Generator struct {
	mode  Mode
	phase float64
	buf   frame.Frame
}

// New creates a Generator in the given mode.
func New(mode Mode) *Generator {
	return &Generator{
		mode: mode,
		buf:  frame.New(),
	}
}

// SetMode changes the synthesis mode. It does not reset phase, so a
// silence→tone→silence sequence stays phase-continuous.
func (g *Generator) SetMode(mode Mode) {
	g.mode = mode
}

// NextFrame returns one fallback frame. The returned Frame aliases the
// Generator's internal buffer and is only valid until the next call;
// callers that need to retain it must Clone it.
func (g *Generator) NextFrame() frame.Frame {
	switch g.mode {
	case Tone:
		g.writeTone()
	default:
		g.writeSilence()
	}
	return g.buf
}

func (g *Generator) writeSilence() {
	for i := range g.buf {
		g.buf[i] = 0
	}
}

func (g *Generator) writeTone() {
	const step = 2 * math.Pi * toneFrequencyHz / frame.SampleRate

	for s := 0; s < frame.SamplesPerFrame; s++ {
		sample := int16(toneAmplitude * math.Sin(g.phase))
		g.phase += step
		if g.phase >= 2*math.Pi {
			g.phase -= 2 * math.Pi
		}

		off := s * frame.Channels * frame.BytesPerSample
		for c := 0; c < frame.Channels; c++ {
			i := off + c*frame.BytesPerSample
			g.buf[i] = byte(sample)
			g.buf[i+1] = byte(sample >> 8)
		}
	}
}
