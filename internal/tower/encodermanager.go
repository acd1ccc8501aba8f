package tower

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/retrowaves/retrowaves/internal/frame"
	"golang.org/x/time/rate"
)

// EncoderManager is the FrameSink the Pump drives once per tick. It hands
// each frame's raw bytes to the FFmpegSupervisor and implements the grace
// policy: underrun warnings are suppressed for graceSeconds after a
// station connect and during an announced shutdown drain, logged at a
// capped rate otherwise.
type EncoderManager struct {
	encoder *FFmpegSupervisor
	events  *EventChannel

	graceSeconds time.Duration

	mu         sync.Mutex
	graceUntil time.Time

	underrunLimiter *rate.Limiter

	framesServed   atomic.Uint64
	fallbackServed atomic.Uint64
	pushDropped    atomic.Uint64
}

// NewEncoderManager wires an EncoderManager to its FFmpegSupervisor and the
// EventChannel whose shutdown flag gates underrun warnings. Underrun
// warnings outside the grace window are logged at most once per second.
func NewEncoderManager(encoder *FFmpegSupervisor, events *EventChannel, graceSeconds time.Duration) *EncoderManager {
	m := &EncoderManager{
		encoder:         encoder,
		events:          events,
		graceSeconds:    graceSeconds,
		underrunLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	m.NotifyStationConnected()
	return m
}

// NotifyStationConnected restarts the silent grace window, called whenever
// the PCM ingress accepts a fresh station connection.
func (m *EncoderManager) NotifyStationConnected() {
	m.mu.Lock()
	m.graceUntil = time.Now().Add(m.graceSeconds)
	m.mu.Unlock()
}

func (m *EncoderManager) inGraceWindow() bool {
	m.mu.Lock()
	until := m.graceUntil
	m.mu.Unlock()
	return time.Now().Before(until)
}

// PumpFrame implements FrameSink.
func (m *EncoderManager) PumpFrame(f frame.Frame, fromFallback bool) {
	m.framesServed.Add(1)
	if fromFallback {
		m.fallbackServed.Add(1)

		silent := m.inGraceWindow() || (m.events != nil && m.events.ShuttingDown())
		if !silent && m.underrunLimiter.Allow() {
			slog.Warn("ring buffer underrun, serving fallback audio")
		}
	}

	if !m.encoder.PushFrame(f) {
		m.pushDropped.Add(1)
		slog.Warn("encoder pcm queue full, frame dropped")
	}
}

// Stats is a point-in-time snapshot of the manager's counters.
type Stats struct {
	FramesServed    uint64 `json:"frames_served"`
	FallbackServed  uint64 `json:"fallback_served"`
	PushDropped     uint64 `json:"push_dropped"`
	EncoderRunning  bool   `json:"encoder_running"`
	EncoderRestarts uint64 `json:"encoder_restarts"`
}

// Snapshot returns the manager's current counters.
func (m *EncoderManager) Snapshot() Stats {
	return Stats{
		FramesServed:    m.framesServed.Load(),
		FallbackServed:  m.fallbackServed.Load(),
		PushDropped:     m.pushDropped.Load(),
		EncoderRunning:  m.encoder.Running(),
		EncoderRestarts: m.encoder.Restarts(),
	}
}
