package tower

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/retrowaves/retrowaves/internal/frame"
)

func TestEncoderManager_CountsFramesAndFallback(t *testing.T) {
	enc := NewFFmpegSupervisor("128k", "48000", "2", &discardWriter{})
	mgr := NewEncoderManager(enc, nil, time.Millisecond)
	time.Sleep(5 * time.Millisecond) // let the initial grace window elapse

	mgr.PumpFrame(frame.New(), false)
	mgr.PumpFrame(frame.New(), true)

	stats := mgr.Snapshot()
	assert.Equal(t, uint64(2), stats.FramesServed)
	assert.Equal(t, uint64(1), stats.FallbackServed)
	assert.False(t, stats.EncoderRunning)
}

func TestEncoderManager_GraceWindowSuppressesWarning(t *testing.T) {
	enc := NewFFmpegSupervisor("128k", "48000", "2", &discardWriter{})
	mgr := NewEncoderManager(enc, nil, time.Hour)

	// Within the grace window, inGraceWindow must hold.
	assert.True(t, mgr.inGraceWindow())
}

func TestEncoderManager_ShutdownDrainSuppressesWarning(t *testing.T) {
	enc := NewFFmpegSupervisor("128k", "48000", "2", &discardWriter{})
	events := NewEventChannel()
	mgr := NewEncoderManager(enc, events, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	assert.False(t, mgr.inGraceWindow())
	events.Publish(ControlEvent{Kind: KindStationShuttingDown, TS: time.Now()})
	assert.True(t, events.ShuttingDown())
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
