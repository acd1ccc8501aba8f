package tower

import (
	"context"
	"log/slog"
	"time"

	"github.com/retrowaves/retrowaves/internal/clock"
	"github.com/retrowaves/retrowaves/internal/fallback"
	"github.com/retrowaves/retrowaves/internal/frame"
	"github.com/retrowaves/retrowaves/internal/metrics"
	"github.com/retrowaves/retrowaves/internal/ring"
)

// Supervisor owns the tower's full pipeline: PCM ingress, the ring buffer,
// Clock B, the audio pump, the ffmpeg encoder, and HTTP fan-out. It starts
// every component and tears them all down together on Stop.
type Supervisor struct {
	Buf         *ring.Buffer
	Ingress     *Ingress
	Clock       *clock.Clock
	Pump        *Pump
	Encoder     *FFmpegSupervisor
	EncoderMgr  *EncoderManager
	Broadcaster *Broadcaster
	Events      *EventChannel
	Metrics     *metrics.Metrics

	cancel context.CancelFunc
}

// NewSupervisor assembles the full tower pipeline from configuration.
func NewSupervisor(bufCapacity, clientBufferBytes int, bitrate, sampleRate, channels string, popTimeout, graceSeconds time.Duration) *Supervisor {
	buf := ring.New(bufCapacity)
	broadcaster := NewBroadcaster(clientBufferBytes)
	ffmpeg := NewFFmpegSupervisor(bitrate, sampleRate, channels, broadcaster)
	events := NewEventChannel()
	encMgr := NewEncoderManager(ffmpeg, events, graceSeconds)
	fb := fallback.New(fallback.Silence)
	pump := NewPump(buf, fb, encMgr, popTimeout)
	c := clock.New(frame.Period)
	c.Register(pump.AsCallback())

	return &Supervisor{
		Buf:         buf,
		Clock:       c,
		Pump:        pump,
		Encoder:     ffmpeg,
		EncoderMgr:  encMgr,
		Broadcaster: broadcaster,
		Events:      events,
		Metrics:     metrics.New(),
	}
}

// AttachIngress wires a listening Ingress into the supervisor's buffer,
// and arranges for every station reconnect to restart the encoder
// manager's silent grace window. Must be called before Start.
func (s *Supervisor) AttachIngress(in *Ingress) {
	in.onConnect = s.EncoderMgr.NotifyStationConnected
	s.Ingress = in
}

// Start launches every pipeline component. It returns immediately; use
// Stop to tear everything down.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.Ingress != nil {
		go s.Ingress.Run(ctx)
	}
	go s.Encoder.Run(ctx)
	go s.Clock.Run()
	go s.reportMetrics(ctx)

	slog.Info("tower pipeline started")
}

// Stop halts every pipeline component and waits for the clock to settle.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.Clock.Stop()
	if s.Ingress != nil {
		_ = s.Ingress.Close()
	}
	slog.Info("tower pipeline stopped")
}

// reportMetrics periodically copies internal counters into the Prometheus
// collectors. Counters here are cumulative snapshots, not deltas, so we
// track the last-seen value to compute Add() increments.
func (s *Supervisor) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastFrames, lastFallback, lastOverflow, lastRestarts, lastListenerDrops uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.EncoderMgr.Snapshot()
			snap := s.Buf.Snapshot()
			listenerDrops := s.Broadcaster.DroppedClients()

			if d := stats.FramesServed - lastFrames; d > 0 {
				s.Metrics.FramesServed.Add(float64(d))
			}
			if d := stats.FallbackServed - lastFallback; d > 0 {
				s.Metrics.FallbackServed.Add(float64(d))
			}
			if d := snap.OverflowCount - lastOverflow; d > 0 {
				s.Metrics.RingOverflows.Add(float64(d))
			}
			if d := stats.EncoderRestarts - lastRestarts; d > 0 {
				s.Metrics.EncoderRestarts.Add(float64(d))
			}
			if d := listenerDrops - lastListenerDrops; d > 0 {
				s.Metrics.ListenerDrops.Add(float64(d))
			}
			lastFrames = stats.FramesServed
			lastFallback = stats.FallbackServed
			lastOverflow = snap.OverflowCount
			lastRestarts = stats.EncoderRestarts
			lastListenerDrops = listenerDrops

			s.Metrics.ActiveListeners.Set(float64(s.Broadcaster.ActiveClients()))
			s.Metrics.BufferRatio.Set(snap.Ratio)
		}
	}
}
