package station

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Supervisor owns the station's full pipeline: the PCM transport, the
// control-plane event client, the optional PID buffer poller, the
// segment scheduler, and the playout engine (Clock A).
type Supervisor struct {
	Scheduler *SegmentScheduler
	Transport *Transport
	Events    *EventClient
	PID       *PIDController
	Buffer    *BufferClient
	Engine    *PlayoutEngine

	cancel     context.CancelFunc
	engineDone chan struct{}
}

// Config carries the station supervisor's wiring parameters.
type Config struct {
	TowerNetwork string // "tcp" or "unix"
	TowerPCMAddr string
	TowerWSURL   string
	TowerHTTPURL string

	PrepLead time.Duration

	PID PIDConfig

	PollInterval time.Duration
	QueryTimeout time.Duration
}

// NewSupervisor assembles the station pipeline from configuration.
func NewSupervisor(cfg Config) *Supervisor {
	scheduler := NewSegmentScheduler()
	transport := NewTransport(cfg.TowerNetwork, cfg.TowerPCMAddr)
	events := NewEventClient(cfg.TowerWSURL)
	pid := NewPIDController(cfg.PID)
	bufferClient := NewBufferClient(cfg.TowerHTTPURL, cfg.QueryTimeout, pid)
	engine := NewPlayoutEngine(scheduler, transport, events, pid, cfg.PrepLead)

	return &Supervisor{
		Scheduler: scheduler,
		Transport: transport,
		Events:    events,
		PID:       pid,
		Buffer:    bufferClient,
		Engine:    engine,
	}
}

// Start launches every pipeline component. It returns immediately; use
// Stop to tear everything down.
func (s *Supervisor) Start(ctx context.Context, pollInterval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.Transport.Run(ctx)
	go s.Events.Run(ctx)
	if s.PID.cfg.Enabled {
		go s.Buffer.Run(ctx, pollInterval)
	}

	s.engineDone = make(chan struct{})
	go func() {
		defer close(s.engineDone)
		s.Engine.Run(ctx)
	}()

	slog.Info("station pipeline started")
}

// Stop requests a graceful shutdown: the playout engine is told to finish
// its current segment and stop pulling new ones, and Stop blocks until it
// does (publishing station_shutting_down first, so the tower's grace
// policy already knows to suppress underrun warnings while we drain).
// Only once the engine has drained — or drainTimeout elapses, whichever
// comes first — are the transport, event client, and buffer poller torn
// down. A drainTimeout of zero skips the wait entirely.
func (s *Supervisor) Stop(drainTimeout time.Duration) {
	s.Engine.RequestShutdown()

	if s.engineDone != nil && drainTimeout > 0 {
		select {
		case <-s.engineDone:
		case <-time.After(drainTimeout):
			slog.Warn("station drain timed out, stopping mid-segment", "timeout", drainTimeout)
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	slog.Info("station pipeline stopped")
}

// Enqueue is the only entry point content logic needs against the core:
// it places one AudioEvent at the back of the scheduler's bounded queue.
func (s *Supervisor) Enqueue(ev AudioEvent) error {
	if ev.Path == "" {
		return fmt.Errorf("audio event missing path")
	}
	s.Scheduler.Enqueue(ev)
	return nil
}
