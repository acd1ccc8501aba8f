package station

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/retrowaves/retrowaves/internal/frame"
)

// PrepLeadDefault is how far before a segment's projected end the engine
// invokes its prep hook, absent configuration.
const PrepLeadDefault = 5 * time.Second

// PlayoutEngine is Clock A: it converts the scheduler's AudioEvent stream
// into a continuous, real-time-paced PCM stream pushed over the transport.
// It owns decoder processes, paces decoding against an absolute deadline,
// detects segment boundaries, and emits lifecycle events.
type PlayoutEngine struct {
	scheduler *SegmentScheduler
	transport *Transport
	events    *EventClient
	pid       *PIDController

	prepLead time.Duration

	// OnPrep is invoked at most once per segment, prepLead before its
	// projected end, so content logic can choose the next AudioEvent.
	// The engine never blocks on it; a nil or slow hook just means the
	// next pop may come up empty, which the engine already tolerates.
	OnPrep func()

	state SegmentState

	shuttingDown atomic.Bool
}

// NewPlayoutEngine wires a PlayoutEngine to its collaborators.
func NewPlayoutEngine(scheduler *SegmentScheduler, transport *Transport, events *EventClient, pid *PIDController, prepLead time.Duration) *PlayoutEngine {
	if prepLead <= 0 {
		prepLead = PrepLeadDefault
	}
	return &PlayoutEngine{
		scheduler: scheduler,
		transport: transport,
		events:    events,
		pid:       pid,
		prepLead:  prepLead,
	}
}

// RequestShutdown begins a graceful drain: no new segments start once the
// current one finishes, and underrun coverage is left to the tower's own
// fallback. Run only observes this after the in-flight segment reaches a
// boundary (EOF/failure) or the pop loop finds the queue empty — it does
// not itself cancel anything, so the caller must let Run return on its own
// (or cancel ctx) to actually stop the pacing loop mid-segment.
func (e *PlayoutEngine) RequestShutdown() {
	e.shuttingDown.Store(true)
	e.events.Publish(ControlEvent{Kind: KindStationShuttingDown, TS: time.Now()})
}

// Run drives the pacing loop until ctx is cancelled or shutdown drains.
func (e *PlayoutEngine) Run(ctx context.Context) {
	e.events.Publish(ControlEvent{Kind: KindStationStartingUp, TS: time.Now()})

	fb := newLocalFallback()

	for {
		if ctx.Err() != nil {
			return
		}

		ev, ok := e.scheduler.Pop()
		if !ok {
			if e.shuttingDown.Load() {
				return
			}
			// Nothing queued yet: emit local fallback silence while
			// waiting, paced at the nominal frame period so we don't
			// spin, rather than blocking indefinitely.
			e.transport.WriteFrame(fb.NextFrame())
			select {
			case <-ctx.Done():
				return
			case <-time.After(frame.Period):
			}
			continue
		}

		e.runSegment(ctx, ev)

		if e.shuttingDown.Load() {
			return
		}
	}
}

func (e *PlayoutEngine) runSegment(ctx context.Context, ev AudioEvent) {
	e.state = SegmentState{Event: ev, WallclockStart: time.Now(), Phase: PhasePending}

	decoder, err := StartDecoder(ctx, ev.Path)
	if err != nil {
		e.failSegment(ev, err)
		return
	}
	defer decoder.Close()

	e.state.Phase = PhaseDecoding
	slog.Info("segment.decoding", "path", ev.Path, "type", string(ev.Type))
	e.emitSegmentStart(ev)

	var projectedEnd time.Time
	if d, err := probeDuration(ctx, ev.Path); err == nil {
		projectedEnd = e.state.WallclockStart.Add(d)
	}
	prepEmitted := false

	deadline := time.Now().Add(frame.Period)

	for {
		if ctx.Err() != nil {
			return
		}

		f, err := decoder.ReadFrameWithStallGuard()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// A short final read (io.ErrUnexpectedEOF upstream) still
				// comes back here as a zero-padded frame paired with
				// io.EOF; flush it before finishing so the trailing audio
				// isn't dropped.
				if f != nil {
					e.emitFrame(f, ev)
				}
				e.state.Phase = PhaseFinishing
				slog.Info("segment.finishing", "path", ev.Path, "bytes_emitted", e.state.BytesEmitted)
				e.finishSegment()
				return
			}
			e.failSegment(ev, err)
			return
		}

		e.emitFrame(f, ev)

		if !prepEmitted && !projectedEnd.IsZero() && time.Until(projectedEnd) <= e.prepLead {
			prepEmitted = true
			if e.OnPrep != nil {
				e.OnPrep()
			}
		}

		adjustment := e.pid.Adjustment(time.Now())
		period := frame.Period + adjustment
		deadline = deadline.Add(period)
		sleepFor := time.Until(deadline)
		if sleepFor < 0 {
			// Behind schedule: skip the sleep for this iteration only and
			// move the deadline forward by the whole periods missed, so
			// the loop never catches up in a burst.
			if period > 0 {
				deadline = deadline.Add(-sleepFor / period * period)
			}
			sleepFor = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepFor):
		}
	}
}

func (e *PlayoutEngine) emitFrame(f frame.Frame, ev AudioEvent) {
	if ev.Gain != 1.0 {
		frame.ApplyGain(f, ev.Gain)
	}
	e.transport.WriteFrame(f)
	e.state.BytesEmitted += int64(len(f))
}

func (e *PlayoutEngine) failSegment(ev AudioEvent, err error) {
	e.state.Phase = PhaseFailed
	slog.Error("segment.failed", "path", ev.Path, "error", err)
}

func (e *PlayoutEngine) emitSegmentStart(ev AudioEvent) {
	kind := KindNewSong
	if ev.Type == TypeTalk {
		kind = KindDJTalking
	}
	e.events.Publish(ControlEvent{
		Kind: kind,
		TS:   time.Now(),
		Meta: map[string]any{"path": ev.Path, "type": string(ev.Type)},
	})
}

func (e *PlayoutEngine) finishSegment() {
	e.state.WallclockEnd = time.Now()
	e.state.Phase = PhaseDone
	slog.Info("segment.done", "path", e.state.Event.Path,
		"bytes_emitted", e.state.BytesEmitted,
		"duration", e.state.WallclockEnd.Sub(e.state.WallclockStart))
}

// probeDuration shells out to ffprobe for a file's duration, used only to
// schedule the prep-window hook. Failure is non-fatal: the engine simply
// runs without a prep hook for that segment.
func probeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// localFallback synthesizes silence for gaps between scheduler pops,
// independent of the tower's own fallback generator.
type localFallback struct {
	buf frame.Frame
}

func newLocalFallback() *localFallback {
	return &localFallback{buf: frame.New()}
}

func (f *localFallback) NextFrame() frame.Frame {
	for i := range f.buf {
		f.buf[i] = 0
	}
	return f.buf
}
