package station

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Control event kinds the station emits or the tower forwards back.
const (
	KindStationStartingUp   = "station_starting_up"
	KindStationShuttingDown = "station_shutting_down"
	KindNewSong             = "new_song"
	KindDJTalking           = "dj_talking"
)

// ControlEvent mirrors the tower's wire envelope for the control plane.
type ControlEvent struct {
	ID   string         `json:"id,omitempty"`
	Kind string         `json:"kind"`
	TS   time.Time      `json:"ts"`
	Meta map[string]any `json:"meta,omitempty"`
}

// EventClient maintains a WebSocket connection to the tower's control
// plane and emits ControlEvents to it. Publish never blocks on the
// network: events queue in a small buffered channel and are dropped once
// that channel is full, as happens when the connection is down or backed up.
type EventClient struct {
	url string

	out chan ControlEvent
}

// NewEventClient creates a client targeting the tower's event endpoint
// (e.g. "ws://127.0.0.1:8005/tower/events").
func NewEventClient(url string) *EventClient {
	return &EventClient{
		url: url,
		out: make(chan ControlEvent, 32),
	}
}

// Run maintains the connection until ctx is cancelled. A dropped connection
// is redialled at once; a failed dial is retried after a fixed 2s delay.
func (c *EventClient) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			slog.Warn("event client dial failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		c.serve(ctx, conn)
	}
}

func (c *EventClient) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.out:
			if err := conn.WriteJSON(ev); err != nil {
				slog.Warn("event client write failed", "error", err)
				return
			}
		}
	}
}

// Publish queues ev for delivery, dropping it if the outbound queue is
// full rather than blocking the caller.
func (c *EventClient) Publish(ev ControlEvent) {
	select {
	case c.out <- ev:
	default:
		slog.Debug("event client: dropping event, queue full", "kind", ev.Kind)
	}
}
