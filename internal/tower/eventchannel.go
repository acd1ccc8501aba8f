package tower

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event kinds accepted by the control plane. Anything else is rejected at
// the boundary rather than forwarded as an untyped blob.
const (
	KindStationStartingUp   = "station_starting_up"
	KindStationShuttingDown = "station_shutting_down"
	KindNewSong             = "new_song"
	KindDJTalking           = "dj_talking"
)

var allowedKinds = map[string]bool{
	KindStationStartingUp:   true,
	KindStationShuttingDown: true,
	KindNewSong:             true,
	KindDJTalking:           true,
}

// ControlEvent is the envelope carried over the event channel in both
// directions. Kind names the event; Meta carries kind-specific fields.
// No event is retained or replayed: a listener connecting mid-stream only
// ever sees events emitted after it joined.
type ControlEvent struct {
	ID   string         `json:"id,omitempty"`
	Kind string         `json:"kind"`
	TS   time.Time      `json:"ts"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Valid reports whether e has the minimum shape a control event must have:
// a recognized kind and a non-zero timestamp.
func (e ControlEvent) Valid() bool {
	return allowedKinds[e.Kind] && !e.TS.IsZero()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventChannel is the tower's control-plane transport: it accepts WebSocket
// connections from the station and any interested observers, and
// broadcasts every ControlEvent it is told to Publish to all of them.
type EventChannel struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]chan ControlEvent

	shuttingDown atomic.Bool
}

// NewEventChannel creates an empty EventChannel.
func NewEventChannel() *EventChannel {
	return &EventChannel{
		conns: make(map[*websocket.Conn]chan ControlEvent),
	}
}

// ServeHTTP upgrades the request to a WebSocket and relays ControlEvents to
// it until the connection closes. Inbound messages are decoded and
// re-published, so either side of the channel can originate events.
func (ec *EventChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("event channel upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	out := make(chan ControlEvent, 32)
	ec.mu.Lock()
	ec.conns[conn] = out
	ec.mu.Unlock()

	defer func() {
		ec.mu.Lock()
		delete(ec.conns, conn)
		ec.mu.Unlock()
		close(out)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev ControlEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if !ev.Valid() {
				slog.Debug("event channel: dropping malformed event", "event", ev)
				continue
			}
			ec.Publish(ev)
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-out:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// Publish fans ev out to every connected peer. Slow or dead peers are
// skipped rather than allowed to block the publisher.
func (ec *EventChannel) Publish(ev ControlEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	switch ev.Kind {
	case KindStationShuttingDown:
		ec.shuttingDown.Store(true)
	case KindStationStartingUp:
		ec.shuttingDown.Store(false)
	}

	ec.mu.RLock()
	defer ec.mu.RUnlock()

	for conn, ch := range ec.conns {
		select {
		case ch <- ev:
		default:
			slog.Debug("event channel: dropping event for slow peer", "remote", conn.RemoteAddr())
		}
	}
}

// ShuttingDown reports whether the station has announced
// station_shutting_down without a subsequent station_starting_up. The
// EncoderManager consults this to suppress underrun warnings during a
// legitimate drain.
func (ec *EventChannel) ShuttingDown() bool {
	return ec.shuttingDown.Load()
}

// MarshalMeta is a small helper for building Meta maps from typed values
// without importing encoding/json at every call site.
func MarshalMeta(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}
