package tower

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// client holds one listener's outbound queue. The broadcaster only ever
// appends to pending under client.mu; a dedicated writer goroutine drains
// it to the socket. This split means a slow listener can never stall the
// broadcaster or any other client.
type client struct {
	id            uint64
	correlationID string // stable across reconnect-free session, for log correlation

	mu      sync.Mutex
	pending []byte

	notify chan struct{}
	closed chan struct{}
}

func newClient(id uint64) *client {
	return &client{
		id:            id,
		correlationID: uuid.NewString(),
		notify:        make(chan struct{}, 1),
		closed:        make(chan struct{}),
	}
}

// append adds p to the client's pending queue. It returns false, leaving
// pending untouched, if appending would push it past maxPending bytes: the
// fan-out policy is no partial append, the caller drops the whole client
// instead of trimming its backlog.
func (c *client) append(p []byte, maxPending int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending)+len(p) > maxPending {
		return false
	}

	c.pending = append(c.pending, p...)

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

// drain removes and returns everything currently pending.
func (c *client) drain() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	out := c.pending
	c.pending = nil
	return out
}

// Broadcaster fans MP3 bytes out to every subscribed HTTP client. It is an
// io.Writer: the FFmpegSupervisor's stdout is copied into it directly.
// Broadcast never blocks on client socket I/O — each client drains through
// its own writer goroutine with a bounded, drop-the-client-on-overflow queue.
type Broadcaster struct {
	mu         sync.RWMutex
	clients    map[uint64]*client
	nextID     uint64
	maxPending int

	droppedClients atomic.Uint64
}

// NewBroadcaster creates a Broadcaster whose per-client pending queue is
// capped at maxPendingBytes.
func NewBroadcaster(maxPendingBytes int) *Broadcaster {
	return &Broadcaster{
		clients:    make(map[uint64]*client),
		maxPending: maxPendingBytes,
	}
}

// Write implements io.Writer, fanning p out to every subscribed client's
// queue without blocking on any of them. A client whose pending queue
// would exceed the cap is marked dropped and removed outright — no partial
// append, per the broadcaster's fan-out policy.
func (b *Broadcaster) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	b.mu.RLock()
	var overflowed []*client
	for _, c := range b.clients {
		if !c.append(chunk, b.maxPending) {
			overflowed = append(overflowed, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range overflowed {
		b.droppedClients.Add(1)
		slog.Warn("listener dropped, pending bytes exceeded cap", "listener_id", c.correlationID, "cap", b.maxPending)
		b.unsubscribe(c)
	}

	return len(p), nil
}

// subscribe registers a new client and returns it.
func (b *Broadcaster) subscribe() *client {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	c := newClient(id)
	b.clients[id] = c
	return c
}

// unsubscribe removes a client and signals its writer goroutine to exit.
// Safe to call more than once for the same client (e.g. once from an
// overflow drop and once from the handler's own deferred cleanup): only
// the call that actually removes the client from the map closes its
// channel.
func (b *Broadcaster) unsubscribe(c *client) {
	b.mu.Lock()
	_, present := b.clients[c.id]
	if present {
		delete(b.clients, c.id)
	}
	b.mu.Unlock()

	if present {
		close(c.closed)
	}
}

// ActiveClients returns the current listener count.
func (b *Broadcaster) ActiveClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// DroppedClients returns the lifetime count of listeners disconnected for
// exceeding their pending-bytes cap.
func (b *Broadcaster) DroppedClients() uint64 {
	return b.droppedClients.Load()
}

// StreamHandler serves the tower's public listening endpoint.
type StreamHandler struct {
	broadcaster  *Broadcaster
	stationName  string
	bitrateKbps  string
	maxClients   int
	writeTimeout time.Duration
}

// NewStreamHandler wires a StreamHandler to its Broadcaster.
func NewStreamHandler(b *Broadcaster, stationName, bitrateKbps string, maxClients int, writeTimeout time.Duration) *StreamHandler {
	return &StreamHandler{
		broadcaster:  b,
		stationName:  stationName,
		bitrateKbps:  bitrateKbps,
		maxClients:   maxClients,
		writeTimeout: writeTimeout,
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxClients > 0 && h.broadcaster.ActiveClients() >= h.maxClients {
		http.Error(w, "too many listeners", http.StatusServiceUnavailable)
		slog.Warn("listener rejected, at capacity", "max_clients", h.maxClients)
		return
	}

	c := h.broadcaster.subscribe()
	ip := r.RemoteAddr
	slog.Info("listener connected", "ip", ip, "listener_id", c.correlationID, "active", h.broadcaster.ActiveClients())
	defer func() {
		h.broadcaster.unsubscribe(c)
		slog.Info("listener disconnected", "ip", ip, "listener_id", c.correlationID, "active", h.broadcaster.ActiveClients())
	}()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.Header().Set("icy-name", h.stationName)
	w.Header().Set("icy-br", h.bitrateKbps)
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")

	flusher, canFlush := w.(http.Flusher)
	rc := http.NewResponseController(w)

	ctx := r.Context()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-c.notify:
		case <-ticker.C:
		}

		chunk := c.drain()
		if len(chunk) == 0 {
			continue
		}

		if h.writeTimeout > 0 {
			_ = rc.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		}
		if _, err := w.Write(chunk); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}
