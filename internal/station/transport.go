package station

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/retrowaves/retrowaves/internal/frame"
	"golang.org/x/time/rate"
)

const (
	transportMinBackoff = 250 * time.Millisecond
	transportMaxBackoff = 10 * time.Second
)

// Transport maintains a connection to the tower's PCM ingress, reconnecting
// with exponential backoff on any write failure. Frames submitted while
// disconnected are dropped; the tower's own fallback covers the resulting
// audio gap.
type Transport struct {
	network, addr string

	mu   sync.Mutex
	conn net.Conn

	reconnectLimiter *rate.Limiter

	framesSent    uint64
	framesDropped uint64
}

// NewTransport creates a Transport targeting addr over network ("tcp" or
// "unix"). Connection is established lazily by Run.
func NewTransport(network, addr string) *Transport {
	return &Transport{
		network:          network,
		addr:             addr,
		reconnectLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// Run maintains the connection until ctx is cancelled, reconnecting with
// exponential backoff whenever the link drops.
func (t *Transport) Run(ctx context.Context) {
	backoff := transportMinBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := net.Dial(t.network, t.addr)
		if err != nil {
			if t.reconnectLimiter.Allow() {
				slog.Warn("pcm transport dial failed", "error", err, "addr", t.addr)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > transportMaxBackoff {
				backoff = transportMaxBackoff
			}
			continue
		}

		backoff = transportMinBackoff
		slog.Info("pcm transport connected", "addr", t.addr)

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()

		// Block here until either shutdown or this connection is dropped
		// by WriteFrame, then loop back around to redial.
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-t.disconnected(ctx, conn):
		}
	}
}

// disconnected returns a channel that closes once conn is no longer the
// transport's active connection (or ctx is cancelled), polling at a short
// interval. This keeps Run's redial loop simple without adding a
// dedicated notification channel per connection.
func (t *Transport) disconnected(ctx context.Context, conn net.Conn) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.mu.Lock()
				still := t.conn == conn
				t.mu.Unlock()
				if !still {
					return
				}
			}
		}
	}()
	return ch
}

// WriteFrame sends one frame over the live connection. A write error (or a
// connection that isn't up yet) drops the frame and increments a counter;
// the caller never blocks beyond the underlying socket's own write path.
func (t *Transport) WriteFrame(f frame.Frame) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		t.framesDropped++
		return
	}

	if _, err := conn.Write(f); err != nil {
		t.framesDropped++
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.framesSent++
}

// Connected reports whether the transport currently has a live connection.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}
