package tower

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/retrowaves/retrowaves/internal/frame"
	"github.com/retrowaves/retrowaves/internal/ring"
)

// Ingress listens for the station's PCM transport connection and pushes
// every frame it receives into the ring buffer. Only one station is ever
// expected to be connected; a second connection is not accepted until the
// current one closes.
type Ingress struct {
	listener net.Listener
	buf      *ring.Buffer

	// onConnect, if set, is invoked once per accepted connection before
	// frames start flowing. Used to restart the encoder manager's grace
	// window on every station reconnect.
	onConnect func()

	framesReceived uint64
}

// NewIngress binds a listener at addr (TCP host:port or a unix socket path
// when network is "unix") and returns an Ingress ready to Run.
func NewIngress(network, addr string, buf *ring.Buffer) (*Ingress, error) {
	if network == "unix" {
		_ = os.Remove(addr)
	}
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	return &Ingress{listener: l, buf: buf}, nil
}

// Run accepts connections until ctx is cancelled, serving at most one
// connection at a time.
func (in *Ingress) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = in.listener.Close()
	}()

	for {
		conn, err := in.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("pcm ingress accept failed", "error", err)
			continue
		}
		slog.Info("pcm ingress: station connected", "remote", conn.RemoteAddr())
		if in.onConnect != nil {
			in.onConnect()
		}
		in.serve(ctx, conn)
		slog.Warn("pcm ingress: station disconnected")
	}
}

func (in *Ingress) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, frame.Size)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				slog.Warn("pcm ingress read error", "error", err)
			}
			return
		}

		f := frame.New()
		copy(f, buf)
		in.framesReceived++
		if in.buf.Push(f) == ring.Overflowed {
			slog.Debug("pcm ingress: ring buffer overflow, oldest frame dropped")
		}
	}
}

// Close stops accepting new connections.
func (in *Ingress) Close() error {
	return in.listener.Close()
}

// FramesReceived returns the lifetime count of frames accepted from the
// station connection.
func (in *Ingress) FramesReceived() uint64 {
	return in.framesReceived
}
