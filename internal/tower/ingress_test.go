package tower

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrowaves/retrowaves/internal/frame"
	"github.com/retrowaves/retrowaves/internal/ring"
)

func TestIngress_PushesReceivedFramesIntoBuffer(t *testing.T) {
	buf := ring.New(4)
	in, err := NewIngress("tcp", "127.0.0.1:0", buf)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go in.Run(ctx)

	conn, err := net.Dial("tcp", in.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	f := frame.New()
	f[0] = 0x55
	_, err = conn.Write(f)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return buf.Snapshot().Count == 1
	}, time.Second, 5*time.Millisecond)

	got, ok := buf.PopBlocking(time.Second)
	require.True(t, ok)
	assert.Equal(t, byte(0x55), got[0])
}

func TestIngress_OnConnectFiresOnAccept(t *testing.T) {
	buf := ring.New(4)
	in, err := NewIngress("tcp", "127.0.0.1:0", buf)
	require.NoError(t, err)

	fired := make(chan struct{}, 1)
	in.onConnect = func() { fired <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go in.Run(ctx)

	conn, err := net.Dial("tcp", in.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("onConnect was not invoked on accept")
	}
}
