package tower

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_WriteNeverBlocksOnSlowClient(t *testing.T) {
	b := NewBroadcaster(64)
	b.subscribe()

	payload := bytes.Repeat([]byte{0xAB}, 1024)

	done := make(chan struct{})
	go func() {
		n, err := b.Write(payload)
		require.NoError(t, err)
		require.Equal(t, len(payload), n)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write blocked on an undrained client queue")
	}

	assert.Equal(t, 0, b.ActiveClients(), "client exceeding the cap should be dropped")
	assert.Equal(t, uint64(1), b.DroppedClients())
}

func TestClient_AppendRejectsOverflowWithoutPartialWrite(t *testing.T) {
	c := newClient(1)

	ok := c.append([]byte("aaaa"), 8)
	assert.True(t, ok)

	ok = c.append([]byte("bbbbb"), 8)
	assert.False(t, ok, "append exceeding the cap must be rejected")

	// Rejected append must not have mutated pending at all.
	assert.Equal(t, "aaaa", string(c.drain()))
}

func TestClient_AppendAcceptsExactCap(t *testing.T) {
	c := newClient(1)
	ok := c.append(bytes.Repeat([]byte{0x01}, 8), 8)
	assert.True(t, ok)
	assert.Len(t, c.drain(), 8)
}

func TestBroadcaster_SubscribeUnsubscribeTracksActiveClients(t *testing.T) {
	b := NewBroadcaster(1024)
	assert.Equal(t, 0, b.ActiveClients())

	c1 := b.subscribe()
	c2 := b.subscribe()
	assert.Equal(t, 2, b.ActiveClients())

	b.unsubscribe(c1)
	assert.Equal(t, 1, b.ActiveClients())

	b.unsubscribe(c2)
	assert.Equal(t, 0, b.ActiveClients())
}

func TestBroadcaster_UnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster(1024)
	c := b.subscribe()

	assert.NotPanics(t, func() {
		b.unsubscribe(c)
		b.unsubscribe(c)
	})
}

func TestBroadcaster_FanOutReachesAllClients(t *testing.T) {
	b := NewBroadcaster(1024)
	c1 := b.subscribe()
	c2 := b.subscribe()

	_, err := b.Write([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, "hello", string(c1.drain()))
	assert.Equal(t, "hello", string(c2.drain()))
}

func TestClient_CorrelationIDIsUnique(t *testing.T) {
	c1 := newClient(1)
	c2 := newClient(2)
	assert.NotEmpty(t, c1.correlationID)
	assert.NotEqual(t, c1.correlationID, c2.correlationID)
}
