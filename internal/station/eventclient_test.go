package station

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventClient_PublishesToServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan ControlEvent, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var ev ControlEvent
		if err := conn.ReadJSON(&ev); err == nil {
			received <- ev
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewEventClient(wsURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	client.Publish(ControlEvent{Kind: KindNewSong, TS: time.Now()})

	select {
	case ev := <-received:
		assert.Equal(t, KindNewSong, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the published event")
	}
}

func TestEventClient_PublishDropsWhenQueueFull(t *testing.T) {
	client := NewEventClient("ws://127.0.0.1:1/nowhere")

	for i := 0; i < 64; i++ {
		client.Publish(ControlEvent{Kind: KindNewSong, TS: time.Now()})
	}

	assert.NotPanics(t, func() {
		client.Publish(ControlEvent{Kind: KindNewSong, TS: time.Now()})
	})
}
