package station

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferClient_PollReadsRatioFromEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tower/buffer", r.URL.Path)
		json.NewEncoder(w).Encode(BufferStatus{Capacity: 100, Count: 60, Ratio: 0.6})
	}))
	defer srv.Close()

	pid := NewPIDController(PIDConfig{Enabled: true, TargetRatio: 0.5, MaxSleep: time.Second})
	client := NewBufferClient(srv.URL, 100*time.Millisecond, pid)

	ratio, err := client.poll(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, ratio, 0.0001)
}

func TestBufferClient_PollErrorsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pid := NewPIDController(PIDConfig{Enabled: true})
	client := NewBufferClient(srv.URL, 100*time.Millisecond, pid)

	_, err := client.poll(context.Background())
	assert.Error(t, err)
}

func TestBufferClient_RunUpdatesPIDOnSchedule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(BufferStatus{Ratio: 0.75})
	}))
	defer srv.Close()

	pid := NewPIDController(PIDConfig{Enabled: true, TargetRatio: 0.5, MaxSleep: time.Second})
	client := NewBufferClient(srv.URL, 100*time.Millisecond, pid)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	client.Run(ctx, 10*time.Millisecond)

	pid.mu.Lock()
	defer pid.mu.Unlock()
	assert.True(t, pid.haveRatio)
	assert.InDelta(t, 0.75, pid.lastRatio, 0.0001)
}
