package tower

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrowaves/retrowaves/internal/frame"
	"github.com/retrowaves/retrowaves/internal/ring"
)

func TestBufferStatusEndpoint_ServesSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)

	buf := ring.New(10)
	buf.Push(frame.New())
	buf.Push(frame.New())

	enc := NewFFmpegSupervisor("128k", "48000", "2", &discardWriter{})
	mgr := NewEncoderManager(enc, nil, 0)
	broadcaster := NewBroadcaster(1024)
	broadcaster.subscribe()

	endpoint := NewBufferStatusEndpoint(buf, mgr, broadcaster)

	r := gin.New()
	endpoint.Register(r)

	req := httptest.NewRequest(http.MethodGet, "/tower/buffer", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got BufferStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 10, got.Capacity)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 1, got.ActiveClients)
}
