package tower

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/retrowaves/retrowaves/internal/ring"
)

// BufferStatus is the JSON payload served by the buffer status endpoint,
// polled by the station's PID controller and any observability tooling.
type BufferStatus struct {
	ring.Snapshot
	EncoderStats  Stats `json:"encoder"`
	ActiveClients int   `json:"active_clients"`
}

// BufferStatusEndpoint serves a point-in-time view of the ring buffer and
// encoder health over HTTP.
type BufferStatusEndpoint struct {
	buf         *ring.Buffer
	encoder     *EncoderManager
	broadcaster *Broadcaster
}

// NewBufferStatusEndpoint wires a BufferStatusEndpoint to the components it
// reports on.
func NewBufferStatusEndpoint(buf *ring.Buffer, encoder *EncoderManager, b *Broadcaster) *BufferStatusEndpoint {
	return &BufferStatusEndpoint{buf: buf, encoder: encoder, broadcaster: b}
}

// Register mounts the endpoint at GET /tower/buffer on the given router.
func (e *BufferStatusEndpoint) Register(r gin.IRouter) {
	r.GET("/tower/buffer", e.handle)
}

func (e *BufferStatusEndpoint) handle(c *gin.Context) {
	c.JSON(http.StatusOK, BufferStatus{
		Snapshot:      e.buf.Snapshot(),
		EncoderStats:  e.encoder.Snapshot(),
		ActiveClients: e.broadcaster.ActiveClients(),
	})
}
