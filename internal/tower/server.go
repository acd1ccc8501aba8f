package tower

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/retrowaves/retrowaves/internal/security"
)

// ServerConfig carries the HTTP-facing settings the tower's router needs.
type ServerConfig struct {
	StationName    string
	BitrateKbps    string
	MaxClients     int
	WriteTimeout   time.Duration
	MetricsEnabled bool
}

// NewRouter builds the tower's full HTTP surface: the public stream, the
// buffer status endpoint, the control-plane WebSocket, a Prometheus
// scrape endpoint (when cfg.MetricsEnabled), and an admin-gated endpoint
// that publishes control events.
func NewRouter(s *Supervisor, cfg ServerConfig, gate *security.Gate) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(securityHeaders())

	stream := NewStreamHandler(s.Broadcaster, cfg.StationName, cfg.BitrateKbps, cfg.MaxClients, cfg.WriteTimeout)
	r.GET("/stream", gin.WrapH(stream))

	status := NewBufferStatusEndpoint(s.Buf, s.EncoderMgr, s.Broadcaster)
	status.Register(r)

	r.GET("/tower/events", gin.WrapH(s.Events))

	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	admin := r.Group("/api/admin")
	admin.Use(adminAuth(gate))
	{
		admin.POST("/event", func(c *gin.Context) {
			var ev ControlEvent
			if err := c.ShouldBindJSON(&ev); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if ev.TS.IsZero() {
				ev.TS = time.Now()
			}
			if !ev.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid control event"})
				return
			}
			s.Events.Publish(ev)
			c.JSON(http.StatusAccepted, gin.H{"status": "published"})
		})
	}

	return r
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func adminAuth(gate *security.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		const prefix = "Bearer "
		header := c.GetHeader("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if err := gate.Check(header[len(prefix):]); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin secret"})
			return
		}
		c.Next()
	}
}
