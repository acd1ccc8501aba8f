// Package metrics exposes the tower's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/gauge the tower reports.
type Metrics struct {
	FramesServed    prometheus.Counter
	FallbackServed  prometheus.Counter
	RingOverflows   prometheus.Counter
	ActiveListeners prometheus.Gauge
	BufferRatio     prometheus.Gauge
	EncoderRestarts prometheus.Counter
	ListenerDrops   prometheus.Counter
}

// New registers and returns the tower's metric set against the default
// Prometheus registry.
func New() *Metrics {
	return &Metrics{
		FramesServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "frames_served_total",
			Help:      "Total PCM frames handed to the encoder.",
		}),
		FallbackServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "fallback_frames_total",
			Help:      "Total frames served from the fallback generator due to ring buffer underrun.",
		}),
		RingOverflows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "ring_overflows_total",
			Help:      "Total frames dropped due to ring buffer overflow.",
		}),
		ActiveListeners: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "active_listeners",
			Help:      "Current count of connected HTTP stream listeners.",
		}),
		BufferRatio: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "ring_buffer_ratio",
			Help:      "Current ring buffer fill ratio, in [0,1].",
		}),
		EncoderRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "encoder_restarts_total",
			Help:      "Total ffmpeg encoder process restarts.",
		}),
		ListenerDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "retrowaves",
			Subsystem: "tower",
			Name:      "listener_drops_total",
			Help:      "Total listeners disconnected for exceeding their pending-bytes cap.",
		}),
	}
}
