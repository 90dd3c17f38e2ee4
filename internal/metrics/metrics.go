// Package metrics exposes the inspector's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the inspector.
type Metrics struct {
	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsRejected prometheus.Counter

	// Frame metrics
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	FrameErrors    prometheus.Counter

	// Cache metrics
	CachedEntities prometheus.Gauge
	CachedPackets  prometheus.Gauge

	// Pipeline metrics
	PositionBatches prometheus.Counter
	EntityUpdates   prometheus.Counter
	RefreshTimeouts prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inspector_active_sessions",
			Help: "Number of connected inspector sessions",
		}),
		SessionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspector_sessions_rejected_total",
			Help: "Connections rejected because the session cap was reached",
		}),
		FramesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_frames_sent_total",
			Help: "Outbound frames by message type",
		}, []string{"type"}),
		FramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_frames_received_total",
			Help: "Inbound frames by message type",
		}, []string{"type"}),
		FrameErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspector_frame_errors_total",
			Help: "Inbound frames rejected as malformed or unknown",
		}),
		CachedEntities: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inspector_cached_entities",
			Help: "Entities currently held in the snapshot cache",
		}),
		CachedPackets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inspector_cached_packets",
			Help: "Packets currently held in the packet log cache",
		}),
		PositionBatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspector_position_batches_total",
			Help: "Position batches flushed to the bus",
		}),
		EntityUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspector_entity_updates_total",
			Help: "Full entity updates broadcast to the bus",
		}),
		RefreshTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inspector_refresh_timeouts_total",
			Help: "On-demand refreshes that fell back to the cached snapshot",
		}),
	}
}

// Nop returns an unregistered metrics set for tests.
func Nop() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions:   f.NewGauge(prometheus.GaugeOpts{Name: "inspector_active_sessions"}),
		SessionsRejected: f.NewCounter(prometheus.CounterOpts{Name: "inspector_sessions_rejected_total"}),
		FramesSent:       f.NewCounterVec(prometheus.CounterOpts{Name: "inspector_frames_sent_total"}, []string{"type"}),
		FramesReceived:   f.NewCounterVec(prometheus.CounterOpts{Name: "inspector_frames_received_total"}, []string{"type"}),
		FrameErrors:      f.NewCounter(prometheus.CounterOpts{Name: "inspector_frame_errors_total"}),
		CachedEntities:   f.NewGauge(prometheus.GaugeOpts{Name: "inspector_cached_entities"}),
		CachedPackets:    f.NewGauge(prometheus.GaugeOpts{Name: "inspector_cached_packets"}),
		PositionBatches:  f.NewCounter(prometheus.CounterOpts{Name: "inspector_position_batches_total"}),
		EntityUpdates:    f.NewCounter(prometheus.CounterOpts{Name: "inspector_entity_updates_total"}),
		RefreshTimeouts:  f.NewCounter(prometheus.CounterOpts{Name: "inspector_refresh_timeouts_total"}),
	}
}
