package chat

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the hub.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connections       prometheus.Gauge
	sessions          prometheus.Gauge
	voiceMembers      prometheus.Gauge
	framesReceived    *prometheus.CounterVec // by message type
	eventsDropped     *prometheus.CounterVec // by message type
	broadcastFanout   prometheus.Histogram
	broadcastDuration prometheus.Histogram
	historyAppends    prometheus.Counter
	historyFailures   prometheus.Counter
	uploadBytes       *prometheus.CounterVec // by upload kind
}

// NewMetrics registers the hub collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relaychat_connections",
			Help: "Current number of open WebSocket connections",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relaychat_sessions",
			Help: "Current number of authenticated connections",
		}),
		voiceMembers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relaychat_voice_members",
			Help: "Current number of connections in the voice channel",
		}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_frames_received_total",
			Help: "Total number of frames received from clients by type",
		}, []string{"type"}),
		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_events_dropped_total",
			Help: "Total number of outbound events dropped because a client queue was full or closed",
		}, []string{"type"}),
		broadcastFanout: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relaychat_broadcast_fanout",
			Help:    "Number of connections that received each broadcast",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		broadcastDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relaychat_broadcast_duration_seconds",
			Help:    "Time taken to enqueue a broadcast for every recipient",
			Buckets: prometheus.DefBuckets,
		}),
		historyAppends: factory.NewCounter(prometheus.CounterOpts{
			Name: "relaychat_history_appends_total",
			Help: "Total number of chat messages appended to the history",
		}),
		historyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "relaychat_history_persist_failures_total",
			Help: "Total number of history writes rejected by the store",
		}),
		uploadBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_upload_bytes_total",
			Help: "Total number of uploaded bytes stored by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) recordConnections(open, authenticated, voice int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(open))
	m.sessions.Set(float64(authenticated))
	m.voiceMembers.Set(float64(voice))
}

func (m *Metrics) recordFrame(t MessageType) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) recordDropped(t MessageType) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) recordBroadcast(recipients int, started time.Time) {
	if m == nil {
		return
	}
	m.broadcastFanout.Observe(float64(recipients))
	m.broadcastDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) recordAppend(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.historyFailures.Inc()
		return
	}
	m.historyAppends.Inc()
}

func (m *Metrics) recordUpload(kind string, size int) {
	if m == nil {
		return
	}
	m.uploadBytes.WithLabelValues(kind).Add(float64(size))
}
