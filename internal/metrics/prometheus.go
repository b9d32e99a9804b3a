package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the stress clients
type Metrics struct {
	// Connection metrics
	StateTransitions *prometheus.CounterVec

	// Stream metrics
	StreamsRequested prometheus.Counter
	StreamsReady     prometheus.Counter
	StreamsFailed    prometheus.Counter
	ActiveStreams    prometheus.Gauge

	// Playback metrics
	BytesWritten    prometheus.Counter
	WriteChunkBytes prometheus.Histogram
	DrainsCompleted prometheus.Counter
}

// New creates and registers all Prometheus metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sndstress_connection_state_transitions_total",
			Help: "Total number of connection state machine transitions",
		}, []string{"state"}),

		StreamsRequested: factory.NewCounter(prometheus.CounterOpts{
			Name: "sndstress_streams_requested_total",
			Help: "Total number of playback streams requested from the server",
		}),
		StreamsReady: factory.NewCounter(prometheus.CounterOpts{
			Name: "sndstress_streams_ready_total",
			Help: "Total number of playback streams confirmed ready by the server",
		}),
		StreamsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sndstress_streams_failed_total",
			Help: "Total number of playback streams rejected or failed",
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sndstress_active_streams",
			Help: "Current number of streams in the ready state",
		}),

		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "sndstress_bytes_written_total",
			Help: "Total audio bytes written across all streams",
		}),
		WriteChunkBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sndstress_write_chunk_bytes",
			Help:    "Size of frame-aligned chunks written to streams",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B to ~1MB
		}),
		DrainsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sndstress_drains_completed_total",
			Help: "Total number of drain confirmations received",
		}),
	}
}

// RecordStateTransition counts a connection state machine transition.
func (m *Metrics) RecordStateTransition(state string) {
	m.StateTransitions.WithLabelValues(state).Inc()
}

// RecordStreamRequested increments the streams requested counter.
func (m *Metrics) RecordStreamRequested() {
	m.StreamsRequested.Inc()
}

// RecordStreamReady records a stream reaching the ready state.
func (m *Metrics) RecordStreamReady() {
	m.StreamsReady.Inc()
	m.ActiveStreams.Inc()
}

// RecordStreamFailed records a rejected or failed stream.
func (m *Metrics) RecordStreamFailed() {
	m.StreamsFailed.Inc()
}

// RecordWrite records one frame-aligned chunk written to a stream.
func (m *Metrics) RecordWrite(sizeBytes int) {
	m.BytesWritten.Add(float64(sizeBytes))
	m.WriteChunkBytes.Observe(float64(sizeBytes))
}

// RecordDrainCompleted increments the drain confirmations counter.
func (m *Metrics) RecordDrainCompleted() {
	m.DrainsCompleted.Inc()
}
