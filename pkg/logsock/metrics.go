package logsock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the log socket
type Metrics struct {
	// Ingest metrics
	datagramsReceived prometheus.Counter
	bytesReceived     prometheus.Counter

	// Framing/parse metrics
	recordsParsed  prometheus.Counter
	framesTooShort prometheus.Counter
	parseFailures  prometheus.Counter

	// Dispatch metrics
	broadcastFanout   prometheus.Histogram
	broadcastDuration prometheus.Histogram
	activeHandlers    prometheus.Gauge
}

// NewMetrics creates a new metrics instance. Call it at most once per
// process; the collectors register themselves with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		datagramsReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "srcwatch_log_datagrams_received_total",
				Help: "Total number of datagrams read from the log socket",
			},
		),
		bytesReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "srcwatch_log_bytes_received_total",
				Help: "Total number of payload bytes read from the log socket",
			},
		),
		recordsParsed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "srcwatch_log_records_parsed_total",
				Help: "Total number of log records parsed and broadcast",
			},
		),
		framesTooShort: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "srcwatch_log_frames_too_short_total",
				Help: "Total number of frames dropped for being shorter than the fixed header",
			},
		),
		parseFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "srcwatch_log_parse_failures_total",
				Help: "Total number of frames dropped due to a malformed timestamp",
			},
		),
		broadcastFanout: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "srcwatch_log_broadcast_fanout",
				Help:    "Number of handlers that received each broadcast record",
				Buckets: []float64{1, 2, 5, 10, 25, 50},
			},
		),
		broadcastDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "srcwatch_log_broadcast_duration_seconds",
				Help:    "Time taken to broadcast a record to all handlers",
				Buckets: prometheus.DefBuckets,
			},
		),
		activeHandlers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "srcwatch_log_active_handlers",
				Help: "Current number of registered log handlers",
			},
		),
	}
}

// RecordDatagram records one datagram of n payload bytes.
func (m *Metrics) RecordDatagram(n int) {
	m.datagramsReceived.Inc()
	m.bytesReceived.Add(float64(n))
}

// RecordParsed increments the parsed-record counter.
func (m *Metrics) RecordParsed() {
	m.recordsParsed.Inc()
}

// RecordFrameTooShort increments the short-frame drop counter.
func (m *Metrics) RecordFrameTooShort() {
	m.framesTooShort.Inc()
}

// RecordParseFailure increments the malformed-timestamp drop counter.
func (m *Metrics) RecordParseFailure() {
	m.parseFailures.Inc()
}

// RecordBroadcast records the fanout and duration of one broadcast.
func (m *Metrics) RecordBroadcast(handlers int, durationSeconds float64) {
	m.broadcastFanout.Observe(float64(handlers))
	m.broadcastDuration.Observe(durationSeconds)
}

// RecordActiveHandlers updates the registered-handler gauge.
func (m *Metrics) RecordActiveHandlers(count int) {
	m.activeHandlers.Set(float64(count))
}
