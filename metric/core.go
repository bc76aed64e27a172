package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all pipeline-level metrics (not step-specific)
type Metrics struct {
	// Frame metrics
	FramesReceived  prometheus.Counter
	FramesProcessed *prometheus.CounterVec
	FrameDuration   prometheus.Histogram
	CurrentFrame    prometheus.Gauge

	// Step metrics
	StepDuration *prometheus.HistogramVec
	StepErrors   *prometheus.CounterVec

	// Ingestion metrics
	IngestErrors prometheus.Counter

	// Display metrics
	PublicationsSent    *prometheus.CounterVec
	PublicationsDropped *prometheus.CounterVec

	// NATS metrics
	NATSConnected prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FramesReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "realtimefmri",
				Subsystem: "frames",
				Name:      "received_total",
				Help:      "Total number of volumes received from the ingestion adapter",
			},
		),

		FramesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "realtimefmri",
				Subsystem: "frames",
				Name:      "processed_total",
				Help:      "Total number of frames reaching a terminal state",
			},
			[]string{"status"},
		),

		FrameDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "realtimefmri",
				Subsystem: "frames",
				Name:      "duration_seconds",
				Help:      "End-to-end frame processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		CurrentFrame: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "realtimefmri",
				Subsystem: "frames",
				Name:      "current_index",
				Help:      "Frame index of the most recently completed frame",
			},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "realtimefmri",
				Subsystem: "steps",
				Name:      "duration_seconds",
				Help:      "Per-step execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),

		StepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "realtimefmri",
				Subsystem: "steps",
				Name:      "errors_total",
				Help:      "Total number of step execution errors",
			},
			[]string{"step"},
		),

		IngestErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "realtimefmri",
				Subsystem: "ingest",
				Name:      "errors_total",
				Help:      "Total number of volumes dropped because they failed to decode",
			},
		),

		PublicationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "realtimefmri",
				Subsystem: "display",
				Name:      "publications_sent_total",
				Help:      "Total number of publications delivered to display services",
			},
			[]string{"channel"},
		),

		PublicationsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "realtimefmri",
				Subsystem: "display",
				Name:      "publications_dropped_total",
				Help:      "Total number of publications discarded instead of delivered",
			},
			[]string{"reason"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "realtimefmri",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),
	}
}

// RecordFrameReceived increments the received frame counter
func (m *Metrics) RecordFrameReceived() {
	m.FramesReceived.Inc()
}

// RecordFrameProcessed increments the terminal-state counter for a status
func (m *Metrics) RecordFrameProcessed(status string, index int) {
	m.FramesProcessed.WithLabelValues(status).Inc()
	m.CurrentFrame.Set(float64(index))
}

// RecordFrameDuration records end-to-end frame processing time
func (m *Metrics) RecordFrameDuration(duration time.Duration) {
	m.FrameDuration.Observe(duration.Seconds())
}

// RecordStepDuration records one step execution time
func (m *Metrics) RecordStepDuration(step string, duration time.Duration) {
	m.StepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordStepError increments the error counter for a step
func (m *Metrics) RecordStepError(step string) {
	m.StepErrors.WithLabelValues(step).Inc()
}

// RecordIngestError increments the dropped-volume counter
func (m *Metrics) RecordIngestError() {
	m.IngestErrors.Inc()
}

// RecordPublicationSent increments the delivered publication counter
func (m *Metrics) RecordPublicationSent(channel string) {
	m.PublicationsSent.WithLabelValues(channel).Inc()
}

// RecordPublicationDropped increments the discarded publication counter
func (m *Metrics) RecordPublicationDropped(reason string) {
	m.PublicationsDropped.WithLabelValues(reason).Inc()
}

// RecordNATSStatus updates NATS connection status
func (m *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}
