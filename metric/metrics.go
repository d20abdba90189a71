package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "canhax"

// Metrics contains all Can-Hax metrics.
type Metrics struct {
	FramesGenerated   *prometheus.CounterVec
	FramesSent        *prometheus.CounterVec
	TransportErrors   *prometheus.CounterVec
	ParseErrors       prometheus.Counter
	ValidationErrors  prometheus.Counter
	FrameDelay        prometheus.Histogram
	MatrixCardinality *prometheus.GaugeVec
}

// NewMetrics creates unregistered Can-Hax metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		FramesGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "frames",
				Name:      "generated_total",
				Help:      "Total number of payloads generated",
			},
			[]string{"id"},
		),

		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "frames",
				Name:      "sent_total",
				Help:      "Total number of frames handed to the transport",
			},
			[]string{"id", "transport"},
		),

		TransportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "errors_total",
				Help:      "Total number of failed sends by error class",
			},
			[]string{"transport", "class"},
		),

		ParseErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "capture",
				Name:      "parse_errors_total",
				Help:      "Total number of capture lines that failed to parse",
			},
		),

		ValidationErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fingerprint",
				Name:      "validation_errors_total",
				Help:      "Total number of fingerprint entries rejected on load",
			},
		),

		FrameDelay: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "delay_seconds",
				Help:      "Inter-frame delay actually waited, in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 20, 60},
			},
		),

		MatrixCardinality: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "fuzz",
				Name:      "matrix_cardinality",
				Help:      "Number of payloads the matrix for an identifier will produce",
			},
			[]string{"id", "mode"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FramesGenerated,
		m.FramesSent,
		m.TransportErrors,
		m.ParseErrors,
		m.ValidationErrors,
		m.FrameDelay,
		m.MatrixCardinality,
	}
}

// RecordGenerated counts one generated payload.
func (m *Metrics) RecordGenerated(id string) {
	if m == nil {
		return
	}
	m.FramesGenerated.WithLabelValues(id).Inc()
}

// RecordSent counts one frame accepted by the transport.
func (m *Metrics) RecordSent(id, transport string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(id, transport).Inc()
}

// RecordTransportError counts one failed send.
func (m *Metrics) RecordTransportError(transport, class string) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(transport, class).Inc()
}

// RecordParseError counts one malformed capture line.
func (m *Metrics) RecordParseError() {
	if m == nil {
		return
	}
	m.ParseErrors.Inc()
}

// RecordValidationError counts one rejected fingerprint entry.
func (m *Metrics) RecordValidationError() {
	if m == nil {
		return
	}
	m.ValidationErrors.Inc()
}

// ObserveDelay records the time waited between two frames.
func (m *Metrics) ObserveDelay(d time.Duration) {
	if m == nil {
		return
	}
	m.FrameDelay.Observe(d.Seconds())
}

// SetCardinality records the size of a planned matrix.
func (m *Metrics) SetCardinality(id, mode string, n uint64) {
	if m == nil {
		return
	}
	m.MatrixCardinality.WithLabelValues(id, mode).Set(float64(n))
}
