// Package metrics exposes Prometheus collectors for resource transfers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "datagov"
	subsystem = "transfer"
)

// Transfer status label values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Metrics holds the transfer collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	transfersTotal *prometheus.CounterVec
	bytesTotal     prometheus.Counter
	active         prometheus.Gauge
	duration       prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Total number of resource transfers by final status.",
			},
			[]string{"status"},
		),
		bytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_total",
			Help:      "Bytes written by successful transfers.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transfers_active",
			Help:      "Number of transfers currently in flight.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Duration of finished transfers.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.transfersTotal, m.bytesTotal, m.active, m.duration)
	}
	return m
}

// TransferStarted records a transfer entering the active set.
func (m *Metrics) TransferStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

// TransferFinished records a transfer leaving the active set.
func (m *Metrics) TransferFinished(status string, bytes int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.transfersTotal.WithLabelValues(status).Inc()
	m.duration.Observe(elapsed.Seconds())
	if status == StatusSucceeded {
		m.bytesTotal.Add(float64(bytes))
	}
}

// TransferSkipped records a resource that never started.
func (m *Metrics) TransferSkipped() {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(StatusSkipped).Inc()
}

// WriteFile writes every metric gathered by g to path in the text
// exposition format.
func WriteFile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
