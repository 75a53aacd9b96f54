// Package metrics exposes Prometheus instrumentation for the encoder, the
// request pipeline and the file lifecycle manager.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sigfmt"

// EncoderMetrics tracks encode passes and the outcome of formatting requests.
type EncoderMetrics struct {
	// Passes counts encode passes by phase (fast, quality, upscale).
	Passes *prometheus.CounterVec

	// Requests counts finished formatting requests by result (ok, error).
	Requests *prometheus.CounterVec

	// OutputBytes observes the byte size of accepted outputs.
	OutputBytes prometheus.Histogram

	// OutOfEnvelope counts outputs accepted outside [min, max] because quality
	// or scale saturated.
	OutOfEnvelope prometheus.Counter
}

// LifecycleMetrics tracks deferred cleanups and sweeps.
type LifecycleMetrics struct {
	// Deleted counts removed files by trigger (deferred, sweep).
	Deleted *prometheus.CounterVec

	// Failures counts abandoned deletions by reason (exhausted, permanent).
	Failures *prometheus.CounterVec

	// Pending is the number of scheduled deferred cleanups not yet finished.
	Pending prometheus.Gauge

	// Sweeps counts completed sweep runs.
	Sweeps prometheus.Counter

	// Expired is the number of expired files found by the last sweep.
	Expired prometheus.Gauge
}

// Metrics groups every collector of the service.
type Metrics struct {
	Encoder   *EncoderMetrics
	Lifecycle *LifecycleMetrics
}

// New creates metrics registered with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics registered with reg.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Encoder: &EncoderMetrics{
			Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "encoder",
				Name:      "passes_total",
				Help:      "Number of encode passes by phase.",
			}, []string{"phase"}),
			Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "encoder",
				Name:      "requests_total",
				Help:      "Number of formatting requests by result.",
			}, []string{"result"}),
			OutputBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "encoder",
				Name:      "output_bytes",
				Help:      "Byte size of accepted output images.",
				Buckets:   prometheus.ExponentialBuckets(1024, 2, 8),
			}),
			OutOfEnvelope: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "encoder",
				Name:      "out_of_envelope_total",
				Help:      "Number of outputs accepted outside the byte-size window.",
			}),
		},
		Lifecycle: &LifecycleMetrics{
			Deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "deleted_total",
				Help:      "Number of deleted files by trigger.",
			}, []string{"trigger"}),
			Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "delete_failures_total",
				Help:      "Number of abandoned deletions by reason.",
			}, []string{"reason"}),
			Pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "pending_cleanups",
				Help:      "Number of deferred cleanups waiting for their grace period or retries.",
			}),
			Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "sweeps_total",
				Help:      "Number of completed sweeps.",
			}),
			Expired: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "last_sweep_expired",
				Help:      "Number of files older than the maximum age found by the last sweep.",
			}),
		},
	}

	reg.MustRegister(
		m.Encoder.Passes,
		m.Encoder.Requests,
		m.Encoder.OutputBytes,
		m.Encoder.OutOfEnvelope,
		m.Lifecycle.Deleted,
		m.Lifecycle.Failures,
		m.Lifecycle.Pending,
		m.Lifecycle.Sweeps,
		m.Lifecycle.Expired,
	)

	return m
}

func (m *EncoderMetrics) RecordPass(phase string) {
	m.Passes.WithLabelValues(phase).Inc()
}

func (m *EncoderMetrics) RecordRequest(err error, size int64, inEnvelope bool) {
	if err != nil {
		m.Requests.WithLabelValues("error").Inc()
		return
	}

	m.Requests.WithLabelValues("ok").Inc()
	m.OutputBytes.Observe(float64(size))
	if !inEnvelope {
		m.OutOfEnvelope.Inc()
	}
}

func (m *LifecycleMetrics) RecordDeleted(trigger string) {
	m.Deleted.WithLabelValues(trigger).Inc()
}

func (m *LifecycleMetrics) RecordFailure(reason string) {
	m.Failures.WithLabelValues(reason).Inc()
}

func (m *LifecycleMetrics) RecordSweep(expired int) {
	m.Sweeps.Inc()
	m.Expired.Set(float64(expired))
}
