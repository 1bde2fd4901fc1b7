package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records metadata for scheduled settlement jobs.
type JobMetrics struct {
	duration    *prometheus.HistogramVec
	success     *prometheus.CounterVec
	failure     *prometheus.CounterVec
	payoutCents *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of settlement jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful settlement job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed settlement job executions.",
	}, []string{"job"})
	payoutCents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_settled_cents_total",
		Help: "Total payout amount settled, in minor currency units.",
	}, []string{"status"})
	reg.MustRegister(duration, success, failure, payoutCents)
	return &JobMetrics{
		duration:    duration,
		success:     success,
		failure:     failure,
		payoutCents: payoutCents,
	}
}

// ObserveDuration records the duration for the named job.
func (m *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (m *JobMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (m *JobMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddPayoutCents accumulates a settled payout amount under the given status label.
func (m *JobMetrics) AddPayoutCents(status string, cents int) {
	if m == nil || m.payoutCents == nil || cents <= 0 {
		return
	}
	m.payoutCents.WithLabelValues(normalizeLabel(status)).Add(float64(cents))
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
