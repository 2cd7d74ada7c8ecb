// Package metrics exposes Prometheus collectors for the answering path.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saferag/internal/service"
)

// OutcomeNotConfigured is reported instead of the policy outcome when no
// completion service produced the answer.
const OutcomeNotConfigured = "not_configured"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry
	answers  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration prometheus.Histogram
	records  *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saferag_answers_total",
			Help: "Answered queries by terminal outcome.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saferag_errors_total",
			Help: "Failed queries by pipeline stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "saferag_answer_duration_seconds",
			Help:    "End-to-end latency of answered queries.",
			Buckets: prometheus.DefBuckets,
		}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "saferag_snapshot_records",
			Help: "Records in the active snapshots.",
		}, []string{"snapshot"}),
	}
	m.registry.MustRegister(m.answers, m.errors, m.duration, m.records,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAnswer records a successful answer.
func (m *Metrics) ObserveAnswer(ans *service.Answer, elapsed time.Duration) {
	outcome := string(ans.Outcome)
	if ans.Text == service.NotConfiguredAnswer && !ans.Completed {
		outcome = OutcomeNotConfigured
	}
	m.answers.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveError records a failed query under its stage, or "other".
func (m *Metrics) ObserveError(err error) {
	stage := "other"
	var se *service.Error
	if errors.As(err, &se) {
		stage = string(se.Stage)
	}
	m.errors.WithLabelValues(stage).Inc()
}

// SetSnapshotSizes publishes the size of the active snapshots.
func (m *Metrics) SetSnapshotSizes(chunks, intents int) {
	m.records.WithLabelValues("chunks").Set(float64(chunks))
	m.records.WithLabelValues("intents").Set(float64(intents))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
