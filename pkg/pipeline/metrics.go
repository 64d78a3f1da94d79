package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are registered per Service so tests can use a private registry.
type Metrics struct {
	asksTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	trainedTotal  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		asksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_asks_total",
				Help: "Total number of asks by final stage.",
			},
			[]string{"stage"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "askdb_stage_duration_seconds",
				Help:    "Duration of each ask stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_external_retries_total",
				Help: "Total number of retried external service calls by operation.",
			},
			[]string{"op"},
		),
		trainedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_training_items_added_total",
				Help: "Total number of training items added by kind.",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.asksTotal, m.stageDuration, m.retriesTotal, m.trainedTotal)
	}
	return m
}

func (m *Metrics) observeStage(stage Stage, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage.String()).Observe(time.Since(start).Seconds())
}

func (m *Metrics) recordAsk(stage Stage) {
	if m == nil {
		return
	}
	m.asksTotal.WithLabelValues(stage.String()).Inc()
}

func (m *Metrics) recordRetry(op string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) recordTrained(kind string) {
	if m == nil {
		return
	}
	m.trainedTotal.WithLabelValues(kind).Inc()
}
