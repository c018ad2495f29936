// Package metrics defines the Prometheus collectors of the vectorizer and
// exposes an HTTP handler for scraping. Every recording method is safe on a
// nil *Metrics so library callers can run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the vectorizer.
type Metrics struct {
	DocumentsTotal      *prometheus.CounterVec
	FailuresTotal       *prometheus.CounterVec
	UnmatchedTermsTotal prometheus.Counter
	ScoredRecordsTotal  prometheus.Counter
	VectorsEncodedTotal prometheus.Counter
	VectorBytes         prometheus.Histogram
	VectorEntries       prometheus.Histogram
	StageDuration       *prometheus.HistogramVec
	DecodesTotal        *prometheus.CounterVec
	SinkWritesTotal     *prometheus.CounterVec
	SinkLatency         *prometheus.HistogramVec
	CircuitBreakerState *prometheus.GaugeVec
	MessagesTotal       *prometheus.CounterVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates the collectors and registers them with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorizer_documents_total",
				Help: "Documents seen by the pipeline by outcome (vectorized, failed, empty).",
			},
			[]string{"outcome"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorizer_failures_total",
				Help: "Isolated record or group failures by stage and error kind.",
			},
			[]string{"stage", "kind"},
		),
		UnmatchedTermsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vectorizer_unmatched_terms_total",
				Help: "Term-frequency records dropped for lack of a document-frequency row.",
			},
		),
		ScoredRecordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vectorizer_scored_records_total",
				Help: "Tf-idf records produced by the join.",
			},
		),
		VectorsEncodedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vectorizer_vectors_encoded_total",
				Help: "Vectors serialized to the binary format.",
			},
		),
		VectorBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vectorizer_vector_bytes",
				Help:    "Encoded vector size in bytes.",
				Buckets: prometheus.ExponentialBuckets(16, 4, 8),
			},
		),
		VectorEntries: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vectorizer_vector_entries",
				Help:    "Entries per vector.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectorizer_stage_duration_seconds",
				Help:    "Wall time of each pipeline stage.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"stage"},
		),
		DecodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorizer_decodes_total",
				Help: "Vector decodes by result (ok, truncated, corrupt).",
			},
			[]string{"result"},
		),
		SinkWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorizer_sink_writes_total",
				Help: "Encoded vector writes by sink and status.",
			},
			[]string{"sink", "status"},
		),
		SinkLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectorizer_sink_write_seconds",
				Help:    "Latency of a single sink write including retries.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"sink"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vectorizer_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorizer_messages_total",
				Help: "Kafka document messages by handling result.",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.DocumentsTotal,
		m.FailuresTotal,
		m.UnmatchedTermsTotal,
		m.ScoredRecordsTotal,
		m.VectorsEncodedTotal,
		m.VectorBytes,
		m.VectorEntries,
		m.StageDuration,
		m.DecodesTotal,
		m.SinkWritesTotal,
		m.SinkLatency,
		m.CircuitBreakerState,
		m.MessagesTotal,
	)

	return m
}

func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CountDocuments(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DocumentsTotal.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) CountFailure(stage, kind string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(stage, kind).Inc()
}

func (m *Metrics) CountJoin(scored, unmatched int) {
	if m == nil {
		return
	}
	m.ScoredRecordsTotal.Add(float64(scored))
	m.UnmatchedTermsTotal.Add(float64(unmatched))
}

func (m *Metrics) ObserveVector(entries, bytes int) {
	if m == nil {
		return
	}
	m.VectorsEncodedTotal.Inc()
	m.VectorEntries.Observe(float64(entries))
	m.VectorBytes.Observe(float64(bytes))
}

func (m *Metrics) CountDecode(result string) {
	if m == nil {
		return
	}
	m.DecodesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSinkWrite(sink string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SinkWritesTotal.WithLabelValues(sink, status).Inc()
	m.SinkLatency.WithLabelValues(sink).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) CountMessage(result string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
