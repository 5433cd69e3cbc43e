package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage names used as the "stage" label
const (
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
	StageValidate = "validate"
	StagePersist  = "persist"
	StageTotal    = "total"
)

// OutcomeSuccess labels a run that produced a document
const OutcomeSuccess = "success"

// Metrics provides observability for persona runs. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Stage latencies by stage
	StageLatency *prometheus.HistogramVec

	// Run outcomes by error kind ("success" when none)
	RunOutcome *prometheus.CounterVec

	// Citation problems found in generated text by type
	CitationViolations *prometheus.CounterVec

	// Evidence items handed to the prompt by source type
	EvidenceItems *prometheus.HistogramVec
}

// New creates a Metrics instance registered on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "persona_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),

		RunOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "persona_runs_total",
			Help: "Total persona runs by outcome",
		}, []string{"outcome"}),

		CitationViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "persona_citation_violations_total",
			Help: "Citation problems found in generated personas by type",
		}, []string{"type"}), // type: "uncited", "unknown", "mislabeled"

		EvidenceItems: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "persona_evidence_items",
			Help:    "Evidence items per run after budgeting",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 30, 50},
		}, []string{"source"}),
	}
}

// ObserveStage records how long a stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementOutcome records a run outcome
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(outcome).Inc()
	}
}

// AddCitationViolations records n citation problems of one type
func (m *Metrics) AddCitationViolations(kind string, n int) {
	if m != nil && n > 0 {
		m.CitationViolations.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveEvidence records the budgeted evidence size
func (m *Metrics) ObserveEvidence(posts, comments int) {
	if m != nil {
		m.EvidenceItems.WithLabelValues("post").Observe(float64(posts))
		m.EvidenceItems.WithLabelValues("comment").Observe(float64(comments))
	}
}

// Registry exposes the underlying registry (for tests and custom exporters)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
