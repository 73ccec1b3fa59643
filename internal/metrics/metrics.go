// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus collectors for the ranking pipeline
// and the digest driver. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricPhraseExtractions = "proxima_phrase_extractions_total"
	MetricSearchRequests    = "proxima_search_requests_total"
	MetricRelaxationSteps   = "proxima_relaxation_steps"
	MetricCandidates        = "proxima_candidates"
	MetricEmbeddingFailures = "proxima_embedding_failures_total"
	MetricPipelineDuration  = "proxima_pipeline_duration_seconds"
	MetricDigests           = "proxima_digests_total"
)

// Search outcomes.
const (
	OutcomeHit   = "hit"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Embedding failure kinds.
const (
	KindQuery     = "query"
	KindCandidate = "candidate"
)

// Digest statuses.
const (
	DigestSent   = "sent"
	DigestEmpty  = "empty"
	DigestFailed = "failed"
)

// Metrics holds the collectors. All methods are safe for concurrent use.
type Metrics struct {
	phraseExtractions *prometheus.CounterVec
	searchRequests    *prometheus.CounterVec
	relaxationSteps   prometheus.Histogram
	candidates        prometheus.Histogram
	embeddingFailures *prometheus.CounterVec
	pipelineDuration  prometheus.Histogram
	digests           *prometheus.CounterVec
}

// New creates the collectors. They are not registered; call Register.
func New() *Metrics {
	return &Metrics{
		phraseExtractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPhraseExtractions,
				Help: "Phrase extractions by source (llm or heuristic)",
			},
			[]string{"source"},
		),
		searchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchRequests,
				Help: "Keyword-search requests by outcome",
			},
			[]string{"outcome"},
		),
		relaxationSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRelaxationSteps,
			Help:    "Tokens dropped per relaxation round",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricCandidates,
			Help:    "Unique candidates collected per pipeline run",
			Buckets: []float64{0, 10, 30, 60, 90, 150, 250, 500},
		}),
		embeddingFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEmbeddingFailures,
				Help: "Texts that could not be embedded, by kind",
			},
			[]string{"kind"},
		),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPipelineDuration,
			Help:    "Duration of a full ranking run in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		digests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDigests,
				Help: "Digests processed by status",
			},
			[]string{"status"},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns every collector.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.phraseExtractions,
		m.searchRequests,
		m.relaxationSteps,
		m.candidates,
		m.embeddingFailures,
		m.pipelineDuration,
		m.digests,
	}
}

func (m *Metrics) IncPhraseExtraction(source string) {
	if m == nil {
		return
	}
	m.phraseExtractions.WithLabelValues(source).Inc()
}

func (m *Metrics) IncSearchRequest(outcome string) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRelaxationSteps(steps int) {
	if m == nil {
		return
	}
	m.relaxationSteps.Observe(float64(steps))
}

func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

func (m *Metrics) IncEmbeddingFailure(kind string) {
	if m == nil {
		return
	}
	m.embeddingFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObservePipelineDuration(seconds float64) {
	if m == nil {
		return
	}
	m.pipelineDuration.Observe(seconds)
}

func (m *Metrics) IncDigest(status string) {
	if m == nil {
		return
	}
	m.digests.WithLabelValues(status).Inc()
}
