// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// book QA service.
//
// # Description
//
// Prometheus metrics for the query pipeline:
//   - Query counters (by mode and terminal status)
//   - Refusal counters (by catalog reason)
//   - Grounding confidence and context size histograms
//   - Retrieval and generation latency histograms
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for book QA pipeline metrics
const bookqaSubsystem = "bookqa"

// QueryMetrics holds all Prometheus metrics for the query pipeline.
//
// Initialize once at startup via InitMetrics(); registering twice
// panics on duplicate registration.
type QueryMetrics struct {
	// QueriesTotal counts pipeline runs by mode and terminal status.
	// Labels: mode (book_scope, selected_text_only),
	// status (answered, refused, error)
	QueriesTotal *prometheus.CounterVec

	// RefusalsTotal counts refusals by catalog reason.
	// Labels: reason (no_context_provided, context_too_brief, ...)
	RefusalsTotal *prometheus.CounterVec

	// GroundingConfidence observes the validator confidence of every
	// generated answer, refused or not.
	GroundingConfidence prometheus.Histogram

	// ContextTokens observes assembled context sizes in whitespace words.
	ContextTokens prometheus.Histogram

	// RetrievalDurationSeconds measures corpus search latency.
	RetrievalDurationSeconds prometheus.Histogram

	// QueryDurationSeconds measures end-to-end pipeline latency.
	// Labels: mode
	QueryDurationSeconds *prometheus.HistogramVec
}

// DefaultMetrics is the singleton instance of QueryMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *QueryMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once at
// application startup.
func InitMetrics() *QueryMetrics {
	DefaultMetrics = &QueryMetrics{
		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bookqaSubsystem,
				Name:      "queries_total",
				Help:      "Total query pipeline runs by mode and terminal status",
			},
			[]string{"mode", "status"},
		),

		RefusalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bookqaSubsystem,
				Name:      "refusals_total",
				Help:      "Total refusals by catalog reason",
			},
			[]string{"reason"},
		),

		GroundingConfidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: bookqaSubsystem,
				Name:      "grounding_confidence",
				Help:      "Grounding validator confidence per generated answer",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),

		ContextTokens: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: bookqaSubsystem,
				Name:      "context_tokens",
				Help:      "Assembled context size in whitespace words",
				Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2000, 4000},
			},
		),

		RetrievalDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: bookqaSubsystem,
				Name:      "retrieval_duration_seconds",
				Help:      "Corpus search latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
		),

		QueryDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: bookqaSubsystem,
				Name:      "query_duration_seconds",
				Help:      "End-to-end query pipeline latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"mode"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Status Names
// =============================================================================

// Status labels a pipeline run's terminal state for metrics.
type Status string

const (
	// StatusAnswered means a grounded answer was returned.
	StatusAnswered Status = "answered"

	// StatusRefused means a catalog refusal was returned.
	StatusRefused Status = "refused"

	// StatusError means an infrastructure failure surfaced.
	StatusError Status = "error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordQuery records a completed pipeline run.
//
// # Inputs
//
//   - mode: The query mode that handled the request.
//   - status: The terminal status.
//   - seconds: End-to-end latency.
func (m *QueryMetrics) RecordQuery(mode string, status Status, seconds float64) {
	m.QueriesTotal.WithLabelValues(mode, string(status)).Inc()
	m.QueryDurationSeconds.WithLabelValues(mode).Observe(seconds)
}

// RecordRefusal records a refusal by reason.
func (m *QueryMetrics) RecordRefusal(reason string) {
	m.RefusalsTotal.WithLabelValues(reason).Inc()
}

// RecordGrounding records the validator confidence for an answer.
func (m *QueryMetrics) RecordGrounding(confidence float64) {
	m.GroundingConfidence.Observe(confidence)
}

// RecordContext records the assembled context size.
func (m *QueryMetrics) RecordContext(tokens int) {
	m.ContextTokens.Observe(float64(tokens))
}

// RecordRetrieval records one corpus search latency.
func (m *QueryMetrics) RecordRetrieval(seconds float64) {
	m.RetrievalDurationSeconds.Observe(seconds)
}
