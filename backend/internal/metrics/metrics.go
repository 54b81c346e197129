// Package metrics holds the Prometheus collectors shared by the store, the
// ingestion pipeline and the extraction adapter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "brainvibe"

var (
	// IngestBatches counts ingest calls.
	// Labels: outcome (ok, project_not_found, error)
	IngestBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "batches_total",
		Help:      "Total ingestion batches by outcome",
	}, []string{"outcome"})

	// IngestProposals counts proposed topics by what happened to them.
	// Labels: outcome (created, merged, skipped)
	IngestProposals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "proposals_total",
		Help:      "Total proposed topics by resolution outcome",
	}, []string{"outcome"})

	// IngestPlaceholders counts prerequisite topics created without a proposal of their own.
	IngestPlaceholders = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "placeholders_total",
		Help:      "Total placeholder prerequisite topics created",
	})

	// RejectedEdges counts prerequisite edges that were not written.
	// Labels: reason (self_loop, cycle)
	RejectedEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "rejected_edges_total",
		Help:      "Total prerequisite edges rejected during ingestion",
	}, []string{"reason"})

	// IngestDuration measures the time spent inside the store transaction.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Ingestion transaction latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	// StoreTopics tracks the number of topics in the store.
	StoreTopics = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "topics",
		Help:      "Number of topics in the store",
	})

	// StoreProjects tracks the number of projects in the store.
	StoreProjects = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "projects",
		Help:      "Number of projects in the store",
	})

	// PersistDuration measures backend save latency.
	// Labels: backend
	PersistDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "persist",
		Name:      "duration_seconds",
		Help:      "Persistence save latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
	}, []string{"backend"})

	// PersistFailures counts failed saves; records stay pending and are retried.
	// Labels: backend
	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "persist",
		Name:      "failures_total",
		Help:      "Total failed persistence saves",
	}, []string{"backend"})

	// LLMRequests counts extraction requests.
	// Labels: model, status (ok, error, parse_error)
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Total topic extraction requests",
	}, []string{"model", "status"})

	// LLMLatency measures extraction round trips including retries.
	// Labels: model
	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "Topic extraction latency in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"model"})
)
