// Package monitoring exposes Prometheus metrics for the graph backend.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Graph mutation metrics
	GraphOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_operations_total",
		Help: "Total number of graph operations by outcome",
	}, []string{"operation", "status"})

	// Mirror forwarding metrics
	MirrorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_mirror_failures_total",
		Help: "Total number of discarded mirror forwarding failures",
	}, []string{"operation"})

	MirrorFallbackReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_mirror_fallback_reads_total",
		Help: "Total number of reads served from the mirror because the primary was empty",
	})

	ImportedGraphs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_imports_total",
		Help: "Total number of graph file imports by format",
	}, []string{"format", "status"})

	ExportedGraphs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_exports_total",
		Help: "Total number of graph file exports by format",
	}, []string{"format", "status"})
)
