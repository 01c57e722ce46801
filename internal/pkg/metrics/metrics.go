// Package metrics provides Prometheus metrics definitions.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentdispatch"

var (
	// IncidentTransitions counts lifecycle transitions by action.
	IncidentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "transitions_total",
			Help:      "Incident lifecycle transitions by action",
		},
		[]string{"action"},
	)

	// OperationFailures counts rejected dispatcher operations.
	OperationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "operation_failures_total",
			Help:      "Dispatcher operations rejected by operation and reason",
		},
		[]string{"operation", "reason"},
	)

	// PendingQueueSize tracks the number of incidents waiting for an operator.
	PendingQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "pending_queue_size",
			Help:      "Number of incidents in the pending queue",
		},
	)

	// IncidentsByStatus tracks the incident table broken down by status.
	IncidentsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "current",
			Help:      "Number of incidents by status",
		},
		[]string{"status"},
	)

	// StoreSaveDuration tracks how long a full flush to the store takes.
	StoreSaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "save_duration_seconds",
			Help:      "Time to persist the incident set",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"result"},
	)

	// DBPoolConnections tracks database connection pool state.
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Number of database connections by state",
		},
		[]string{"state"},
	)
)

// WriteTextfile writes every registered metric to path in the text exposition format,
// for pickup by a node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
