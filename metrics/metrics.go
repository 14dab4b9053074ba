// Package metrics provides Prometheus metrics for engine operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RowsAffected      *prometheus.CounterVec
	RowsRead          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microrm_operations_total",
				Help: "Total number of engine operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "microrm_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		RowsAffected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microrm_rows_affected_total",
				Help: "Rows reported by successful write operations",
			},
			[]string{"operation"},
		),
		RowsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microrm_rows_read_total",
				Help: "Rows materialized by read operations",
			},
			[]string{"operation"},
		),
	}
}

// Observe records one completed operation.
func (m *Metrics) Observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) AddRowsAffected(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsAffected.WithLabelValues(operation).Add(float64(n))
}

func (m *Metrics) AddRowsRead(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsRead.WithLabelValues(operation).Add(float64(n))
}
