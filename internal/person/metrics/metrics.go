// Package metrics holds the Prometheus instruments for the registry engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registry engine instruments. A nil *Metrics is safe to
// call, so tests can skip registration entirely.
type Metrics struct {
	recordsCreated    prometheus.Counter
	recordsUpdated    prometheus.Counter
	approvalsResolved *prometheus.CounterVec
	reconcileOps      *prometheus.CounterVec
	opDuration        *prometheus.HistogramVec
}

// New creates and registers all registry metrics on the default registerer.
func New() *Metrics {
	return &Metrics{
		recordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_records_created_total",
			Help: "Total canonical records created",
		}),
		recordsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_records_updated_total",
			Help: "Total canonical record updates, including pending-only updates",
		}),
		approvalsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_approvals_resolved_total",
			Help: "Pending approvals resolved, by decision",
		}, []string{"decision"}),
		reconcileOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_reconcile_ops_total",
			Help: "Index reconcile write operations, by outcome",
		}, []string{"outcome"}),
		opDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civreg_operation_duration_seconds",
			Help:    "Latency of engine operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordCreated() {
	if m == nil {
		return
	}
	m.recordsCreated.Inc()
}

func (m *Metrics) RecordUpdated() {
	if m == nil {
		return
	}
	m.recordsUpdated.Inc()
}

func (m *Metrics) ApprovalResolved(decision string) {
	if m == nil {
		return
	}
	m.approvalsResolved.WithLabelValues(decision).Inc()
}

func (m *Metrics) ReconcileOp(outcome string) {
	if m == nil {
		return
	}
	m.reconcileOps.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(operation).Observe(d.Seconds())
}
