// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "market_sentiment_lab"

// Metrics holds all Prometheus metrics for the integrator.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Branch metrics
	BranchRunsTotal *prometheus.CounterVec
	BranchDuration  *prometheus.HistogramVec
	StateDuration   *prometheus.HistogramVec

	// Record metrics
	RecordsFetched  *prometheus.CounterVec
	RecordsOutcomes *prometheus.CounterVec

	// Entity metrics
	EntitiesCreated *prometheus.CounterVec
	EntityConflicts *prometheus.CounterVec

	// Analytics mirror metrics
	MirrorPoints prometheus.Counter
	MirrorErrors prometheus.Counter

	// Health metrics
	LastSuccessfulRun *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates a Metrics instance registered with reg. A nil reg
// uses a fresh registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		BranchRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integrator",
			Name:      "branch_runs_total",
			Help:      "Total number of branch runs by status",
		}, []string{"branch", "status"}),
		BranchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "integrator",
			Name:      "branch_duration_seconds",
			Help:      "Branch execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"branch"}),
		StateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "integrator",
			Name:      "state_duration_seconds",
			Help:      "Time spent in each branch state in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"branch", "state"}),

		RecordsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integrator",
			Name:      "records_fetched_total",
			Help:      "Total number of source records fetched",
		}, []string{"branch"}),
		RecordsOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integrator",
			Name:      "records_total",
			Help:      "Total number of records by write outcome",
		}, []string{"branch", "outcome"}),

		EntitiesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entities",
			Name:      "created_total",
			Help:      "Total number of parent entities created",
		}, []string{"entity"}),
		EntityConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entities",
			Name:      "conflicts_total",
			Help:      "Total number of entity inserts resolved by adopting an existing identity",
		}, []string{"entity"}),

		MirrorPoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "mirrored_points_total",
			Help:      "Total number of quote points mirrored to ClickHouse",
		}),
		MirrorErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "mirror_errors_total",
			Help:      "Total number of failed ClickHouse mirror batches",
		}),

		LastSuccessfulRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful branch run",
		}, []string{"branch"}),

		gatherer: reg,
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordBranch records a finished branch run.
func (m *Metrics) RecordBranch(branch string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	m.BranchRunsTotal.WithLabelValues(branch, status).Inc()
	m.BranchDuration.WithLabelValues(branch).Observe(d.Seconds())
	if ok {
		m.LastSuccessfulRun.WithLabelValues(branch).SetToCurrentTime()
	}
}

// RecordState records the time spent in a branch state.
func (m *Metrics) RecordState(branch, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.StateDuration.WithLabelValues(branch, state).Observe(d.Seconds())
}

// RecordFetched adds to the fetched records counter.
func (m *Metrics) RecordFetched(branch string, n int) {
	if m == nil {
		return
	}
	m.RecordsFetched.WithLabelValues(branch).Add(float64(n))
}

// RecordOutcome adds n records with the given write outcome.
func (m *Metrics) RecordOutcome(branch, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RecordsOutcomes.WithLabelValues(branch, outcome).Add(float64(n))
}

// RecordEntities records entity creations and conflicts.
func (m *Metrics) RecordEntities(entity string, created, conflicts int) {
	if m == nil {
		return
	}
	m.EntitiesCreated.WithLabelValues(entity).Add(float64(created))
	m.EntityConflicts.WithLabelValues(entity).Add(float64(conflicts))
}

// RecordMirror records an analytics mirror batch.
func (m *Metrics) RecordMirror(points int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.MirrorErrors.Inc()
		return
	}
	m.MirrorPoints.Add(float64(points))
}
