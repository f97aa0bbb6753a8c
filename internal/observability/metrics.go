package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records service operation outcomes.
type OperationMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// MatchMetrics adds match domain counters on top of the operation metrics.
type MatchMetrics interface {
	OperationMetrics
	RecordElimination(ctx context.Context, reason string)
	RecordMatchCompleted(ctx context.Context, winnerSelection string)
	RecordSettlement(ctx context.Context, outcome string)
	RecordLeaseContention(ctx context.Context)
}

type prometheusMetrics struct {
	attempts    *prometheus.CounterVec
	successes   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	elims       *prometheus.CounterVec
	completions *prometheus.CounterVec
	settlements *prometheus.CounterVec
	contention  prometheus.Counter
}

// NewPrometheusMetrics registers the match metrics on registry.
func NewPrometheusMetrics(registry prometheus.Registerer, namespace string) MatchMetrics {
	m := &prometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, []string{"operation", "service"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_success_total",
			Help:      "Service operations that returned without infrastructure error.",
		}, []string{"operation", "service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failure_total",
			Help:      "Service operations that failed or panicked.",
		}, []string{"operation", "service"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		elims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_eliminations_total",
			Help:      "Players eliminated, by reason.",
		}, []string{"reason"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_completed_total",
			Help:      "Matches completed, by winner selection rule.",
		}, []string{"selection"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement attempts, by outcome.",
		}, []string{"outcome"}),
		contention: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_lease_contention_total",
			Help:      "Ticks that skipped a match because a fresh lease was held.",
		}),
	}

	registry.MustRegister(m.attempts, m.successes, m.failures, m.durations, m.elims, m.completions, m.settlements, m.contention)
	return m
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.durations.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordElimination(_ context.Context, reason string) {
	m.elims.WithLabelValues(reason).Inc()
}

func (m *prometheusMetrics) RecordMatchCompleted(_ context.Context, winnerSelection string) {
	m.completions.WithLabelValues(winnerSelection).Inc()
}

func (m *prometheusMetrics) RecordSettlement(_ context.Context, outcome string) {
	m.settlements.WithLabelValues(outcome).Inc()
}

func (m *prometheusMetrics) RecordLeaseContention(_ context.Context) {
	m.contention.Inc()
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func NewNoop() MatchMetrics { return NoopMetrics{} }

func (NoopMetrics) RecordOperationAttempt(context.Context, string, string) {}
func (NoopMetrics) RecordOperationSuccess(context.Context, string, string) {}
func (NoopMetrics) RecordOperationFailure(context.Context, string, string) {}
func (NoopMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (NoopMetrics) RecordElimination(context.Context, string) {}
func (NoopMetrics) RecordMatchCompleted(context.Context, string) {}
func (NoopMetrics) RecordSettlement(context.Context, string) {}
func (NoopMetrics) RecordLeaseContention(context.Context) {}
