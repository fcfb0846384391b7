// Package metrics declares the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wealthwise"

var (
	// ReconcileRuns counts reconciliations. Labels: outcome (ok, not_found, error)
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Total ledger reconciliations by outcome",
	}, []string{"outcome"})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "duration_seconds",
		Help:      "Ledger reconciliation latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// EntriesInserted counts engine-written entries. Labels: step
	EntriesInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "entries_inserted_total",
		Help:      "Entries inserted by the reconciliation engine",
	}, []string{"step"})

	// StepsSkipped counts skipped steps. Labels: step, reason
	StepsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "steps_skipped_total",
		Help:      "Reconciliation steps skipped for configuration problems",
	}, []string{"step", "reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	})

	SuspiciousRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "suspicious_requests_total",
		Help:      "Requests flagged by the security detector",
	})

	// MessagesConsumed counts handled AMQP deliveries. Labels: queue, result
	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "messages_total",
		Help:      "AMQP messages handled by workers",
	}, []string{"queue", "result"})
)

// ObserveReconcile records one reconciliation run.
func ObserveReconcile(outcome string, d time.Duration) {
	ReconcileRuns.WithLabelValues(outcome).Inc()
	ReconcileDuration.Observe(d.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
