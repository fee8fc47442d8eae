// Package metrics holds the Prometheus collectors of the matching service.
// Collectors register with the default registry; the HTTP API serves them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchingRunsTotal counts matching runs by item type and mode (dispatch, preview).
	MatchingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otoshimono_matching_runs_total",
			Help: "Total number of matching runs",
		},
		[]string{"item_type", "mode"},
	)

	// MatchingRunDuration measures retrieval, ranking, and dispatch of one run.
	MatchingRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "otoshimono_matching_run_duration_seconds",
		Help:    "Duration of a matching run in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// MatchesPerRun is the number of ranked matches a run produced.
	MatchesPerRun = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "otoshimono_matches_per_run",
		Help:    "Number of ranked matches per matching run",
		Buckets: prometheus.LinearBuckets(0, 1, 6),
	})

	// NotificationsTotal counts in-app notifications by result (created, failed).
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otoshimono_notifications_total",
			Help: "Total number of match notifications by result",
		},
		[]string{"result"},
	)

	// EmailsTotal counts match emails by result (sent, failed).
	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otoshimono_emails_total",
			Help: "Total number of match emails by result",
		},
		[]string{"result"},
	)

	// ItemsCreatedTotal counts stored items by type and source (api, intake).
	ItemsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otoshimono_items_created_total",
			Help: "Total number of lost and found items created",
		},
		[]string{"item_type", "source"},
	)

	// IntakeRowsTotal counts intake rows by result (imported, skipped, invalid).
	IntakeRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otoshimono_intake_rows_total",
			Help: "Total number of intake rows processed by result",
		},
		[]string{"result"},
	)

	// ItemsArchivedTotal counts items retired by the archive job.
	ItemsArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otoshimono_items_archived_total",
		Help: "Total number of stale items archived",
	})

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "otoshimono_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordMatchingRun records one finished run.
func RecordMatchingRun(itemType, mode string, took time.Duration, matches int) {
	MatchingRunsTotal.WithLabelValues(itemType, mode).Inc()
	MatchingRunDuration.Observe(took.Seconds())
	MatchesPerRun.Observe(float64(matches))
}

// RecordDispatch records the delivery outcome of one run.
func RecordDispatch(notificationsCreated, notificationsFailed, emailsSent, emailsFailed int) {
	NotificationsTotal.WithLabelValues("created").Add(float64(notificationsCreated))
	NotificationsTotal.WithLabelValues("failed").Add(float64(notificationsFailed))
	EmailsTotal.WithLabelValues("sent").Add(float64(emailsSent))
	EmailsTotal.WithLabelValues("failed").Add(float64(emailsFailed))
}

// RecordIntake records the outcome of one imported file.
func RecordIntake(imported, skipped, invalid int) {
	IntakeRowsTotal.WithLabelValues("imported").Add(float64(imported))
	IntakeRowsTotal.WithLabelValues("skipped").Add(float64(skipped))
	IntakeRowsTotal.WithLabelValues("invalid").Add(float64(invalid))
}
