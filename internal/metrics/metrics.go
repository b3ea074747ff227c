// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aloha_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aloha_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aloha_backups_total",
			Help: "Backup archives produced, by outcome",
		},
		[]string{"outcome"},
	)

	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aloha_restores_total",
			Help: "Restore attempts, by outcome",
		},
		[]string{"outcome"},
	)

	RetentionRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aloha_retention_runs_total",
			Help: "Completed retention sweeps",
		},
	)

	RetentionApplicantsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aloha_retention_applicants_deleted_total",
			Help: "Rejected applicants purged by the retention sweep",
		},
	)

	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aloha_audit_write_failures_total",
			Help: "Audit entries that could not be written",
		},
	)
)
