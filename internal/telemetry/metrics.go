// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for Warden's security operations, plus decorators that wrap a provider
// implementation to record metrics around its calls without the provider
// itself, or the domain packages it satisfies, needing to know telemetry
// exists.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric Warden records. Pass the same
// instance to however many decorators are wired at startup.
type Metrics struct {
	AuditEventsStoredTotal  *prometheus.CounterVec
	AuditStoreFailuresTotal prometheus.Counter
	AuditQueryDuration      prometheus.Histogram

	PolicyDecisionsTotal *prometheus.CounterVec
	PolicyEvalDuration   prometheus.Histogram

	RateLimitDecisionsTotal *prometheus.CounterVec
	RateLimitTrackedKeys    prometheus.Gauge

	CredentialVerifyTotal   *prometheus.CounterVec
	CredentialLockoutsTotal prometheus.Counter
}

// NewMetrics creates and registers every Warden metric against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		AuditEventsStoredTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "audit_events_stored_total",
				Help:      "Total audit events persisted, by event kind.",
			},
			[]string{"kind"},
		),
		AuditStoreFailuresTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "audit_store_failures_total",
				Help:      "Total audit Store calls that returned an error.",
			},
		),
		AuditQueryDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "warden",
				Name:      "audit_query_duration_seconds",
				Help:      "Duration of audit Query calls.",
				Buckets:   prometheus.DefBuckets,
			},
		),

		PolicyDecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "policy_decisions_total",
				Help:      "Total policy evaluations, by decision (allow/deny).",
			},
			[]string{"decision"},
		),
		PolicyEvalDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "warden",
				Name:      "policy_eval_duration_seconds",
				Help:      "Duration of policy Evaluate calls.",
				Buckets:   prometheus.DefBuckets,
			},
		),

		RateLimitDecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "rate_limit_decisions_total",
				Help:      "Total rate-limit checks, by outcome (allowed/blocked/fallback_open).",
			},
			[]string{"outcome"},
		),
		RateLimitTrackedKeys: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "warden",
				Name:      "rate_limit_tracked_keys",
				Help:      "Number of (identifier, action) keys currently tracked.",
			},
		),

		CredentialVerifyTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "credential_verify_total",
				Help:      "Total credential verification attempts, by outcome (success/failure/locked).",
			},
			[]string{"outcome"},
		),
		CredentialLockoutsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "credential_lockouts_total",
				Help:      "Total verify attempts observed against a currently-locked credential.",
			},
		),
	}
}
